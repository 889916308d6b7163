package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pickemlabs/pickem-engine/internal/domain/award"
	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	qb "github.com/pickemlabs/pickem-engine/internal/platform/querybuilder"
)

type awardTableModel struct {
	ID        int64      `db:"id"`
	PublicID  string     `db:"public_id"`
	SeasonID  string     `db:"season_public_id"`
	PickerID  string     `db:"picker_id"`
	PoolID    string     `db:"pool_public_id"`
	AwardType string     `db:"award_type"`
	GrantedAt int64      `db:"granted_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at"`
}

type awardInsertModel struct {
	PublicID  string `db:"public_id"`
	SeasonID  string `db:"season_public_id"`
	PickerID  string `db:"picker_id"`
	PoolID    string `db:"pool_public_id"`
	AwardType string `db:"award_type"`
	GrantedAt int64  `db:"granted_at"`
}

type AwardRepository struct {
	db *sqlx.DB
}

func NewAwardRepository(db *sqlx.DB) *AwardRepository {
	return &AwardRepository{db: db}
}

func (r *AwardRepository) ListBySeason(ctx context.Context, seasonID string, scope pick.Scope) ([]award.Award, error) {
	query, args, err := qb.Select("*").From("awards").
		Where(
			qb.Eq("season_public_id", seasonID),
			qb.Eq("pool_public_id", scope.PoolID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("award_type", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list awards query: %w", err)
	}

	var rows []awardTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}

	out := make([]award.Award, 0, len(rows))
	for _, row := range rows {
		out = append(out, award.Award{
			ID:        row.PublicID,
			SeasonID:  row.SeasonID,
			PickerID:  row.PickerID,
			Scope:     pick.PerPool(row.PoolID),
			Type:      award.Type(row.AwardType),
			CreatedAt: unixToTime(row.GrantedAt),
		})
	}
	return out, nil
}

// CreateIfAbsent leans on ON CONFLICT DO NOTHING over the unique
// (season, picker, pool, type) index, so finalization retries stay
// idempotent even under concurrent ticks.
func (r *AwardRepository) CreateIfAbsent(ctx context.Context, a award.Award) (bool, error) {
	insertModel := awardInsertModel{
		PublicID:  a.ID,
		SeasonID:  a.SeasonID,
		PickerID:  a.PickerID,
		PoolID:    a.Scope.PoolID,
		AwardType: string(a.Type),
		GrantedAt: timeToUnix(a.CreatedAt),
	}
	query, args, err := qb.InsertModel("awards", insertModel,
		`ON CONFLICT (season_public_id, picker_id, pool_public_id, award_type) WHERE deleted_at IS NULL
DO NOTHING`)
	if err != nil {
		return false, fmt.Errorf("build insert award query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert award: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert award rows affected: %w", err)
	}
	return affected > 0, nil
}
