package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/domain/standings"
	qb "github.com/pickemlabs/pickem-engine/internal/platform/querybuilder"
)

type snapshotTableModel struct {
	ID                    int64      `db:"id"`
	PublicID              string     `db:"public_id"`
	SeasonID              string     `db:"season_public_id"`
	PickerID              string     `db:"picker_id"`
	PoolID                string     `db:"pool_public_id"`
	FinalRank             int        `db:"final_rank"`
	Wins                  int        `db:"wins"`
	Losses                int        `db:"losses"`
	Ties                  int        `db:"ties"`
	Points                float64    `db:"points"`
	Tiebreak              int        `db:"tiebreak"`
	AdvancesToElimination bool       `db:"advances_to_elimination"`
	AdvancesToFinal       bool       `db:"advances_to_final"`
	CapturedAt            int64      `db:"captured_at"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
	DeletedAt             *time.Time `db:"deleted_at"`
}

type snapshotInsertModel struct {
	PublicID              string  `db:"public_id"`
	SeasonID              string  `db:"season_public_id"`
	PickerID              string  `db:"picker_id"`
	PoolID                string  `db:"pool_public_id"`
	FinalRank             int     `db:"final_rank"`
	Wins                  int     `db:"wins"`
	Losses                int     `db:"losses"`
	Ties                  int     `db:"ties"`
	Points                float64 `db:"points"`
	Tiebreak              int     `db:"tiebreak"`
	AdvancesToElimination bool    `db:"advances_to_elimination"`
	AdvancesToFinal       bool    `db:"advances_to_final"`
	CapturedAt            int64   `db:"captured_at"`
}

type SnapshotRepository struct {
	db *sqlx.DB
}

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) ListBySeason(ctx context.Context, seasonID string, scope pick.Scope) ([]standings.Snapshot, error) {
	query, args, err := qb.Select("*").From("eligibility_snapshots").
		Where(
			qb.Eq("season_public_id", seasonID),
			qb.Eq("pool_public_id", scope.PoolID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("final_rank", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list snapshots query: %w", err)
	}

	var rows []snapshotTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	out := make([]standings.Snapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, snapshotToDomain(row))
	}
	return out, nil
}

func (r *SnapshotRepository) GetByPicker(ctx context.Context, seasonID, pickerID string, scope pick.Scope) (standings.Snapshot, bool, error) {
	query, args, err := qb.Select("*").From("eligibility_snapshots").
		Where(
			qb.Eq("season_public_id", seasonID),
			qb.Eq("picker_id", pickerID),
			qb.Eq("pool_public_id", scope.PoolID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return standings.Snapshot{}, false, fmt.Errorf("build get snapshot by picker query: %w", err)
	}

	var row snapshotTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return standings.Snapshot{}, false, nil
		}
		return standings.Snapshot{}, false, fmt.Errorf("get snapshot by picker: %w", err)
	}

	return snapshotToDomain(row), true, nil
}

// CreateAll inserts the batch in one transaction. The unique
// (season, picker, pool) index rejects the whole batch when any row already
// exists, which is what makes concurrent snapshot creation safe.
func (r *SnapshotRepository) CreateAll(ctx context.Context, snapshots []standings.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx create snapshots: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, snapshot := range snapshots {
		insertModel := snapshotInsertModel{
			PublicID:              snapshot.ID,
			SeasonID:              snapshot.SeasonID,
			PickerID:              snapshot.PickerID,
			PoolID:                snapshot.Scope.PoolID,
			FinalRank:             snapshot.FinalRank,
			Wins:                  snapshot.Wins,
			Losses:                snapshot.Losses,
			Ties:                  snapshot.Ties,
			Points:                snapshot.Points,
			Tiebreak:              snapshot.Tiebreak,
			AdvancesToElimination: snapshot.AdvancesToElimination,
			AdvancesToFinal:       snapshot.AdvancesToFinal,
			CapturedAt:            timeToUnix(snapshot.CreatedAt),
		}
		query, args, err := qb.InsertModel("eligibility_snapshots", insertModel, "")
		if err != nil {
			return fmt.Errorf("build insert snapshot query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("snapshot already exists for picker=%s: %w", snapshot.PickerID, err)
			}
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create snapshots tx: %w", err)
	}
	return nil
}

// SetFinalGate clears the advances-to-final flag for every snapshot of the
// (season, scope) pair and then sets it for the given pickers, all in one
// transaction.
func (r *SnapshotRepository) SetFinalGate(ctx context.Context, seasonID string, scope pick.Scope, pickerIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx set final gate: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	clearQuery, clearArgs, err := qb.Update("eligibility_snapshots").
		Set("advances_to_final", false).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("season_public_id", seasonID),
			qb.Eq("pool_public_id", scope.PoolID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build clear final gate query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, clearQuery, clearArgs...); err != nil {
		return fmt.Errorf("clear final gate: %w", err)
	}

	if len(pickerIDs) > 0 {
		ids := make([]any, 0, len(pickerIDs))
		for _, id := range pickerIDs {
			ids = append(ids, id)
		}
		setQuery, setArgs, err := qb.Update("eligibility_snapshots").
			Set("advances_to_final", true).
			SetExpr("updated_at", "NOW()").
			Where(
				qb.Eq("season_public_id", seasonID),
				qb.Eq("pool_public_id", scope.PoolID),
				qb.In("picker_id", ids),
				qb.IsNull("deleted_at"),
			).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build set final gate query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, setQuery, setArgs...); err != nil {
			return fmt.Errorf("set final gate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set final gate tx: %w", err)
	}
	return nil
}

func snapshotToDomain(row snapshotTableModel) standings.Snapshot {
	return standings.Snapshot{
		ID:                    row.PublicID,
		SeasonID:              row.SeasonID,
		PickerID:              row.PickerID,
		Scope:                 pick.PerPool(row.PoolID),
		FinalRank:             row.FinalRank,
		Wins:                  row.Wins,
		Losses:                row.Losses,
		Ties:                  row.Ties,
		Points:                row.Points,
		Tiebreak:              row.Tiebreak,
		AdvancesToElimination: row.AdvancesToElimination,
		AdvancesToFinal:       row.AdvancesToFinal,
		CreatedAt:             unixToTime(row.CapturedAt),
	}
}
