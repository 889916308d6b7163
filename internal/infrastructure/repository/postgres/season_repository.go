package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pickemlabs/pickem-engine/internal/domain/season"
	qb "github.com/pickemlabs/pickem-engine/internal/platform/querybuilder"
)

type SeasonRepository struct {
	db *sqlx.DB
}

func NewSeasonRepository(db *sqlx.DB) *SeasonRepository {
	return &SeasonRepository{db: db}
}

func (r *SeasonRepository) GetByID(ctx context.Context, seasonID string) (season.Season, bool, error) {
	query, args, err := qb.Select("*").From("seasons").
		Where(
			qb.Eq("public_id", seasonID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return season.Season{}, false, fmt.Errorf("build get season by id query: %w", err)
	}

	var row seasonTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return season.Season{}, false, nil
		}
		return season.Season{}, false, fmt.Errorf("get season by id: %w", err)
	}

	return seasonToDomain(row), true, nil
}

func (r *SeasonRepository) GetCurrent(ctx context.Context) (season.Season, bool, error) {
	query, args, err := qb.Select("*").From("seasons").
		Where(
			qb.Eq("is_current", true),
			qb.IsNull("deleted_at"),
		).
		OrderBy("year DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return season.Season{}, false, fmt.Errorf("build get current season query: %w", err)
	}

	var row seasonTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return season.Season{}, false, nil
		}
		return season.Season{}, false, fmt.Errorf("get current season: %w", err)
	}

	return seasonToDomain(row), true, nil
}

func (r *SeasonRepository) Create(ctx context.Context, s season.Season) error {
	insertModel := seasonInsertModel{
		PublicID:           s.ID,
		Year:               s.Year,
		RegularPhaseLength: s.RegularPhaseLength,
		PostPhaseLength:    s.PostPhaseLength,
		CurrentPeriod:      s.CurrentPeriod,
		IsComplete:         s.IsComplete,
		IsCurrent:          s.IsCurrent,
	}
	query, args, err := qb.InsertModel("seasons", insertModel, "")
	if err != nil {
		return fmt.Errorf("build insert season query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert season: %w", err)
	}
	return nil
}

func (r *SeasonRepository) SetCurrentPeriod(ctx context.Context, seasonID string, period int) error {
	query, args, err := qb.Update("seasons").
		Set("current_period", period).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("public_id", seasonID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build set current period query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set current period: %w", err)
	}
	return nil
}

func (r *SeasonRepository) MarkComplete(ctx context.Context, seasonID string) error {
	query, args, err := qb.Update("seasons").
		Set("is_complete", true).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("public_id", seasonID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark season complete query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark season complete: %w", err)
	}
	return nil
}

func seasonToDomain(row seasonTableModel) season.Season {
	return season.Season{
		ID:                 row.PublicID,
		Year:               row.Year,
		RegularPhaseLength: row.RegularPhaseLength,
		PostPhaseLength:    row.PostPhaseLength,
		CurrentPeriod:      row.CurrentPeriod,
		IsComplete:         row.IsComplete,
		IsCurrent:          row.IsCurrent,
	}
}
