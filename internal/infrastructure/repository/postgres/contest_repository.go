package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
	qb "github.com/pickemlabs/pickem-engine/internal/platform/querybuilder"
)

type ContestRepository struct {
	db *sqlx.DB
}

func NewContestRepository(db *sqlx.DB) *ContestRepository {
	return &ContestRepository{db: db}
}

func (r *ContestRepository) GetByID(ctx context.Context, contestID string) (contest.Contest, bool, error) {
	query, args, err := qb.Select("*").From("contests").
		Where(
			qb.Eq("public_id", contestID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return contest.Contest{}, false, fmt.Errorf("build get contest by id query: %w", err)
	}

	var row contestTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return contest.Contest{}, false, nil
		}
		return contest.Contest{}, false, fmt.Errorf("get contest by id: %w", err)
	}

	return contestToDomain(row), true, nil
}

func (r *ContestRepository) ListByWeek(ctx context.Context, seasonID string, week int) ([]contest.Contest, error) {
	query, args, err := qb.Select("*").From("contests").
		Where(
			qb.Eq("season_public_id", seasonID),
			qb.Eq("week", week),
			qb.IsNull("deleted_at"),
		).
		OrderBy("starts_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select contests by week query: %w", err)
	}

	return r.selectContests(ctx, query, args, "select contests by week")
}

func (r *ContestRepository) ListBySeason(ctx context.Context, seasonID string) ([]contest.Contest, error) {
	query, args, err := qb.Select("*").From("contests").
		Where(
			qb.Eq("season_public_id", seasonID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("week", "starts_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select contests by season query: %w", err)
	}

	return r.selectContests(ctx, query, args, "select contests by season")
}

func (r *ContestRepository) ListInProgress(ctx context.Context, seasonID string, now time.Time) ([]contest.Contest, error) {
	query, args, err := qb.Select("*").From("contests").
		Where(
			qb.Eq("season_public_id", seasonID),
			qb.Eq("is_final", false),
			qb.Expr("starts_at <= ?", timeToUnix(now)),
			qb.IsNull("deleted_at"),
		).
		OrderBy("starts_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select in-progress contests query: %w", err)
	}

	return r.selectContests(ctx, query, args, "select in-progress contests")
}

func (r *ContestRepository) ListNearStart(ctx context.Context, seasonID string, now time.Time, lookback, lookahead time.Duration) ([]contest.Contest, error) {
	from := timeToUnix(now.Add(-lookback))
	until := timeToUnix(now.Add(lookahead))
	query, args, err := qb.Select("*").From("contests").
		Where(
			qb.Eq("season_public_id", seasonID),
			qb.Eq("is_final", false),
			qb.Expr("starts_at BETWEEN ? AND ?", from, until),
			qb.IsNull("deleted_at"),
		).
		OrderBy("starts_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select near-start contests query: %w", err)
	}

	return r.selectContests(ctx, query, args, "select near-start contests")
}

// SaveAll upserts every contest inside one transaction so a sync phase
// commits all of its rows or none of them.
func (r *ContestRepository) SaveAll(ctx context.Context, contests []contest.Contest) error {
	if len(contests) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save contests: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, c := range contests {
		query, args, err := qb.InsertModel("contests", contestToInsertModel(c), `ON CONFLICT (public_id) WHERE deleted_at IS NULL
DO UPDATE SET
    week = EXCLUDED.week,
    starts_at = EXCLUDED.starts_at,
    home_score = EXCLUDED.home_score,
    away_score = EXCLUDED.away_score,
    is_final = EXCLUDED.is_final,
    is_overtime = EXCLUDED.is_overtime,
    updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("build upsert contest query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert contest %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save contests tx: %w", err)
	}
	return nil
}

func (r *ContestRepository) selectContests(ctx context.Context, query string, args []any, op string) ([]contest.Contest, error) {
	var rows []contestTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]contest.Contest, 0, len(rows))
	for _, row := range rows {
		out = append(out, contestToDomain(row))
	}
	return out, nil
}
