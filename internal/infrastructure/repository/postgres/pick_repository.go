package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	qb "github.com/pickemlabs/pickem-engine/internal/platform/querybuilder"
)

type PickRepository struct {
	db *sqlx.DB
}

func NewPickRepository(db *sqlx.DB) *PickRepository {
	return &PickRepository{db: db}
}

func (r *PickRepository) GetByID(ctx context.Context, pickID string) (pick.Pick, bool, error) {
	query, args, err := qb.Select("*").From("picks").
		Where(
			qb.Eq("public_id", pickID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return pick.Pick{}, false, fmt.Errorf("build get pick by id query: %w", err)
	}

	var row pickTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return pick.Pick{}, false, nil
		}
		return pick.Pick{}, false, fmt.Errorf("get pick by id: %w", err)
	}

	return pickToDomain(row), true, nil
}

func (r *PickRepository) GetActive(ctx context.Context, pickerID, seasonID string, week int, scope pick.Scope) (pick.Pick, bool, error) {
	query, args, err := qb.Select("*").From("picks").
		Where(
			qb.Eq("picker_id", pickerID),
			qb.Eq("season_public_id", seasonID),
			qb.Eq("week", week),
			qb.Eq("pool_public_id", scope.PoolID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return pick.Pick{}, false, fmt.Errorf("build get active pick query: %w", err)
	}

	var row pickTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return pick.Pick{}, false, nil
		}
		return pick.Pick{}, false, fmt.Errorf("get active pick: %w", err)
	}

	return pickToDomain(row), true, nil
}

func (r *PickRepository) ListByPicker(ctx context.Context, pickerID, seasonID string, scope pick.Scope) ([]pick.Pick, error) {
	query, args, err := qb.Select("*").From("picks").
		Where(
			qb.Eq("picker_id", pickerID),
			qb.Eq("season_public_id", seasonID),
			qb.Eq("pool_public_id", scope.PoolID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("week", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list picks by picker query: %w", err)
	}

	return r.selectPicks(ctx, query, args, "list picks by picker")
}

func (r *PickRepository) ListByContest(ctx context.Context, contestID string) ([]pick.Pick, error) {
	query, args, err := qb.Select("*").From("picks").
		Where(
			qb.Eq("contest_public_id", contestID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("picker_id", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list picks by contest query: %w", err)
	}

	return r.selectPicks(ctx, query, args, "list picks by contest")
}

func (r *PickRepository) ListBySeason(ctx context.Context, seasonID string, scope pick.Scope) ([]pick.Pick, error) {
	query, args, err := qb.Select("*").From("picks").
		Where(
			qb.Eq("season_public_id", seasonID),
			qb.Eq("pool_public_id", scope.PoolID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("week", "picker_id", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list picks by season query: %w", err)
	}

	return r.selectPicks(ctx, query, args, "list picks by season")
}

func (r *PickRepository) Create(ctx context.Context, p pick.Pick) error {
	query, args, err := qb.InsertModel("picks", pickToInsertModel(p), "")
	if err != nil {
		return fmt.Errorf("build insert pick query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("pick already exists for picker=%s week=%d scope=%s: %w", p.PickerID, p.Week, p.Scope, err)
		}
		return fmt.Errorf("insert pick: %w", err)
	}
	return nil
}

// Replace soft-deletes the superseded pick and inserts the replacement in
// one transaction, so the unique active-pick index never sees both rows.
func (r *PickRepository) Replace(ctx context.Context, supersededID string, p pick.Pick) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx replace pick: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	deleteQuery, deleteArgs, err := qb.Update("picks").
		SetExpr("deleted_at", "NOW()").
		Where(
			qb.Eq("public_id", supersededID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete superseded pick query: %w", err)
	}
	result, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...)
	if err != nil {
		return fmt.Errorf("delete superseded pick: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("superseded pick %s not found", supersededID)
	}

	insertQuery, insertArgs, err := qb.InsertModel("picks", pickToInsertModel(p), "")
	if err != nil {
		return fmt.Errorf("build insert replacement pick query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return fmt.Errorf("insert replacement pick: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace pick tx: %w", err)
	}
	return nil
}

func (r *PickRepository) Delete(ctx context.Context, pickID string) error {
	query, args, err := qb.Update("picks").
		SetExpr("deleted_at", "NOW()").
		Where(
			qb.Eq("public_id", pickID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete pick query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete pick: %w", err)
	}
	return nil
}

// SaveResults writes result fields for every pick in one transaction.
func (r *PickRepository) SaveResults(ctx context.Context, picks []pick.Pick) error {
	if len(picks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save pick results: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, p := range picks {
		query, args, err := qb.Update("picks").
			Set("outcome", string(p.Outcome)).
			Set("points", p.Points).
			Set("tiebreak_value", p.TiebreakValue).
			SetExpr("updated_at", "NOW()").
			Where(
				qb.Eq("public_id", p.ID),
				qb.IsNull("deleted_at"),
			).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build save pick result query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save pick result %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save pick results tx: %w", err)
	}
	return nil
}

func (r *PickRepository) selectPicks(ctx context.Context, query string, args []any, op string) ([]pick.Pick, error) {
	var rows []pickTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]pick.Pick, 0, len(rows))
	for _, row := range rows {
		out = append(out, pickToDomain(row))
	}
	return out, nil
}
