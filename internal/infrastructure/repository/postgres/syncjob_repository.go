package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pickemlabs/pickem-engine/internal/domain/syncjob"
	qb "github.com/pickemlabs/pickem-engine/internal/platform/querybuilder"
)

type syncJobStatsTableModel struct {
	ID              int64         `db:"id"`
	JobName         string        `db:"job_name"`
	LastRunAt       sql.NullInt64 `db:"last_run_at"`
	LastSuccessAt   sql.NullInt64 `db:"last_success_at"`
	TotalRuns       int           `db:"total_runs"`
	SuccessfulRuns  int           `db:"successful_runs"`
	FailedRuns      int           `db:"failed_runs"`
	LastError       string        `db:"last_error"`
	LastErrorAt     sql.NullInt64 `db:"last_error_at"`
	ContestsUpdated int           `db:"contests_updated"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
	DeletedAt       *time.Time    `db:"deleted_at"`
}

type syncJobStatsInsertModel struct {
	JobName         string `db:"job_name"`
	LastRunAt       *int64 `db:"last_run_at"`
	LastSuccessAt   *int64 `db:"last_success_at"`
	TotalRuns       int    `db:"total_runs"`
	SuccessfulRuns  int    `db:"successful_runs"`
	FailedRuns      int    `db:"failed_runs"`
	LastError       string `db:"last_error"`
	LastErrorAt     *int64 `db:"last_error_at"`
	ContestsUpdated int    `db:"contests_updated"`
}

type syncJobEventInsertModel struct {
	DispatchID      string `db:"dispatch_id"`
	JobName         string `db:"job_name"`
	SeasonID        string `db:"season_public_id"`
	Status          string `db:"status"`
	ContestsChecked int    `db:"contests_checked"`
	ContestsUpdated int    `db:"contests_updated"`
	NewlyFinal      int    `db:"newly_final"`
	ErrorMessage    string `db:"error_message"`
	OccurredAt      int64  `db:"occurred_at"`
	TraceID         string `db:"trace_id"`
	SpanID          string `db:"span_id"`
}

type SyncJobRepository struct {
	db *sqlx.DB
}

func NewSyncJobRepository(db *sqlx.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

func (r *SyncJobRepository) GetStats(ctx context.Context, jobName string) (syncjob.Stats, bool, error) {
	query, args, err := qb.Select("*").From("sync_job_stats").
		Where(
			qb.Eq("job_name", jobName),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return syncjob.Stats{}, false, fmt.Errorf("build get job stats query: %w", err)
	}

	var row syncJobStatsTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return syncjob.Stats{}, false, nil
		}
		return syncjob.Stats{}, false, fmt.Errorf("get job stats: %w", err)
	}

	return jobStatsToDomain(row), true, nil
}

func (r *SyncJobRepository) ListStats(ctx context.Context) ([]syncjob.Stats, error) {
	query, args, err := qb.Select("*").From("sync_job_stats").
		Where(qb.IsNull("deleted_at")).
		OrderBy("job_name").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list job stats query: %w", err)
	}

	var rows []syncJobStatsTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list job stats: %w", err)
	}

	out := make([]syncjob.Stats, 0, len(rows))
	for _, row := range rows {
		out = append(out, jobStatsToDomain(row))
	}
	return out, nil
}

func (r *SyncJobRepository) SaveStats(ctx context.Context, stats syncjob.Stats) error {
	jobName := strings.TrimSpace(stats.JobName)
	if jobName == "" {
		return fmt.Errorf("job name is required")
	}

	insertModel := syncJobStatsInsertModel{
		JobName:         jobName,
		LastRunAt:       nullableUnix(stats.LastRunAt),
		LastSuccessAt:   nullableUnix(stats.LastSuccessAt),
		TotalRuns:       stats.TotalRuns,
		SuccessfulRuns:  stats.SuccessfulRuns,
		FailedRuns:      stats.FailedRuns,
		LastError:       stats.LastError,
		LastErrorAt:     nullableUnix(stats.LastErrorAt),
		ContestsUpdated: stats.ContestsUpdated,
	}
	query, args, err := qb.InsertModel("sync_job_stats", insertModel, `ON CONFLICT (job_name) WHERE deleted_at IS NULL
DO UPDATE SET
    last_run_at = EXCLUDED.last_run_at,
    last_success_at = EXCLUDED.last_success_at,
    total_runs = EXCLUDED.total_runs,
    successful_runs = EXCLUDED.successful_runs,
    failed_runs = EXCLUDED.failed_runs,
    last_error = EXCLUDED.last_error,
    last_error_at = EXCLUDED.last_error_at,
    contests_updated = EXCLUDED.contests_updated,
    updated_at = NOW(),
    deleted_at = NULL`)
	if err != nil {
		return fmt.Errorf("build upsert job stats query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert job stats job=%s: %w", jobName, err)
	}
	return nil
}

func (r *SyncJobRepository) RecordEvent(ctx context.Context, event syncjob.DispatchEvent) error {
	dispatchID := strings.TrimSpace(event.DispatchID)
	if dispatchID == "" {
		return fmt.Errorf("dispatch id is required")
	}
	jobName := strings.TrimSpace(event.JobName)
	if jobName == "" {
		jobName = "unknown"
	}
	occurredAt := event.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	insertModel := syncJobEventInsertModel{
		DispatchID:      dispatchID,
		JobName:         jobName,
		SeasonID:        event.SeasonID,
		Status:          string(event.Status),
		ContestsChecked: event.ContestsChecked,
		ContestsUpdated: event.ContestsUpdated,
		NewlyFinal:      event.NewlyFinal,
		ErrorMessage:    event.ErrorMessage,
		OccurredAt:      timeToUnix(occurredAt),
		TraceID:         event.TraceID,
		SpanID:          event.SpanID,
	}
	query, args, err := qb.InsertModel("sync_job_events", insertModel, `ON CONFLICT (dispatch_id)
DO UPDATE SET
    status = EXCLUDED.status,
    contests_checked = EXCLUDED.contests_checked,
    contests_updated = EXCLUDED.contests_updated,
    newly_final = EXCLUDED.newly_final,
    error_message = EXCLUDED.error_message,
    occurred_at = EXCLUDED.occurred_at,
    trace_id = EXCLUDED.trace_id,
    span_id = EXCLUDED.span_id`)
	if err != nil {
		return fmt.Errorf("build record job event query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record job event dispatch_id=%s status=%s: %w", dispatchID, event.Status, err)
	}
	return nil
}

func jobStatsToDomain(row syncJobStatsTableModel) syncjob.Stats {
	return syncjob.Stats{
		JobName:         row.JobName,
		LastRunAt:       nullUnixToTimePtr(row.LastRunAt),
		LastSuccessAt:   nullUnixToTimePtr(row.LastSuccessAt),
		TotalRuns:       row.TotalRuns,
		SuccessfulRuns:  row.SuccessfulRuns,
		FailedRuns:      row.FailedRuns,
		LastError:       row.LastError,
		LastErrorAt:     nullUnixToTimePtr(row.LastErrorAt),
		ContestsUpdated: row.ContestsUpdated,
	}
}
