package contest

import (
	"context"
	"time"
)

// Repository describes contest persistence needs from use cases.
//
// UpdateScores is the only score-mutating operation and is reserved for the
// results synchronizer; all multi-row updates inside one sync phase must be
// written through SaveAll so they commit atomically.
type Repository interface {
	GetByID(ctx context.Context, contestID string) (Contest, bool, error)
	ListByWeek(ctx context.Context, seasonID string, week int) ([]Contest, error)
	ListBySeason(ctx context.Context, seasonID string) ([]Contest, error)
	// ListInProgress returns contests that started before now and are not final.
	ListInProgress(ctx context.Context, seasonID string, now time.Time) ([]Contest, error)
	// ListNearStart returns non-final contests starting inside [now-lookback, now+lookahead].
	ListNearStart(ctx context.Context, seasonID string, now time.Time, lookback, lookahead time.Duration) ([]Contest, error)
	SaveAll(ctx context.Context, contests []Contest) error
}
