package syncjob

import "context"

// Repository persists job statistics and tick audit events so the
// operational surface survives restarts.
type Repository interface {
	GetStats(ctx context.Context, jobName string) (Stats, bool, error)
	ListStats(ctx context.Context) ([]Stats, error)
	SaveStats(ctx context.Context, stats Stats) error
	RecordEvent(ctx context.Context, event DispatchEvent) error
}
