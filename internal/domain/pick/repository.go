package pick

import "context"

// Repository describes pick persistence needs from use cases.
//
// Scope filtering follows the stream model: a global-scope lookup only sees
// global-scope picks and a per-pool lookup only sees that pool's picks.
// The store enforces the one-active-pick-per-(picker, week, scope) constraint
// with a unique index; Replace deletes the superseded pick and inserts the
// new one in one transaction.
type Repository interface {
	GetByID(ctx context.Context, pickID string) (Pick, bool, error)
	// GetActive returns the picker's active pick for a week, if any.
	GetActive(ctx context.Context, pickerID, seasonID string, week int, scope Scope) (Pick, bool, error)
	ListByPicker(ctx context.Context, pickerID, seasonID string, scope Scope) ([]Pick, error)
	ListByContest(ctx context.Context, contestID string) ([]Pick, error)
	ListBySeason(ctx context.Context, seasonID string, scope Scope) ([]Pick, error)
	Create(ctx context.Context, p Pick) error
	// Replace atomically deletes supersededID and creates p.
	Replace(ctx context.Context, supersededID string, p Pick) error
	Delete(ctx context.Context, pickID string) error
	// SaveResults writes scored result fields for all given picks in one
	// transaction; all rows update or none do.
	SaveResults(ctx context.Context, picks []Pick) error
}
