package standings

import (
	"context"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
)

// SnapshotRepository describes eligibility snapshot persistence.
//
// CreateAll must reject the whole batch when any (season, picker, scope) row
// already exists; the unique index is the arbiter against concurrent
// snapshot creation.
type SnapshotRepository interface {
	ListBySeason(ctx context.Context, seasonID string, scope pick.Scope) ([]Snapshot, error)
	GetByPicker(ctx context.Context, seasonID, pickerID string, scope pick.Scope) (Snapshot, bool, error)
	CreateAll(ctx context.Context, snapshots []Snapshot) error
	// SetFinalGate rewrites the advances-to-final flag for every snapshot of
	// (season, scope) in one transaction: clears all rows, then sets the
	// given picker ids true.
	SetFinalGate(ctx context.Context, seasonID string, scope pick.Scope, pickerIDs []string) error
}
