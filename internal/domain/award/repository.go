package award

import (
	"context"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
)

// Repository describes award persistence needs from use cases.
type Repository interface {
	ListBySeason(ctx context.Context, seasonID string, scope pick.Scope) ([]Award, error)
	// CreateIfAbsent inserts a and reports whether a new row was written.
	// An existing (season, picker, scope, type) row makes it a no-op.
	CreateIfAbsent(ctx context.Context, a Award) (bool, error)
}
