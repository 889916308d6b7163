package season

import "context"

// Repository describes season persistence needs from use cases.
type Repository interface {
	GetByID(ctx context.Context, seasonID string) (Season, bool, error)
	GetCurrent(ctx context.Context) (Season, bool, error)
	Create(ctx context.Context, s Season) error
	SetCurrentPeriod(ctx context.Context, seasonID string, period int) error
	MarkComplete(ctx context.Context, seasonID string) error
}
