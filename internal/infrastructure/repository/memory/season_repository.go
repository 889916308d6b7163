// Package memory holds in-memory repository implementations backing tests
// and local development. They mirror the postgres repositories' semantics,
// including the unique constraints the database would enforce.
package memory

import (
	"context"
	"sync"

	"github.com/pickemlabs/pickem-engine/internal/domain/season"
)

type SeasonRepository struct {
	mu      sync.RWMutex
	seasons map[string]season.Season
}

func NewSeasonRepository(seasons ...season.Season) *SeasonRepository {
	byID := make(map[string]season.Season, len(seasons))
	for _, item := range seasons {
		byID[item.ID] = item
	}
	return &SeasonRepository{seasons: byID}
}

func (r *SeasonRepository) GetByID(_ context.Context, seasonID string) (season.Season, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.seasons[seasonID]
	return item, ok, nil
}

func (r *SeasonRepository) GetCurrent(_ context.Context) (season.Season, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.seasons {
		if item.IsCurrent {
			return item, true, nil
		}
	}
	return season.Season{}, false, nil
}

func (r *SeasonRepository) Create(_ context.Context, s season.Season) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seasons[s.ID] = s
	return nil
}

func (r *SeasonRepository) SetCurrentPeriod(_ context.Context, seasonID string, period int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.seasons[seasonID]
	if !ok {
		return nil
	}
	item.CurrentPeriod = period
	r.seasons[seasonID] = item
	return nil
}

func (r *SeasonRepository) MarkComplete(_ context.Context, seasonID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.seasons[seasonID]
	if !ok {
		return nil
	}
	item.IsComplete = true
	r.seasons[seasonID] = item
	return nil
}
