package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
)

type PickRepository struct {
	mu    sync.RWMutex
	picks map[string]pick.Pick
}

func NewPickRepository(picks ...pick.Pick) *PickRepository {
	byID := make(map[string]pick.Pick, len(picks))
	for _, item := range picks {
		byID[item.ID] = item
	}
	return &PickRepository{picks: byID}
}

func (r *PickRepository) GetByID(_ context.Context, pickID string) (pick.Pick, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.picks[pickID]
	return item, ok, nil
}

func (r *PickRepository) GetActive(_ context.Context, pickerID, seasonID string, week int, scope pick.Scope) (pick.Pick, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.picks {
		if item.PickerID == pickerID && item.SeasonID == seasonID && item.Week == week && item.Scope == scope {
			return item, true, nil
		}
	}
	return pick.Pick{}, false, nil
}

func (r *PickRepository) ListByPicker(_ context.Context, pickerID, seasonID string, scope pick.Scope) ([]pick.Pick, error) {
	return r.list(func(p pick.Pick) bool {
		return p.PickerID == pickerID && p.SeasonID == seasonID && p.Scope == scope
	}), nil
}

func (r *PickRepository) ListByContest(_ context.Context, contestID string) ([]pick.Pick, error) {
	return r.list(func(p pick.Pick) bool {
		return p.ContestID == contestID
	}), nil
}

func (r *PickRepository) ListBySeason(_ context.Context, seasonID string, scope pick.Scope) ([]pick.Pick, error) {
	return r.list(func(p pick.Pick) bool {
		return p.SeasonID == seasonID && p.Scope == scope
	}), nil
}

func (r *PickRepository) Create(_ context.Context, p pick.Pick) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.insertLocked(p)
}

func (r *PickRepository) Replace(_ context.Context, supersededID string, p pick.Pick) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.picks[supersededID]; !ok {
		return fmt.Errorf("superseded pick %s not found", supersededID)
	}
	delete(r.picks, supersededID)
	if err := r.insertLocked(p); err != nil {
		return err
	}
	return nil
}

func (r *PickRepository) Delete(_ context.Context, pickID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.picks, pickID)
	return nil
}

func (r *PickRepository) SaveResults(_ context.Context, picks []pick.Pick) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range picks {
		if _, ok := r.picks[p.ID]; !ok {
			return fmt.Errorf("pick %s not found", p.ID)
		}
	}
	for _, p := range picks {
		stored := r.picks[p.ID]
		stored.Outcome = p.Outcome
		stored.Points = p.Points
		stored.TiebreakValue = p.TiebreakValue
		r.picks[p.ID] = stored
	}
	return nil
}

// insertLocked enforces the one-active-pick-per-(picker, week, scope)
// constraint the database index would.
func (r *PickRepository) insertLocked(p pick.Pick) error {
	for _, item := range r.picks {
		if item.PickerID == p.PickerID && item.SeasonID == p.SeasonID && item.Week == p.Week && item.Scope == p.Scope {
			return fmt.Errorf("pick already exists for picker=%s week=%d scope=%s", p.PickerID, p.Week, p.Scope)
		}
	}
	r.picks[p.ID] = p
	return nil
}

func (r *PickRepository) list(match func(pick.Pick) bool) []pick.Pick {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]pick.Pick, 0, len(r.picks))
	for _, item := range r.picks {
		if match(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Week != out[j].Week {
			return out[i].Week < out[j].Week
		}
		if out[i].PickerID != out[j].PickerID {
			return out[i].PickerID < out[j].PickerID
		}
		return out[i].ID < out[j].ID
	})
	return out
}
