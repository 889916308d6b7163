package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
)

type ContestRepository struct {
	mu       sync.RWMutex
	contests map[string]contest.Contest
}

func NewContestRepository(contests ...contest.Contest) *ContestRepository {
	byID := make(map[string]contest.Contest, len(contests))
	for _, item := range contests {
		byID[item.ID] = item
	}
	return &ContestRepository{contests: byID}
}

func (r *ContestRepository) GetByID(_ context.Context, contestID string) (contest.Contest, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.contests[contestID]
	return item, ok, nil
}

func (r *ContestRepository) ListByWeek(_ context.Context, seasonID string, week int) ([]contest.Contest, error) {
	return r.list(func(c contest.Contest) bool {
		return c.SeasonID == seasonID && c.Week == week
	}), nil
}

func (r *ContestRepository) ListBySeason(_ context.Context, seasonID string) ([]contest.Contest, error) {
	return r.list(func(c contest.Contest) bool {
		return c.SeasonID == seasonID
	}), nil
}

func (r *ContestRepository) ListInProgress(_ context.Context, seasonID string, now time.Time) ([]contest.Contest, error) {
	return r.list(func(c contest.Contest) bool {
		return c.SeasonID == seasonID && !c.IsFinal && !c.StartsAt.After(now)
	}), nil
}

func (r *ContestRepository) ListNearStart(_ context.Context, seasonID string, now time.Time, lookback, lookahead time.Duration) ([]contest.Contest, error) {
	from := now.Add(-lookback)
	until := now.Add(lookahead)
	return r.list(func(c contest.Contest) bool {
		return c.SeasonID == seasonID && !c.IsFinal &&
			!c.StartsAt.Before(from) && !c.StartsAt.After(until)
	}), nil
}

func (r *ContestRepository) SaveAll(_ context.Context, contests []contest.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range contests {
		r.contests[item.ID] = item
	}
	return nil
}

func (r *ContestRepository) list(match func(contest.Contest) bool) []contest.Contest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contest.Contest, 0, len(r.contests))
	for _, item := range r.contests {
		if match(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Week != out[j].Week {
			return out[i].Week < out[j].Week
		}
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
