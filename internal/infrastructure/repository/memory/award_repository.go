package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pickemlabs/pickem-engine/internal/domain/award"
	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
)

type awardKey struct {
	seasonID  string
	pickerID  string
	poolID    string
	awardType award.Type
}

type AwardRepository struct {
	mu     sync.RWMutex
	awards map[awardKey]award.Award
}

func NewAwardRepository() *AwardRepository {
	return &AwardRepository{awards: make(map[awardKey]award.Award)}
}

func (r *AwardRepository) ListBySeason(_ context.Context, seasonID string, scope pick.Scope) ([]award.Award, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]award.Award, 0, len(r.awards))
	for key, item := range r.awards {
		if key.seasonID == seasonID && key.poolID == scope.PoolID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].PickerID < out[j].PickerID
	})
	return out, nil
}

func (r *AwardRepository) CreateIfAbsent(_ context.Context, a award.Award) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := awardKey{seasonID: a.SeasonID, pickerID: a.PickerID, poolID: a.Scope.PoolID, awardType: a.Type}
	if _, exists := r.awards[key]; exists {
		return false, nil
	}
	r.awards[key] = a
	return true, nil
}
