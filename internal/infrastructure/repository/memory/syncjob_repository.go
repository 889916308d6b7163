package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pickemlabs/pickem-engine/internal/domain/syncjob"
)

type SyncJobRepository struct {
	mu     sync.RWMutex
	stats  map[string]syncjob.Stats
	events []syncjob.DispatchEvent
}

func NewSyncJobRepository() *SyncJobRepository {
	return &SyncJobRepository{stats: make(map[string]syncjob.Stats)}
}

func (r *SyncJobRepository) GetStats(_ context.Context, jobName string) (syncjob.Stats, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.stats[jobName]
	return item, ok, nil
}

func (r *SyncJobRepository) ListStats(_ context.Context) ([]syncjob.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]syncjob.Stats, 0, len(r.stats))
	for _, item := range r.stats {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].JobName < out[j].JobName
	})
	return out, nil
}

func (r *SyncJobRepository) SaveStats(_ context.Context, stats syncjob.Stats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats[stats.JobName] = stats
	return nil
}

func (r *SyncJobRepository) RecordEvent(_ context.Context, event syncjob.DispatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded tick audit trail, oldest first.
func (r *SyncJobRepository) Events() []syncjob.DispatchEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]syncjob.DispatchEvent, len(r.events))
	copy(out, r.events)
	return out
}
