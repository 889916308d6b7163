package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/domain/standings"
)

type snapshotKey struct {
	seasonID string
	pickerID string
	poolID   string
}

type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[snapshotKey]standings.Snapshot
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{snapshots: make(map[snapshotKey]standings.Snapshot)}
}

func (r *SnapshotRepository) ListBySeason(_ context.Context, seasonID string, scope pick.Scope) ([]standings.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]standings.Snapshot, 0, len(r.snapshots))
	for key, item := range r.snapshots {
		if key.seasonID == seasonID && key.poolID == scope.PoolID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FinalRank != out[j].FinalRank {
			return out[i].FinalRank < out[j].FinalRank
		}
		return out[i].PickerID < out[j].PickerID
	})
	return out, nil
}

func (r *SnapshotRepository) GetByPicker(_ context.Context, seasonID, pickerID string, scope pick.Scope) (standings.Snapshot, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.snapshots[snapshotKey{seasonID: seasonID, pickerID: pickerID, poolID: scope.PoolID}]
	return item, ok, nil
}

func (r *SnapshotRepository) CreateAll(_ context.Context, snapshots []standings.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range snapshots {
		key := snapshotKey{seasonID: item.SeasonID, pickerID: item.PickerID, poolID: item.Scope.PoolID}
		if _, exists := r.snapshots[key]; exists {
			return fmt.Errorf("snapshot already exists for picker=%s season=%s scope=%s", item.PickerID, item.SeasonID, item.Scope)
		}
	}
	for _, item := range snapshots {
		key := snapshotKey{seasonID: item.SeasonID, pickerID: item.PickerID, poolID: item.Scope.PoolID}
		r.snapshots[key] = item
	}
	return nil
}

func (r *SnapshotRepository) SetFinalGate(_ context.Context, seasonID string, scope pick.Scope, pickerIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	granted := make(map[string]bool, len(pickerIDs))
	for _, id := range pickerIDs {
		granted[id] = true
	}

	for key, item := range r.snapshots {
		if key.seasonID != seasonID || key.poolID != scope.PoolID {
			continue
		}
		item.AdvancesToFinal = granted[item.PickerID]
		r.snapshots[key] = item
	}
	return nil
}
