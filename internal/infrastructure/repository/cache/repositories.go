// Package cache wraps repositories with a read-through cache. Time-sensitive
// queries (in-progress and near-start contest scans) intentionally bypass it.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/domain/season"
	"github.com/pickemlabs/pickem-engine/internal/domain/standings"
	"github.com/pickemlabs/pickem-engine/internal/domain/team"
	basecache "github.com/pickemlabs/pickem-engine/internal/platform/cache"
)

type SeasonRepository struct {
	next  season.Repository
	cache *basecache.Store
}

func NewSeasonRepository(next season.Repository, cache *basecache.Store) *SeasonRepository {
	return &SeasonRepository{next: next, cache: cache}
}

func (r *SeasonRepository) GetByID(ctx context.Context, seasonID string) (season.Season, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, "season:id:"+seasonID, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, seasonID)
		if err != nil {
			return nil, err
		}
		return cachedSeason{value: item, exists: exists}, nil
	})
	if err != nil {
		return season.Season{}, false, err
	}

	cached, _ := v.(cachedSeason)
	return cached.value, cached.exists, nil
}

func (r *SeasonRepository) GetCurrent(ctx context.Context) (season.Season, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, "season:current", func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetCurrent(ctx)
		if err != nil {
			return nil, err
		}
		return cachedSeason{value: item, exists: exists}, nil
	})
	if err != nil {
		return season.Season{}, false, err
	}

	cached, _ := v.(cachedSeason)
	return cached.value, cached.exists, nil
}

func (r *SeasonRepository) Create(ctx context.Context, s season.Season) error {
	if err := r.next.Create(ctx, s); err != nil {
		return err
	}
	r.invalidate(ctx, s.ID)
	return nil
}

func (r *SeasonRepository) SetCurrentPeriod(ctx context.Context, seasonID string, period int) error {
	if err := r.next.SetCurrentPeriod(ctx, seasonID, period); err != nil {
		return err
	}
	r.invalidate(ctx, seasonID)
	return nil
}

func (r *SeasonRepository) MarkComplete(ctx context.Context, seasonID string) error {
	if err := r.next.MarkComplete(ctx, seasonID); err != nil {
		return err
	}
	r.invalidate(ctx, seasonID)
	return nil
}

func (r *SeasonRepository) invalidate(ctx context.Context, seasonID string) {
	r.cache.Delete(ctx, "season:id:"+seasonID)
	r.cache.Delete(ctx, "season:current")
}

type cachedSeason struct {
	value  season.Season
	exists bool
}

type TeamRepository struct {
	next  team.Repository
	cache *basecache.Store
}

func NewTeamRepository(next team.Repository, cache *basecache.Store) *TeamRepository {
	return &TeamRepository{next: next, cache: cache}
}

func (r *TeamRepository) ListBySeason(ctx context.Context, seasonID string) ([]team.Team, error) {
	v, err := r.cache.GetOrLoad(ctx, "team:list:"+seasonID, func(ctx context.Context) (any, error) {
		items, err := r.next.ListBySeason(ctx, seasonID)
		if err != nil {
			return nil, err
		}
		return append([]team.Team(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]team.Team)
	return append([]team.Team(nil), items...), nil
}

func (r *TeamRepository) GetByID(ctx context.Context, seasonID, teamID string) (team.Team, bool, error) {
	key := "team:id:" + seasonID + ":" + teamID
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, seasonID, teamID)
		if err != nil {
			return nil, err
		}
		return cachedTeam{value: item, exists: exists}, nil
	})
	if err != nil {
		return team.Team{}, false, err
	}

	cached, _ := v.(cachedTeam)
	return cached.value, cached.exists, nil
}

type cachedTeam struct {
	value  team.Team
	exists bool
}

type ContestRepository struct {
	next  contest.Repository
	cache *basecache.Store
}

func NewContestRepository(next contest.Repository, cache *basecache.Store) *ContestRepository {
	return &ContestRepository{next: next, cache: cache}
}

func (r *ContestRepository) GetByID(ctx context.Context, contestID string) (contest.Contest, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, "contest:id:"+contestID, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, contestID)
		if err != nil {
			return nil, err
		}
		return cachedContest{value: item, exists: exists}, nil
	})
	if err != nil {
		return contest.Contest{}, false, err
	}

	cached, _ := v.(cachedContest)
	return cached.value, cached.exists, nil
}

func (r *ContestRepository) ListByWeek(ctx context.Context, seasonID string, week int) ([]contest.Contest, error) {
	key := "contest:week:" + seasonID + ":" + strconv.Itoa(week)
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		items, err := r.next.ListByWeek(ctx, seasonID, week)
		if err != nil {
			return nil, err
		}
		return append([]contest.Contest(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]contest.Contest)
	return append([]contest.Contest(nil), items...), nil
}

func (r *ContestRepository) ListBySeason(ctx context.Context, seasonID string) ([]contest.Contest, error) {
	v, err := r.cache.GetOrLoad(ctx, "contest:season:"+seasonID, func(ctx context.Context) (any, error) {
		items, err := r.next.ListBySeason(ctx, seasonID)
		if err != nil {
			return nil, err
		}
		return append([]contest.Contest(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]contest.Contest)
	return append([]contest.Contest(nil), items...), nil
}

func (r *ContestRepository) ListInProgress(ctx context.Context, seasonID string, now time.Time) ([]contest.Contest, error) {
	return r.next.ListInProgress(ctx, seasonID, now)
}

func (r *ContestRepository) ListNearStart(ctx context.Context, seasonID string, now time.Time, lookback, lookahead time.Duration) ([]contest.Contest, error) {
	return r.next.ListNearStart(ctx, seasonID, now, lookback, lookahead)
}

func (r *ContestRepository) SaveAll(ctx context.Context, contests []contest.Contest) error {
	if err := r.next.SaveAll(ctx, contests); err != nil {
		return err
	}
	r.cache.DeletePrefix(ctx, "contest:")
	return nil
}

type cachedContest struct {
	value  contest.Contest
	exists bool
}

type SnapshotRepository struct {
	next  standings.SnapshotRepository
	cache *basecache.Store
}

func NewSnapshotRepository(next standings.SnapshotRepository, cache *basecache.Store) *SnapshotRepository {
	return &SnapshotRepository{next: next, cache: cache}
}

func (r *SnapshotRepository) ListBySeason(ctx context.Context, seasonID string, scope pick.Scope) ([]standings.Snapshot, error) {
	key := "snapshot:list:" + seasonID + ":" + scope.String()
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		items, err := r.next.ListBySeason(ctx, seasonID, scope)
		if err != nil {
			return nil, err
		}
		return append([]standings.Snapshot(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]standings.Snapshot)
	return append([]standings.Snapshot(nil), items...), nil
}

func (r *SnapshotRepository) GetByPicker(ctx context.Context, seasonID, pickerID string, scope pick.Scope) (standings.Snapshot, bool, error) {
	key := "snapshot:picker:" + seasonID + ":" + pickerID + ":" + scope.String()
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByPicker(ctx, seasonID, pickerID, scope)
		if err != nil {
			return nil, err
		}
		return cachedSnapshot{value: item, exists: exists}, nil
	})
	if err != nil {
		return standings.Snapshot{}, false, err
	}

	cached, _ := v.(cachedSnapshot)
	return cached.value, cached.exists, nil
}

func (r *SnapshotRepository) CreateAll(ctx context.Context, snapshots []standings.Snapshot) error {
	if err := r.next.CreateAll(ctx, snapshots); err != nil {
		return err
	}
	r.cache.DeletePrefix(ctx, "snapshot:")
	return nil
}

func (r *SnapshotRepository) SetFinalGate(ctx context.Context, seasonID string, scope pick.Scope, pickerIDs []string) error {
	if err := r.next.SetFinalGate(ctx, seasonID, scope, pickerIDs); err != nil {
		return err
	}
	r.cache.DeletePrefix(ctx, "snapshot:")
	return nil
}

type cachedSnapshot struct {
	value  standings.Snapshot
	exists bool
}
