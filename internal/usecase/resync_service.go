package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
	"github.com/pickemlabs/pickem-engine/internal/domain/season"
	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
)

type ResyncInput struct {
	SeasonID   string
	MaxWorkers int
	// Weeks narrows the resync; empty means every week of the season.
	Weeks []int
	// DryRun computes changes without writing them.
	DryRun bool
}

type ResyncResult struct {
	SeasonID     string             `json:"season_id"`
	TaskCount    int                `json:"task_count"`
	SuccessCount int                `json:"success_count"`
	FailedCount  int                `json:"failed_count"`
	SkippedCount int                `json:"skipped_count"`
	WorkerCount  int                `json:"worker_count"`
	Tasks        []ResyncTaskResult `json:"tasks"`
}

type ResyncTaskResult struct {
	Week          int    `json:"week"`
	Status        string `json:"status"`
	ContestsSaved int    `json:"contests_saved"`
	PicksRescored int    `json:"picks_rescored"`
	DurationMs    int64  `json:"duration_ms"`
	Message       string `json:"message,omitempty"`
}

const (
	resyncStatusSuccess = "success"
	resyncStatusFailed  = "failed"
	resyncStatusSkipped = "skipped"

	defaultResyncWorkers = 4
	maxResyncWorkers     = 16
)

// ResyncService is the manual recovery path: it re-pulls feed results for
// whole weeks and re-scores every final contest's picks, including contests
// the scheduled ticks would leave untouched because they were already final.
type ResyncService struct {
	seasonRepo  season.Repository
	contestRepo contest.Repository
	sync        *SyncService
	logger      *logging.Logger
	now         func() time.Time
}

func NewResyncService(
	seasonRepo season.Repository,
	contestRepo contest.Repository,
	syncService *SyncService,
	logger *logging.Logger,
) *ResyncService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ResyncService{
		seasonRepo:  seasonRepo,
		contestRepo: contestRepo,
		sync:        syncService,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *ResyncService) Resync(ctx context.Context, input ResyncInput) (ResyncResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ResyncService.Resync")
	defer span.End()

	if input.SeasonID == "" {
		return ResyncResult{}, fmt.Errorf("%w: season is required", ErrInvalidInput)
	}

	seasonRow, found, err := s.seasonRepo.GetByID(ctx, input.SeasonID)
	if err != nil {
		return ResyncResult{}, fmt.Errorf("get season: %w", err)
	}
	if !found {
		return ResyncResult{}, fmt.Errorf("%w: season %s", ErrNotFound, input.SeasonID)
	}

	weeks := input.Weeks
	if len(weeks) == 0 {
		for week := 1; week <= seasonRow.FinalWeek(); week++ {
			weeks = append(weeks, week)
		}
	}
	for _, week := range weeks {
		if week < 1 || week > seasonRow.FinalWeek() {
			return ResyncResult{}, fmt.Errorf("%w: week %d is outside the season", ErrInvalidInput, week)
		}
	}

	workerCount := input.MaxWorkers
	if workerCount <= 0 {
		workerCount = defaultResyncWorkers
	}
	if workerCount > maxResyncWorkers {
		workerCount = maxResyncWorkers
	}

	result := ResyncResult{
		SeasonID:    input.SeasonID,
		TaskCount:   len(weeks),
		WorkerCount: workerCount,
	}

	var successCount atomic.Int32
	var failedCount atomic.Int32
	var skippedCount atomic.Int32
	rows := make(chan ResyncTaskResult, len(weeks))

	workers := pool.New().WithMaxGoroutines(workerCount)
	for _, week := range weeks {
		week := week
		workers.Go(func() {
			start := s.now()
			row := ResyncTaskResult{Week: week}

			saved, rescored, err := s.resyncWeek(ctx, input.SeasonID, week, input.DryRun)
			row.ContestsSaved = saved
			row.PicksRescored = rescored
			row.DurationMs = time.Since(start).Milliseconds()
			switch {
			case err != nil:
				row.Status = resyncStatusFailed
				row.Message = err.Error()
				failedCount.Add(1)
			case saved == 0 && rescored == 0:
				row.Status = resyncStatusSkipped
				row.Message = "no contests matched"
				skippedCount.Add(1)
			default:
				row.Status = resyncStatusSuccess
				successCount.Add(1)
			}

			rows <- row
		})
	}
	workers.Wait()
	close(rows)

	for row := range rows {
		result.Tasks = append(result.Tasks, row)
	}
	sort.SliceStable(result.Tasks, func(i, j int) bool {
		return result.Tasks[i].Week < result.Tasks[j].Week
	})

	result.SuccessCount = int(successCount.Load())
	result.FailedCount = int(failedCount.Load())
	result.SkippedCount = int(skippedCount.Load())

	if !input.DryRun && result.SuccessCount > 0 {
		s.sync.standings.InvalidateLeaderboards(ctx, input.SeasonID)
	}

	return result, nil
}

// resyncWeek pulls current feed state for one week, writes contest changes,
// and re-scores every final contest of the week.
func (s *ResyncService) resyncWeek(ctx context.Context, seasonID string, week int, dryRun bool) (int, int, error) {
	contests, err := s.contestRepo.ListByWeek(ctx, seasonID, week)
	if err != nil {
		return 0, 0, fmt.Errorf("list contests: %w", err)
	}
	if len(contests) == 0 {
		return 0, 0, nil
	}

	open := make([]contest.Contest, 0, len(contests))
	for _, c := range contests {
		if !c.IsFinal {
			open = append(open, c)
		}
	}

	changed := make([]contest.Contest, 0, len(open))
	for _, c := range open {
		result, err := s.sync.feed.GetContestResult(ctx, c.ID)
		if err != nil {
			return 0, 0, fmt.Errorf("query results feed for contest %s: %w", c.ID, err)
		}
		next, isChanged := applyFeedResult(c, result)
		if isChanged {
			changed = append(changed, next)
		}
	}

	if dryRun {
		return len(changed), 0, nil
	}

	if len(changed) > 0 {
		if err := s.contestRepo.SaveAll(ctx, changed); err != nil {
			return 0, 0, fmt.Errorf("save contests: %w", err)
		}
	}

	// Rescore everything final in the week, not just new finals: this is
	// the recovery path for a previously failed phase 2.
	changedByID := make(map[string]contest.Contest, len(changed))
	for _, c := range changed {
		changedByID[c.ID] = c
	}
	finals := make([]contest.Contest, 0, len(contests))
	for _, c := range contests {
		if next, ok := changedByID[c.ID]; ok {
			c = next
		}
		if c.IsFinal {
			finals = append(finals, c)
		}
	}

	rescored, err := s.sync.rescoreContests(ctx, finals)
	if err != nil {
		return len(changed), rescored, err
	}

	return len(changed), rescored, nil
}
