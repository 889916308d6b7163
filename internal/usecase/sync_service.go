package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/domain/season"
	"github.com/pickemlabs/pickem-engine/internal/domain/syncjob"
	idgen "github.com/pickemlabs/pickem-engine/internal/platform/id"
	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
)

// ResultsFeed is the read-only external source of schedules and scores.
type ResultsFeed interface {
	ListContests(ctx context.Context, week int) ([]FeedContest, error)
	GetContestResult(ctx context.Context, contestID string) (FeedResult, error)
}

type FeedContest struct {
	ContestID string
	Week      int
	StartsAt  time.Time
	HomeScore *int
	AwayScore *int
	IsFinal   bool
}

type FeedResult struct {
	HomeScore  *int
	AwayScore  *int
	IsFinal    bool
	IsOvertime bool
}

// Broadcaster receives fire-and-forget change notifications. Delivery is
// best-effort and never affects correctness.
type Broadcaster interface {
	Publish(topic string, payload any)
}

const (
	TopicScoreUpdate = "score_update"
	TopicGameFinal   = "game_final"
	TopicPickResult  = "pick_result"
)

type SyncConfig struct {
	WorkerCount       int
	NearStartLookback time.Duration
	NearStartAhead    time.Duration
}

const defaultSyncWorkerCount = 8

// SyncService pulls external results into contest rows and cascades
// rescoring for contests that just became final. Every tick is two ordered
// transactions: contest scores first, dependent pick results second, so a
// crash between the phases never loses a committed score update.
type SyncService struct {
	seasonRepo  season.Repository
	contestRepo contest.Repository
	pickRepo    pick.Repository
	jobRepo     syncjob.Repository
	feed        ResultsFeed
	broadcaster Broadcaster
	standings   *StandingsService
	snapshots   *SnapshotService
	idGen       idgen.Generator
	cfg         SyncConfig
	logger      *logging.Logger
	now         func() time.Time

	// tickMu prevents overlapping ticks of the same job family; a tick that
	// finds its family busy is dropped, not queued.
	tickMu   sync.Mutex
	inFlight map[string]bool
}

type TickReport struct {
	JobName         string
	ContestsChecked int
	ContestsUpdated int
	NewlyFinal      int
	PicksRescored   int
	Skipped         bool
}

func NewSyncService(
	seasonRepo season.Repository,
	contestRepo contest.Repository,
	pickRepo pick.Repository,
	jobRepo syncjob.Repository,
	feed ResultsFeed,
	broadcaster Broadcaster,
	standingsService *StandingsService,
	snapshotService *SnapshotService,
	idGen idgen.Generator,
	cfg SyncConfig,
	logger *logging.Logger,
) *SyncService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaultSyncWorkerCount
	}
	if cfg.NearStartLookback <= 0 {
		cfg.NearStartLookback = 6 * time.Hour
	}
	if cfg.NearStartAhead <= 0 {
		cfg.NearStartAhead = time.Hour
	}

	return &SyncService{
		seasonRepo:  seasonRepo,
		contestRepo: contestRepo,
		pickRepo:    pickRepo,
		jobRepo:     jobRepo,
		feed:        feed,
		broadcaster: broadcaster,
		standings:   standingsService,
		snapshots:   snapshotService,
		idGen:       idGen,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		inFlight:    make(map[string]bool),
	}
}

// RunLiveTick polls only contests already in progress.
func (s *SyncService) RunLiveTick(ctx context.Context) (TickReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.RunLiveTick")
	defer span.End()

	return s.runTick(ctx, syncjob.JobLive, func(ctx context.Context, current season.Season) ([]contest.Contest, error) {
		return s.contestRepo.ListInProgress(ctx, current.ID, s.now().UTC())
	}, false)
}

// RunStatusTick polls contests near their start time and, after phase 2,
// checks whether the season just completed.
func (s *SyncService) RunStatusTick(ctx context.Context) (TickReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.RunStatusTick")
	defer span.End()

	report, err := s.runTick(ctx, syncjob.JobStatus, func(ctx context.Context, current season.Season) ([]contest.Contest, error) {
		return s.contestRepo.ListNearStart(ctx, current.ID, s.now().UTC(), s.cfg.NearStartLookback, s.cfg.NearStartAhead)
	}, false)
	if err != nil {
		return report, err
	}

	if err := s.checkSeasonCompletion(ctx); err != nil {
		s.logger.ErrorContext(ctx, "season completion check failed", "error", err)
	}
	return report, nil
}

// RunDailyTick resyncs every non-final contest of the current season.
func (s *SyncService) RunDailyTick(ctx context.Context) (TickReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.RunDailyTick")
	defer span.End()

	return s.runTick(ctx, syncjob.JobDaily, func(ctx context.Context, current season.Season) ([]contest.Contest, error) {
		contests, err := s.contestRepo.ListBySeason(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		open := contests[:0]
		for _, c := range contests {
			if !c.IsFinal {
				open = append(open, c)
			}
		}
		return open, nil
	}, false)
}

// RunWeeklyTick advances the season's current period to the first week that
// still has unfinished contests.
func (s *SyncService) RunWeeklyTick(ctx context.Context) (TickReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.RunWeeklyTick")
	defer span.End()

	report := TickReport{JobName: syncjob.JobWeekly}
	if !s.acquireTick(syncjob.JobWeekly) {
		report.Skipped = true
		return report, nil
	}
	defer s.releaseTick(syncjob.JobWeekly)

	current, found, err := s.seasonRepo.GetCurrent(ctx)
	if err != nil {
		return s.finishTick(ctx, report, fmt.Errorf("get current season: %w", err))
	}
	if !found || current.IsComplete {
		return s.finishTick(ctx, report, nil)
	}

	contests, err := s.contestRepo.ListBySeason(ctx, current.ID)
	if err != nil {
		return s.finishTick(ctx, report, fmt.Errorf("list season contests: %w", err))
	}

	period := currentPeriodFromContests(contests, current.FinalWeek())
	if period != current.CurrentPeriod {
		if err := s.seasonRepo.SetCurrentPeriod(ctx, current.ID, period); err != nil {
			return s.finishTick(ctx, report, fmt.Errorf("advance period: %w", err))
		}
		s.logger.InfoContext(ctx, "advanced season period", "season_id", current.ID, "period", period)
	}

	return s.finishTick(ctx, report, nil)
}

// ForceSync runs one named job family outside its schedule.
func (s *SyncService) ForceSync(ctx context.Context, jobName string) (TickReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.ForceSync")
	defer span.End()

	switch jobName {
	case syncjob.JobLive:
		return s.RunLiveTick(ctx)
	case syncjob.JobStatus:
		return s.RunStatusTick(ctx)
	case syncjob.JobDaily:
		return s.RunDailyTick(ctx)
	case syncjob.JobWeekly:
		return s.RunWeeklyTick(ctx)
	default:
		return TickReport{}, fmt.Errorf("%w: unknown job %q", ErrInvalidInput, jobName)
	}
}

// ForceRescoreContest re-runs phase 2 for one contest even though it is
// already final. This is the recovery path after a failed phase 2.
func (s *SyncService) ForceRescoreContest(ctx context.Context, contestID string) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.ForceRescoreContest")
	defer span.End()

	c, found, err := s.contestRepo.GetByID(ctx, contestID)
	if err != nil {
		return 0, fmt.Errorf("get contest: %w", err)
	}
	if !found {
		return 0, fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
	}
	if !c.IsFinal {
		return 0, fmt.Errorf("%w: contest %s is not final", ErrInvalidInput, contestID)
	}

	rescored, err := s.rescoreContests(ctx, []contest.Contest{c})
	if err != nil {
		return 0, err
	}
	s.standings.InvalidateLeaderboards(ctx, c.SeasonID)
	return rescored, nil
}

// runTick executes one two-phase tick over the contests the selector is
// responsible for.
func (s *SyncService) runTick(
	ctx context.Context,
	jobName string,
	selectTargets func(context.Context, season.Season) ([]contest.Contest, error),
	includeFinal bool,
) (TickReport, error) {
	report := TickReport{JobName: jobName}
	if !s.acquireTick(jobName) {
		report.Skipped = true
		return report, nil
	}
	defer s.releaseTick(jobName)

	current, found, err := s.seasonRepo.GetCurrent(ctx)
	if err != nil {
		return s.finishTick(ctx, report, fmt.Errorf("get current season: %w", err))
	}
	if !found || current.IsComplete {
		return s.finishTick(ctx, report, nil)
	}

	targets, err := selectTargets(ctx, current)
	if err != nil {
		return s.finishTick(ctx, report, fmt.Errorf("select contests: %w", err))
	}
	if !includeFinal {
		open := make([]contest.Contest, 0, len(targets))
		for _, c := range targets {
			if !c.IsFinal {
				open = append(open, c)
			}
		}
		targets = open
	}
	report.ContestsChecked = len(targets)
	if len(targets) == 0 {
		return s.finishTick(ctx, report, nil)
	}

	changed, newlyFinal, err := s.pullResults(ctx, targets)
	if err != nil {
		return s.finishTick(ctx, report, err)
	}

	// Phase 1: commit every contest change as one transaction before any
	// pick is touched.
	if len(changed) > 0 {
		if err := s.contestRepo.SaveAll(ctx, changed); err != nil {
			return s.finishTick(ctx, report, fmt.Errorf("save contests: %w", err))
		}
		// Score updates follow the phase-1 commit and carry no scoring
		// state, so they fire even when phase 2 fails below.
		for _, c := range changed {
			s.publish(TopicScoreUpdate, contestEventPayload(c))
		}
	}
	report.ContestsUpdated = len(changed)
	report.NewlyFinal = len(newlyFinal)

	// Phase 2: rescore only the contests that transitioned to final in this
	// tick.
	if len(newlyFinal) > 0 {
		rescored, err := s.rescoreContests(ctx, newlyFinal)
		if err != nil {
			return s.finishTick(ctx, report, err)
		}
		report.PicksRescored = rescored
		s.standings.InvalidateLeaderboards(ctx, current.ID)
	}

	return s.finishTick(ctx, report, nil)
}

// pullResults queries the feed for every target on a bounded worker pool
// and returns contests whose stored state differs, plus the subset that
// newly became final. Any feed failure fails the whole tick; the next
// scheduled tick retries naturally.
func (s *SyncService) pullResults(ctx context.Context, targets []contest.Contest) ([]contest.Contest, []contest.Contest, error) {
	pool, err := ants.NewPool(s.cfg.WorkerCount)
	if err != nil {
		return nil, nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	type fetched struct {
		index  int
		result FeedResult
		err    error
	}

	results := make(chan fetched, len(targets))
	var workers sync.WaitGroup
	for i, target := range targets {
		i, target := i, target
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			result, err := s.feed.GetContestResult(ctx, target.ID)
			results <- fetched{index: i, result: result, err: err}
		}); err != nil {
			workers.Done()
			return nil, nil, fmt.Errorf("submit feed query: %w", err)
		}
	}
	workers.Wait()
	close(results)

	byIndex := make(map[int]FeedResult, len(targets))
	for row := range results {
		if row.err != nil {
			return nil, nil, fmt.Errorf("query results feed for contest %s: %w", targets[row.index].ID, row.err)
		}
		byIndex[row.index] = row.result
	}

	changed := make([]contest.Contest, 0, len(targets))
	newlyFinal := make([]contest.Contest, 0)
	for i, target := range targets {
		result := byIndex[i]
		next, isChanged := applyFeedResult(target, result)
		if !isChanged {
			continue
		}
		changed = append(changed, next)
		if next.IsFinal && !target.IsFinal {
			newlyFinal = append(newlyFinal, next)
		}
	}
	return changed, newlyFinal, nil
}

// rescoreContests recomputes every pick of each contest and persists each
// contest's pick batch atomically. A failure aborts the whole batch so a
// contest never shows partially scored picks.
func (s *SyncService) rescoreContests(ctx context.Context, contests []contest.Contest) (int, error) {
	rescored := 0
	for _, c := range contests {
		picks, err := s.pickRepo.ListByContest(ctx, c.ID)
		if err != nil {
			return rescored, fmt.Errorf("list picks for contest %s: %w", c.ID, err)
		}
		if len(picks) == 0 {
			s.publish(TopicGameFinal, contestEventPayload(c))
			continue
		}

		now := s.now().UTC()
		updated := make([]pick.Pick, 0, len(picks))
		for _, p := range picks {
			result, err := pick.Score(p.TeamID, c)
			if err != nil {
				return rescored, fmt.Errorf("score pick %s: %w", p.ID, err)
			}
			p.Outcome = result.Outcome
			p.Points = result.Points
			p.TiebreakValue = result.TiebreakValue
			p.UpdatedAt = now
			updated = append(updated, p)
		}

		if err := s.pickRepo.SaveResults(ctx, updated); err != nil {
			return rescored, fmt.Errorf("save pick results for contest %s: %w", c.ID, err)
		}
		rescored += len(updated)

		s.publish(TopicGameFinal, contestEventPayload(c))
		for _, p := range updated {
			s.publish(TopicPickResult, map[string]any{
				"pick_id":    p.ID,
				"picker_id":  p.PickerID,
				"contest_id": p.ContestID,
				"outcome":    string(p.Outcome),
				"points":     p.Points,
				"tiebreak":   p.TiebreakValue,
			})
		}
	}
	return rescored, nil
}

// checkSeasonCompletion finalizes the season once its last contest is
// final. Finalization itself is idempotent, so a repeat check is harmless.
// Only the global stream finalizes automatically: there is no pool
// registry to enumerate, so per-pool finalization goes through the admin
// finalize endpoint.
func (s *SyncService) checkSeasonCompletion(ctx context.Context) error {
	current, found, err := s.seasonRepo.GetCurrent(ctx)
	if err != nil {
		return fmt.Errorf("get current season: %w", err)
	}
	if !found || current.IsComplete {
		return nil
	}

	contests, err := s.contestRepo.ListBySeason(ctx, current.ID)
	if err != nil {
		return fmt.Errorf("list season contests: %w", err)
	}
	if len(contests) == 0 {
		return nil
	}
	for _, c := range contests {
		if !c.IsFinal {
			return nil
		}
	}

	if _, err := s.snapshots.FinalizeSeason(ctx, current.ID, pick.GlobalScope); err != nil {
		return fmt.Errorf("finalize season: %w", err)
	}
	s.logger.InfoContext(ctx, "season finalized", "season_id", current.ID)
	return nil
}

func (s *SyncService) acquireTick(jobName string) bool {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	if s.inFlight[jobName] {
		return false
	}
	s.inFlight[jobName] = true
	return true
}

func (s *SyncService) releaseTick(jobName string) {
	s.tickMu.Lock()
	delete(s.inFlight, jobName)
	s.tickMu.Unlock()
}

// finishTick records the tick in the job stats and audit log before
// returning. Recording failures are logged, never escalated.
func (s *SyncService) finishTick(ctx context.Context, report TickReport, tickErr error) (TickReport, error) {
	if report.Skipped {
		return report, tickErr
	}

	now := s.now().UTC()
	stats, _, err := s.jobRepo.GetStats(ctx, report.JobName)
	if err != nil {
		s.logger.ErrorContext(ctx, "load job stats", "job", report.JobName, "error", err)
		stats = syncjob.Stats{}
	}
	stats.JobName = report.JobName
	stats.LastRunAt = &now
	stats.TotalRuns++
	stats.ContestsUpdated += report.ContestsUpdated
	status := syncjob.StatusCompleted
	if tickErr != nil {
		stats.FailedRuns++
		stats.LastError = tickErr.Error()
		stats.LastErrorAt = &now
		status = syncjob.StatusFailed
		s.logger.ErrorContext(ctx, "sync tick failed", "job", report.JobName, "error", tickErr)
	} else {
		stats.SuccessfulRuns++
		stats.LastSuccessAt = &now
	}
	if err := s.jobRepo.SaveStats(ctx, stats); err != nil {
		s.logger.ErrorContext(ctx, "save job stats", "job", report.JobName, "error", err)
	}

	dispatchID, err := s.idGen.NewID()
	if err != nil {
		dispatchID = fmt.Sprintf("%s-%d", report.JobName, now.UnixNano())
	}
	event := syncjob.DispatchEvent{
		DispatchID:      dispatchID,
		JobName:         report.JobName,
		Status:          status,
		ContestsChecked: report.ContestsChecked,
		ContestsUpdated: report.ContestsUpdated,
		NewlyFinal:      report.NewlyFinal,
		OccurredAt:      now,
	}
	if tickErr != nil {
		event.ErrorMessage = tickErr.Error()
	}
	if err := s.jobRepo.RecordEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "record dispatch event", "job", report.JobName, "error", err)
	}

	return report, tickErr
}

func (s *SyncService) publish(topic string, payload any) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(topic, payload)
}

// applyFeedResult merges a feed result into a stored contest, reporting
// whether anything changed. Already-final contests never change here.
func applyFeedResult(stored contest.Contest, result FeedResult) (contest.Contest, bool) {
	if stored.IsFinal {
		return stored, false
	}

	changed := false
	if !intPtrEqual(stored.HomeScore, result.HomeScore) {
		stored.HomeScore = cloneIntPtr(result.HomeScore)
		changed = true
	}
	if !intPtrEqual(stored.AwayScore, result.AwayScore) {
		stored.AwayScore = cloneIntPtr(result.AwayScore)
		changed = true
	}
	if result.IsFinal && result.HomeScore != nil && result.AwayScore != nil {
		stored.IsFinal = true
		stored.IsOvertime = result.IsOvertime
		changed = true
	}
	return stored, changed
}

func currentPeriodFromContests(contests []contest.Contest, finalWeek int) int {
	scheduled := make(map[int]bool)
	unfinished := make(map[int]bool)
	for _, c := range contests {
		scheduled[c.Week] = true
		if !c.IsFinal {
			unfinished[c.Week] = true
		}
	}

	// Weeks advance in order: a week with any unfinished contest holds the
	// period there, even when later weeks already have finals.
	period := 1
	for week := 1; week <= finalWeek; week++ {
		if !scheduled[week] || unfinished[week] {
			break
		}
		period = week + 1
	}
	if period > finalWeek {
		period = finalWeek
	}
	return period
}

func contestEventPayload(c contest.Contest) map[string]any {
	payload := map[string]any{
		"contest_id": c.ID,
		"season_id":  c.SeasonID,
		"week":       c.Week,
		"is_final":   c.IsFinal,
	}
	if c.HomeScore != nil {
		payload["home_score"] = *c.HomeScore
	}
	if c.AwayScore != nil {
		payload["away_score"] = *c.AwayScore
	}
	return payload
}

func cloneIntPtr(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
