package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/domain/syncjob"
	"github.com/pickemlabs/pickem-engine/internal/infrastructure/repository/memory"
	"github.com/pickemlabs/pickem-engine/internal/platform/cache"
	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
)

type fakeFeed struct {
	mu      sync.Mutex
	results map[string]FeedResult
	errs    map[string]error
	calls   int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		results: make(map[string]FeedResult),
		errs:    make(map[string]error),
	}
}

func (f *fakeFeed) ListContests(_ context.Context, _ int) ([]FeedContest, error) {
	return nil, nil
}

func (f *fakeFeed) GetContestResult(_ context.Context, contestID string) (FeedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[contestID]; ok {
		return FeedResult{}, err
	}
	return f.results[contestID], nil
}

func (f *fakeFeed) setResult(contestID string, home, away int, isFinal bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[contestID] = FeedResult{HomeScore: &home, AwayScore: &away, IsFinal: isFinal}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []struct {
		Topic   string
		Payload any
	}
}

func (b *recordingBroadcaster) Publish(topic string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, struct {
		Topic   string
		Payload any
	}{topic, payload})
}

func (b *recordingBroadcaster) countTopic(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Topic == topic {
			n++
		}
	}
	return n
}

type syncFixture struct {
	svc         *SyncService
	feed        *fakeFeed
	broadcaster *recordingBroadcaster
	contests    *memory.ContestRepository
	picks       *memory.PickRepository
	jobs        *memory.SyncJobRepository
	seasons     *memory.SeasonRepository
}

func newSyncFixture(contests []contest.Contest, picks []pick.Pick) syncFixture {
	seasonRepo := memory.NewSeasonRepository(shortSeason())
	contestRepo := memory.NewContestRepository(contests...)
	pickRepo := memory.NewPickRepository(picks...)
	jobRepo := memory.NewSyncJobRepository()
	snapshotRepo := memory.NewSnapshotRepository()
	awardRepo := memory.NewAwardRepository()
	feed := newFakeFeed()
	broadcaster := &recordingBroadcaster{}

	standingsSvc := NewStandingsService(seasonRepo, contestRepo, pickRepo, snapshotRepo, cache.NewStore(time.Minute))
	snapshotSvc := NewSnapshotService(seasonRepo, contestRepo, pickRepo, snapshotRepo, awardRepo, standingsSvc, &sequenceIDGen{prefix: "snap"})

	svc := NewSyncService(
		seasonRepo, contestRepo, pickRepo, jobRepo,
		feed, broadcaster, standingsSvc, snapshotSvc,
		&sequenceIDGen{prefix: "dispatch"},
		SyncConfig{WorkerCount: 2},
		logging.NewNop(),
	)
	svc.now = func() time.Time { return testClock }

	return syncFixture{
		svc:         svc,
		feed:        feed,
		broadcaster: broadcaster,
		contests:    contestRepo,
		picks:       pickRepo,
		jobs:        jobRepo,
		seasons:     seasonRepo,
	}
}

func inProgressContest(id string, week int, home, away string) contest.Contest {
	return contest.Contest{
		ID:         id,
		SeasonID:   "nfl-2025",
		Week:       week,
		HomeTeamID: home,
		AwayTeamID: away,
		StartsAt:   testClock.Add(-time.Hour),
	}
}

func TestRunLiveTick_CommitsScoreChanges(t *testing.T) {
	fix := newSyncFixture([]contest.Contest{
		inProgressContest("c-101", 1, "KC", "LV"),
	}, nil)
	fix.feed.setResult("c-101", 14, 7, false)

	report, err := fix.svc.RunLiveTick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.ContestsChecked)
	require.Equal(t, 1, report.ContestsUpdated)
	require.Zero(t, report.NewlyFinal)
	require.Zero(t, report.PicksRescored)

	stored, found, err := fix.contests.GetByID(context.Background(), "c-101")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, stored.HomeScore)
	require.Equal(t, 14, *stored.HomeScore)
	require.False(t, stored.IsFinal)

	require.Equal(t, 1, fix.broadcaster.countTopic(TopicScoreUpdate))
	require.Zero(t, fix.broadcaster.countTopic(TopicGameFinal))
}

func TestRunLiveTick_UnchangedContestIsNotRewritten(t *testing.T) {
	home, away := 14, 7
	c := inProgressContest("c-101", 1, "KC", "LV")
	c.HomeScore, c.AwayScore = &home, &away
	fix := newSyncFixture([]contest.Contest{c}, nil)
	fix.feed.setResult("c-101", 14, 7, false)

	report, err := fix.svc.RunLiveTick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.ContestsChecked)
	require.Zero(t, report.ContestsUpdated)
	require.Zero(t, fix.broadcaster.countTopic(TopicScoreUpdate))
}

func TestRunLiveTick_NewlyFinalCascadesRescore(t *testing.T) {
	picks := []pick.Pick{
		{ID: "pick-alice", PickerID: "alice", SeasonID: "nfl-2025", ContestID: "c-101", Week: 1, Scope: pick.GlobalScope, TeamID: "KC"},
		{ID: "pick-bob", PickerID: "bob", SeasonID: "nfl-2025", ContestID: "c-101", Week: 1, Scope: pick.GlobalScope, TeamID: "LV"},
	}
	fix := newSyncFixture([]contest.Contest{
		inProgressContest("c-101", 1, "KC", "LV"),
	}, picks)
	fix.feed.setResult("c-101", 27, 20, true)

	report, err := fix.svc.RunLiveTick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.NewlyFinal)
	require.Equal(t, 2, report.PicksRescored)

	winner, _, err := fix.picks.GetByID(context.Background(), "pick-alice")
	require.NoError(t, err)
	require.Equal(t, pick.OutcomeWin, winner.Outcome)
	require.Equal(t, 1.0, winner.Points)
	require.Equal(t, 7, winner.TiebreakValue)

	loser, _, err := fix.picks.GetByID(context.Background(), "pick-bob")
	require.NoError(t, err)
	require.Equal(t, pick.OutcomeLoss, loser.Outcome)
	require.Zero(t, loser.Points)
	require.Equal(t, -7, loser.TiebreakValue)

	require.Equal(t, 1, fix.broadcaster.countTopic(TopicGameFinal))
	require.Equal(t, 2, fix.broadcaster.countTopic(TopicPickResult))
}

func TestRunLiveTick_TieScoresHalfPoint(t *testing.T) {
	picks := []pick.Pick{
		{ID: "p-tie", PickerID: "alice", SeasonID: "nfl-2025", ContestID: "c-101", Week: 1, Scope: pick.GlobalScope, TeamID: "KC"},
	}
	fix := newSyncFixture([]contest.Contest{
		inProgressContest("c-101", 1, "KC", "LV"),
	}, picks)
	fix.feed.setResult("c-101", 20, 20, true)

	_, err := fix.svc.RunLiveTick(context.Background())
	require.NoError(t, err)

	tied, _, err := fix.picks.GetByID(context.Background(), "p-tie")
	require.NoError(t, err)
	require.Equal(t, pick.OutcomeTie, tied.Outcome)
	require.Equal(t, 0.5, tied.Points)
	require.Zero(t, tied.TiebreakValue)
}

func TestRunLiveTick_FeedFailureFailsTickAndWritesNothing(t *testing.T) {
	fix := newSyncFixture([]contest.Contest{
		inProgressContest("c-101", 1, "KC", "LV"),
		inProgressContest("c-102", 1, "DAL", "NYG"),
	}, nil)
	fix.feed.setResult("c-101", 14, 7, false)
	fix.feed.errs["c-102"] = errors.New("upstream 503")

	_, err := fix.svc.RunLiveTick(context.Background())
	require.Error(t, err)

	// Phase 1 never ran: even the healthy contest keeps its stored state.
	stored, _, err := fix.contests.GetByID(context.Background(), "c-101")
	require.NoError(t, err)
	require.Nil(t, stored.HomeScore)

	stats, found, err := fix.jobs.GetStats(context.Background(), syncjob.JobLive)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, stats.FailedRuns)
	require.NotEmpty(t, stats.LastError)
}

func TestRunLiveTick_RecordsStatsAndDispatchEvent(t *testing.T) {
	fix := newSyncFixture([]contest.Contest{
		inProgressContest("c-101", 1, "KC", "LV"),
	}, nil)
	fix.feed.setResult("c-101", 3, 0, false)

	_, err := fix.svc.RunLiveTick(context.Background())
	require.NoError(t, err)

	stats, found, err := fix.jobs.GetStats(context.Background(), syncjob.JobLive)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, stats.TotalRuns)
	require.Equal(t, 1, stats.SuccessfulRuns)
	require.Equal(t, 1, stats.ContestsUpdated)

	events := fix.jobs.Events()
	require.Len(t, events, 1)
	require.Equal(t, syncjob.JobLive, events[0].JobName)
	require.Equal(t, syncjob.StatusCompleted, events[0].Status)
	require.Equal(t, 1, events[0].ContestsChecked)
}

func TestRunLiveTick_OverlappingTickIsSkipped(t *testing.T) {
	fix := newSyncFixture(nil, nil)
	fix.svc.inFlight[syncjob.JobLive] = true

	report, err := fix.svc.RunLiveTick(context.Background())
	require.NoError(t, err)
	require.True(t, report.Skipped)

	// A skipped tick leaves no stats footprint.
	_, found, err := fix.jobs.GetStats(context.Background(), syncjob.JobLive)
	require.NoError(t, err)
	require.False(t, found)
}

// abortingPickRepo refuses result writes, standing in for a storage layer
// that rolls the whole batch back.
type abortingPickRepo struct {
	*memory.PickRepository
}

func (r *abortingPickRepo) SaveResults(context.Context, []pick.Pick) error {
	return errors.New("storage unavailable")
}

func TestRunLiveTick_FailedRescoreLeavesEveryPickUnscored(t *testing.T) {
	seasonRepo := memory.NewSeasonRepository(shortSeason())
	contestRepo := memory.NewContestRepository(inProgressContest("c-101", 1, "KC", "LV"))
	pickRepo := &abortingPickRepo{memory.NewPickRepository(
		pick.Pick{ID: "pick-alice", PickerID: "alice", SeasonID: "nfl-2025", ContestID: "c-101", Week: 1, Scope: pick.GlobalScope, TeamID: "KC"},
		pick.Pick{ID: "pick-bob", PickerID: "bob", SeasonID: "nfl-2025", ContestID: "c-101", Week: 1, Scope: pick.GlobalScope, TeamID: "LV"},
	)}
	jobRepo := memory.NewSyncJobRepository()
	snapshotRepo := memory.NewSnapshotRepository()
	feed := newFakeFeed()
	broadcaster := &recordingBroadcaster{}

	standingsSvc := NewStandingsService(seasonRepo, contestRepo, pickRepo, snapshotRepo, cache.NewStore(time.Minute))
	snapshotSvc := NewSnapshotService(seasonRepo, contestRepo, pickRepo, snapshotRepo, memory.NewAwardRepository(), standingsSvc, &sequenceIDGen{prefix: "snap"})
	svc := NewSyncService(
		seasonRepo, contestRepo, pickRepo, jobRepo,
		feed, broadcaster, standingsSvc, snapshotSvc,
		&sequenceIDGen{prefix: "dispatch"},
		SyncConfig{WorkerCount: 2},
		logging.NewNop(),
	)
	svc.now = func() time.Time { return testClock }

	feed.setResult("c-101", 27, 20, true)

	_, err := svc.RunLiveTick(context.Background())
	require.Error(t, err)

	// Phase 2 failed mid-tick: the contest commit from phase 1 stands, but
	// no pick outcome may have changed.
	for _, id := range []string{"pick-alice", "pick-bob"} {
		stored, found, err := pickRepo.PickRepository.GetByID(context.Background(), id)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, pick.OutcomeUnset, stored.Outcome)
		require.Zero(t, stored.Points)
	}
	require.Zero(t, broadcaster.countTopic(TopicGameFinal))
	require.Zero(t, broadcaster.countTopic(TopicPickResult))
}

func TestRunStatusTick_PollsNearStartWindow(t *testing.T) {
	near := inProgressContest("c-101", 1, "KC", "LV")
	near.StartsAt = testClock.Add(30 * time.Minute)
	far := inProgressContest("c-102", 1, "DAL", "NYG")
	far.StartsAt = testClock.Add(48 * time.Hour)

	fix := newSyncFixture([]contest.Contest{near, far}, nil)
	fix.feed.setResult("c-101", 0, 0, false)

	report, err := fix.svc.RunStatusTick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.ContestsChecked)
}

func TestRunWeeklyTick_AdvancesCurrentPeriod(t *testing.T) {
	week1 := finalContest("c-101", 1, "KC", "LV", 27, 20)
	week2 := inProgressContest("c-201", 2, "DAL", "NYG")
	fix := newSyncFixture([]contest.Contest{week1, week2}, nil)

	report, err := fix.svc.RunWeeklyTick(context.Background())
	require.NoError(t, err)
	require.Equal(t, syncjob.JobWeekly, report.JobName)

	current, found, err := fix.seasons.GetCurrent(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, current.CurrentPeriod)
}

func TestRunWeeklyTick_HoldsPeriodAtPartiallyFinishedWeek(t *testing.T) {
	// Week 2 is split: one final, one still playing. A final in week 2 must
	// not advance the period past it.
	week1 := finalContest("c-101", 1, "KC", "LV", 27, 20)
	week2Done := finalContest("c-201", 2, "DAL", "NYG", 17, 14)
	week2Open := inProgressContest("c-202", 2, "GB", "CHI")
	fix := newSyncFixture([]contest.Contest{week1, week2Done, week2Open}, nil)

	_, err := fix.svc.RunWeeklyTick(context.Background())
	require.NoError(t, err)

	current, found, err := fix.seasons.GetCurrent(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, current.CurrentPeriod)
}

func TestForceSync_UnknownJob(t *testing.T) {
	fix := newSyncFixture(nil, nil)

	_, err := fix.svc.ForceSync(context.Background(), "hourly")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestForceRescoreContest_RecoversFailedPhaseTwo(t *testing.T) {
	// Contest committed as final but its pick was never scored: the state a
	// crash between the two phases leaves behind.
	done := finalContest("c-101", 1, "KC", "LV", 27, 20)
	picks := []pick.Pick{
		{ID: "p-1", PickerID: "alice", SeasonID: "nfl-2025", ContestID: "c-101", Week: 1, Scope: pick.GlobalScope, TeamID: "KC"},
	}
	fix := newSyncFixture([]contest.Contest{done}, picks)

	rescored, err := fix.svc.ForceRescoreContest(context.Background(), "c-101")
	require.NoError(t, err)
	require.Equal(t, 1, rescored)

	scored, _, err := fix.picks.GetByID(context.Background(), "p-1")
	require.NoError(t, err)
	require.Equal(t, pick.OutcomeWin, scored.Outcome)
}

func TestForceRescoreContest_RejectsNonFinal(t *testing.T) {
	fix := newSyncFixture([]contest.Contest{
		inProgressContest("c-101", 1, "KC", "LV"),
	}, nil)

	_, err := fix.svc.ForceRescoreContest(context.Background(), "c-101")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunStatusTick_FinalizesCompletedSeason(t *testing.T) {
	// Every contest of the short season is final and scored; the status tick
	// should hand off to finalization.
	contests := []contest.Contest{
		finalContest("c-101", 1, "KC", "LV", 27, 20),
		finalContest("c-201", 2, "DAL", "NYG", 17, 24),
		finalContest("c-301", 3, "SF", "SEA", 21, 14),
		finalContest("c-401", 4, "KC", "DAL", 31, 17),
	}
	picks := []pick.Pick{
		scoredPick("a1", "alice", 1, pick.OutcomeWin, 10, 50),
		scoredPick("b1", "bob", 1, pick.OutcomeLoss, -7, 20),
	}
	fix := newSyncFixture(contests, picks)

	_, err := fix.svc.RunStatusTick(context.Background())
	require.NoError(t, err)

	current, found, err := fix.seasons.GetByID(context.Background(), "nfl-2025")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, current.IsComplete)
}
