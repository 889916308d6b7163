package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/award"
	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/infrastructure/repository/memory"
	"github.com/pickemlabs/pickem-engine/internal/platform/cache"
)

type snapshotFixture struct {
	svc       *SnapshotService
	seasons   *memory.SeasonRepository
	contests  *memory.ContestRepository
	picks     *memory.PickRepository
	snapshots *memory.SnapshotRepository
	awards    *memory.AwardRepository
}

func newSnapshotFixture(contests []contest.Contest, picks []pick.Pick) snapshotFixture {
	seasonRepo := memory.NewSeasonRepository(shortSeason())
	contestRepo := memory.NewContestRepository(contests...)
	pickRepo := memory.NewPickRepository(picks...)
	snapshotRepo := memory.NewSnapshotRepository()
	awardRepo := memory.NewAwardRepository()

	standingsSvc := NewStandingsService(seasonRepo, contestRepo, pickRepo, snapshotRepo, cache.NewStore(time.Minute))
	svc := NewSnapshotService(seasonRepo, contestRepo, pickRepo, snapshotRepo, awardRepo, standingsSvc, &sequenceIDGen{prefix: "snap"})
	svc.now = func() time.Time { return testClock }

	return snapshotFixture{
		svc:       svc,
		seasons:   seasonRepo,
		contests:  contestRepo,
		picks:     pickRepo,
		snapshots: snapshotRepo,
		awards:    awardRepo,
	}
}

// fivePickerRegularSeason scores weeks 1 and 2 for five pickers so the
// top-four gate has someone to leave out.
func fivePickerRegularSeason() ([]contest.Contest, []pick.Pick) {
	contests := []contest.Contest{
		finalContest("c-101", 1, "KC", "LV", 27, 20),
		finalContest("c-201", 2, "DAL", "NYG", 17, 24),
	}
	picks := []pick.Pick{
		scoredPick("a1", "alice", 1, pick.OutcomeWin, 10, 50),
		scoredPick("a2", "alice", 2, pick.OutcomeWin, 10, 50),
		scoredPick("b1", "bob", 1, pick.OutcomeWin, 8, 44),
		scoredPick("b2", "bob", 2, pick.OutcomeWin, 8, 44),
		scoredPick("c1", "carol", 1, pick.OutcomeWin, 6, 40),
		scoredPick("c2", "carol", 2, pick.OutcomeWin, 6, 40),
		scoredPick("d1", "dave", 1, pick.OutcomeWin, 4, 36),
		scoredPick("d2", "dave", 2, pick.OutcomeWin, 4, 36),
		scoredPick("e1", "erin", 1, pick.OutcomeLoss, -3, 20),
		scoredPick("e2", "erin", 2, pick.OutcomeLoss, -3, 20),
	}
	return contests, picks
}

func TestCreateSnapshot_RequiresFinalRegularWeekScored(t *testing.T) {
	contests := []contest.Contest{
		finalContest("c-101", 1, "KC", "LV", 27, 20),
		// Week 2 still in progress.
		testContest("c-201", 2, "DAL", "NYG", testClock.Add(time.Hour)),
	}
	fix := newSnapshotFixture(contests, []pick.Pick{
		scoredPick("a1", "alice", 1, pick.OutcomeWin, 10, 50),
	})

	_, err := fix.svc.CreateSnapshot(context.Background(), "nfl-2025", pick.GlobalScope)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateSnapshot_FreezesTopFourGate(t *testing.T) {
	contests, picks := fivePickerRegularSeason()
	fix := newSnapshotFixture(contests, picks)

	snapshots, err := fix.svc.CreateSnapshot(context.Background(), "nfl-2025", pick.GlobalScope)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if len(snapshots) != 5 {
		t.Fatalf("snapshots = %d, want 5", len(snapshots))
	}

	advancing := map[string]bool{}
	for _, snap := range snapshots {
		advancing[snap.PickerID] = snap.AdvancesToElimination
		if snap.AdvancesToFinal {
			t.Fatalf("final gate must not be granted at snapshot time: %s", snap.PickerID)
		}
	}
	for _, pickerID := range []string{"alice", "bob", "carol", "dave"} {
		if !advancing[pickerID] {
			t.Fatalf("%s must advance to elimination", pickerID)
		}
	}
	if advancing["erin"] {
		t.Fatal("erin finished fifth and must not advance")
	}
}

func TestCreateSnapshot_RerunReturnsFrozenRows(t *testing.T) {
	contests, picks := fivePickerRegularSeason()
	fix := newSnapshotFixture(contests, picks)
	ctx := context.Background()

	first, err := fix.svc.CreateSnapshot(ctx, "nfl-2025", pick.GlobalScope)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	// A late score correction flips the leaderboard, but the frozen rows win.
	if err := fix.picks.SaveResults(ctx, []pick.Pick{
		scoredPick("e1", "erin", 1, pick.OutcomeWin, 50, 99),
	}); err != nil {
		t.Fatalf("save results: %v", err)
	}

	second, err := fix.svc.CreateSnapshot(ctx, "nfl-2025", pick.GlobalScope)
	if err != nil {
		t.Fatalf("CreateSnapshot rerun: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("rerun rows = %d, want %d", len(second), len(first))
	}
	for _, snap := range second {
		if snap.PickerID == "erin" && snap.AdvancesToElimination {
			t.Fatal("rerun must not recompute the frozen gate")
		}
	}
}

func TestGrantFinalGate_TopTwoByEliminationWins(t *testing.T) {
	contests, picks := fivePickerRegularSeason()
	contests = append(contests, finalContest("c-301", 3, "SF", "SEA", 21, 14))
	// Week 3 elimination results: carol wins, alice and bob lose, dave ties.
	picks = append(picks,
		scoredPick("a3", "alice", 3, pick.OutcomeLoss, -7, 10),
		scoredPick("b3", "bob", 3, pick.OutcomeLoss, -3, 10),
		scoredPick("c3", "carol", 3, pick.OutcomeWin, 7, 30),
		scoredPick("d3", "dave", 3, pick.OutcomeTie, 0.5, 28),
	)
	fix := newSnapshotFixture(contests, picks)
	ctx := context.Background()

	if _, err := fix.svc.CreateSnapshot(ctx, "nfl-2025", pick.GlobalScope); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	snapshots, err := fix.svc.GrantFinalGate(ctx, "nfl-2025", pick.GlobalScope)
	if err != nil {
		t.Fatalf("GrantFinalGate: %v", err)
	}

	finalists := map[string]bool{}
	for _, snap := range snapshots {
		if snap.AdvancesToFinal {
			finalists[snap.PickerID] = true
		}
	}
	if len(finalists) != 2 {
		t.Fatalf("finalists = %d, want 2", len(finalists))
	}
	// Carol holds the only elimination win. The second slot goes to the
	// eligible picker with the best season tiebreak: alice.
	if !finalists["carol"] || !finalists["alice"] {
		t.Fatalf("finalists = %v, want carol and alice", finalists)
	}
}

func TestGrantFinalGate_RerunReassignsFromCurrentResults(t *testing.T) {
	contests, picks := fivePickerRegularSeason()
	contests = append(contests, finalContest("c-301", 3, "SF", "SEA", 21, 14))
	picks = append(picks,
		scoredPick("a3", "alice", 3, pick.OutcomeWin, 7, 30),
		scoredPick("b3", "bob", 3, pick.OutcomeLoss, -3, 10),
	)
	fix := newSnapshotFixture(contests, picks)
	ctx := context.Background()

	if _, err := fix.svc.CreateSnapshot(ctx, "nfl-2025", pick.GlobalScope); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if _, err := fix.svc.GrantFinalGate(ctx, "nfl-2025", pick.GlobalScope); err != nil {
		t.Fatalf("GrantFinalGate: %v", err)
	}

	// A rescore gives bob the elimination win instead.
	if err := fix.picks.SaveResults(ctx, []pick.Pick{
		scoredPick("a3", "alice", 3, pick.OutcomeLoss, -7, 10),
		scoredPick("b3", "bob", 3, pick.OutcomeWin, 7, 30),
	}); err != nil {
		t.Fatalf("save results: %v", err)
	}

	snapshots, err := fix.svc.GrantFinalGate(ctx, "nfl-2025", pick.GlobalScope)
	if err != nil {
		t.Fatalf("GrantFinalGate rerun: %v", err)
	}
	for _, snap := range snapshots {
		if snap.PickerID == "bob" && !snap.AdvancesToFinal {
			t.Fatal("rerun must grant bob the final gate")
		}
	}
}

func TestGrantFinalGate_RequiresSnapshot(t *testing.T) {
	contests, picks := fivePickerRegularSeason()
	fix := newSnapshotFixture(contests, picks)

	_, err := fix.svc.GrantFinalGate(context.Background(), "nfl-2025", pick.GlobalScope)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIsEliminationEligible_FallsBackToLiveBoard(t *testing.T) {
	contests, picks := fivePickerRegularSeason()
	fix := newSnapshotFixture(contests, picks)
	ctx := context.Background()

	eligible, err := fix.svc.IsEliminationEligible(ctx, "nfl-2025", "dave", pick.GlobalScope)
	if err != nil {
		t.Fatalf("IsEliminationEligible: %v", err)
	}
	if !eligible {
		t.Fatal("dave sits fourth on the live board and must be eligible")
	}

	eligible, err = fix.svc.IsEliminationEligible(ctx, "nfl-2025", "erin", pick.GlobalScope)
	if err != nil {
		t.Fatalf("IsEliminationEligible: %v", err)
	}
	if eligible {
		t.Fatal("erin sits fifth on the live board and must not be eligible")
	}
}

func TestFinalizeSeason_HeadToHeadDecidesPodium(t *testing.T) {
	contests, picks := fivePickerRegularSeason()
	contests = append(contests,
		finalContest("c-301", 3, "SF", "SEA", 21, 14),
		finalContest("c-401", 4, "KC", "DAL", 31, 17),
	)
	picks = append(picks,
		scoredPick("a3", "alice", 3, pick.OutcomeWin, 7, 30),
		scoredPick("b3", "bob", 3, pick.OutcomeWin, 3, 20),
		// Final week: bob outscores alice head to head even though alice
		// leads the season board.
		scoredPick("a4", "alice", 4, pick.OutcomeLoss, -14, 17),
		scoredPick("b4", "bob", 4, pick.OutcomeWin, 14, 48),
	)
	fix := newSnapshotFixture(contests, picks)
	ctx := context.Background()

	if _, err := fix.svc.CreateSnapshot(ctx, "nfl-2025", pick.GlobalScope); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if _, err := fix.svc.GrantFinalGate(ctx, "nfl-2025", pick.GlobalScope); err != nil {
		t.Fatalf("GrantFinalGate: %v", err)
	}

	awards, err := fix.svc.FinalizeSeason(ctx, "nfl-2025", pick.GlobalScope)
	if err != nil {
		t.Fatalf("FinalizeSeason: %v", err)
	}
	if len(awards) != 3 {
		t.Fatalf("awards = %d, want 3", len(awards))
	}
	if awards[0].Type != award.TypeChampion || awards[0].PickerID != "bob" {
		t.Fatalf("champion = %+v, want bob", awards[0])
	}
	if awards[1].Type != award.TypeRunnerUp || awards[1].PickerID != "alice" {
		t.Fatalf("runner-up = %+v, want alice", awards[1])
	}
	// Third place is the best season-board picker outside the final pair.
	if awards[2].Type != award.TypeThirdPlace || awards[2].PickerID != "carol" {
		t.Fatalf("third = %+v, want carol", awards[2])
	}

	seasonRow, found, err := fix.seasons.GetByID(ctx, "nfl-2025")
	if err != nil || !found {
		t.Fatalf("get season: found=%t err=%v", found, err)
	}
	if !seasonRow.IsComplete {
		t.Fatal("finalize must mark the season complete")
	}
}

func TestFinalizeSeason_FallsBackToSeasonBoard(t *testing.T) {
	// No final gate was ever granted, so placement comes straight off the
	// season leaderboard.
	contests, picks := fivePickerRegularSeason()
	contests = append(contests,
		finalContest("c-301", 3, "SF", "SEA", 21, 14),
		finalContest("c-401", 4, "KC", "DAL", 31, 17),
	)
	fix := newSnapshotFixture(contests, picks)
	ctx := context.Background()

	awards, err := fix.svc.FinalizeSeason(ctx, "nfl-2025", pick.GlobalScope)
	if err != nil {
		t.Fatalf("FinalizeSeason: %v", err)
	}
	if len(awards) != 3 {
		t.Fatalf("awards = %d, want 3", len(awards))
	}
	if awards[0].PickerID != "alice" || awards[1].PickerID != "bob" || awards[2].PickerID != "carol" {
		t.Fatalf("podium = %s, %s, %s", awards[0].PickerID, awards[1].PickerID, awards[2].PickerID)
	}
}

func TestFinalizeSeason_RerunDoesNotDuplicateAwards(t *testing.T) {
	contests, picks := fivePickerRegularSeason()
	contests = append(contests,
		finalContest("c-301", 3, "SF", "SEA", 21, 14),
		finalContest("c-401", 4, "KC", "DAL", 31, 17),
	)
	fix := newSnapshotFixture(contests, picks)
	ctx := context.Background()

	if _, err := fix.svc.FinalizeSeason(ctx, "nfl-2025", pick.GlobalScope); err != nil {
		t.Fatalf("FinalizeSeason: %v", err)
	}
	if _, err := fix.svc.FinalizeSeason(ctx, "nfl-2025", pick.GlobalScope); err != nil {
		t.Fatalf("FinalizeSeason rerun: %v", err)
	}

	stored, err := fix.awards.ListBySeason(ctx, "nfl-2025", pick.GlobalScope)
	if err != nil {
		t.Fatalf("list awards: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored awards = %d, want 3", len(stored))
	}
}

func TestFinalizeSeason_RequiresFinalWeekScored(t *testing.T) {
	contests, picks := fivePickerRegularSeason()
	fix := newSnapshotFixture(contests, picks)

	_, err := fix.svc.FinalizeSeason(context.Background(), "nfl-2025", pick.GlobalScope)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
