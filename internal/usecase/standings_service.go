package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/domain/season"
	"github.com/pickemlabs/pickem-engine/internal/domain/standings"
	"github.com/pickemlabs/pickem-engine/internal/platform/cache"
)

type StandingsService struct {
	seasonRepo   season.Repository
	contestRepo  contest.Repository
	pickRepo     pick.Repository
	snapshotRepo standings.SnapshotRepository
	leaderboards *cache.Store
	now          func() time.Time
}

func NewStandingsService(
	seasonRepo season.Repository,
	contestRepo contest.Repository,
	pickRepo pick.Repository,
	snapshotRepo standings.SnapshotRepository,
	leaderboards *cache.Store,
) *StandingsService {
	return &StandingsService{
		seasonRepo:   seasonRepo,
		contestRepo:  contestRepo,
		pickRepo:     pickRepo,
		snapshotRepo: snapshotRepo,
		leaderboards: leaderboards,
		now:          time.Now,
	}
}

// SeasonStats aggregates one picker's season, partitioned into regular and
// elimination phases. A missed week is a week holding at least one final
// contest for which the picker has no pick; missed elimination weeks only
// count against pickers whose snapshot granted elimination eligibility.
func (s *StandingsService) SeasonStats(ctx context.Context, pickerID, seasonID string, scope pick.Scope) (standings.SeasonStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StandingsService.SeasonStats")
	defer span.End()

	if pickerID == "" || seasonID == "" {
		return standings.SeasonStats{}, fmt.Errorf("%w: picker and season are required", ErrInvalidInput)
	}

	seasonRow, found, err := s.seasonRepo.GetByID(ctx, seasonID)
	if err != nil {
		return standings.SeasonStats{}, fmt.Errorf("get season: %w", err)
	}
	if !found {
		return standings.SeasonStats{}, fmt.Errorf("%w: season %s", ErrNotFound, seasonID)
	}

	picks, err := s.pickRepo.ListByPicker(ctx, pickerID, seasonID, scope)
	if err != nil {
		return standings.SeasonStats{}, fmt.Errorf("list picks: %w", err)
	}

	contests, err := s.contestRepo.ListBySeason(ctx, seasonID)
	if err != nil {
		return standings.SeasonStats{}, fmt.Errorf("list contests: %w", err)
	}

	eliminationEligible := false
	if snapshot, ok, err := s.snapshotRepo.GetByPicker(ctx, seasonID, pickerID, scope); err != nil {
		return standings.SeasonStats{}, fmt.Errorf("get snapshot: %w", err)
	} else if ok {
		eliminationEligible = snapshot.AdvancesToElimination
	}

	pickedWeeks := make(map[int]struct{}, len(picks))
	for _, p := range picks {
		pickedWeeks[p.Week] = struct{}{}
	}

	weeksWithFinals := make(map[int]struct{})
	for _, c := range contests {
		if c.IsFinal {
			weeksWithFinals[c.Week] = struct{}{}
		}
	}

	stats := standings.SeasonStats{
		PickerID: pickerID,
		SeasonID: seasonID,
		Scope:    scope,
	}

	for _, p := range picks {
		part := &stats.Regular
		if seasonRow.InEliminationPhase(p.Week) {
			part = &stats.Elimination
		}
		switch p.Outcome {
		case pick.OutcomeWin:
			part.Wins++
		case pick.OutcomeLoss:
			part.Losses++
		case pick.OutcomeTie:
			part.Ties++
		default:
			continue
		}
		part.Points += p.Points
		part.Tiebreak += p.TiebreakValue
	}

	for week := range weeksWithFinals {
		if _, picked := pickedWeeks[week]; picked {
			continue
		}
		if seasonRow.InEliminationPhase(week) {
			if eliminationEligible {
				stats.Elimination.MissedWeeks++
			}
			continue
		}
		stats.Regular.MissedWeeks++
	}

	finalizePartition(&stats.Regular)
	finalizePartition(&stats.Elimination)

	stats.Total = combinePartitions(stats.Regular, stats.Elimination)
	stats.LongestWinStreak, stats.LongestLossStreak = longestStreaks(picks)

	return stats, nil
}

// Leaderboard ranks every picker holding at least one pick this season by
// (points, tiebreak) descending. Exact ties keep stable order and share a
// rank. Results are cached; the synchronizer invalidates after rescoring.
func (s *StandingsService) Leaderboard(ctx context.Context, seasonID string, scope pick.Scope, regularOnly bool) ([]standings.Row, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StandingsService.Leaderboard")
	defer span.End()

	if seasonID == "" {
		return nil, fmt.Errorf("%w: season is required", ErrInvalidInput)
	}

	key := leaderboardCacheKey(seasonID, scope, regularOnly)
	value, err := s.leaderboards.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return s.computeLeaderboard(ctx, seasonID, scope, regularOnly)
	})
	if err != nil {
		return nil, err
	}

	rows, ok := value.([]standings.Row)
	if !ok {
		return s.computeLeaderboard(ctx, seasonID, scope, regularOnly)
	}
	return rows, nil
}

// InvalidateLeaderboards drops every cached leaderboard for a season.
func (s *StandingsService) InvalidateLeaderboards(ctx context.Context, seasonID string) {
	s.leaderboards.DeletePrefix(ctx, "standings:lb:"+seasonID+":")
}

func (s *StandingsService) computeLeaderboard(ctx context.Context, seasonID string, scope pick.Scope, regularOnly bool) ([]standings.Row, error) {
	seasonRow, found, err := s.seasonRepo.GetByID(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("get season: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: season %s", ErrNotFound, seasonID)
	}

	picks, err := s.pickRepo.ListBySeason(ctx, seasonID, scope)
	if err != nil {
		return nil, fmt.Errorf("list season picks: %w", err)
	}

	byPicker := make(map[string]*standings.Row)
	order := make([]string, 0)
	for _, p := range picks {
		if regularOnly && !seasonRow.InRegularPhase(p.Week) {
			continue
		}
		row, exists := byPicker[p.PickerID]
		if !exists {
			row = &standings.Row{PickerID: p.PickerID}
			byPicker[p.PickerID] = row
			order = append(order, p.PickerID)
		}
		switch p.Outcome {
		case pick.OutcomeWin:
			row.Wins++
		case pick.OutcomeLoss:
			row.Losses++
		case pick.OutcomeTie:
			row.Ties++
		default:
			continue
		}
		row.Points += p.Points
		row.Tiebreak += p.TiebreakValue
	}

	rows := make([]standings.Row, 0, len(order))
	for _, pickerID := range order {
		rows = append(rows, *byPicker[pickerID])
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].Tiebreak > rows[j].Tiebreak
	})

	rank := 0
	for i := range rows {
		if i == 0 || rows[i].Points != rows[i-1].Points || rows[i].Tiebreak != rows[i-1].Tiebreak {
			rank = i + 1
		}
		rows[i].Rank = rank
	}

	return rows, nil
}

func leaderboardCacheKey(seasonID string, scope pick.Scope, regularOnly bool) string {
	return fmt.Sprintf("standings:lb:%s:%s:%t", seasonID, scope, regularOnly)
}

func finalizePartition(part *standings.PartitionStats) {
	scored := part.Wins + part.Losses + part.Ties
	denominator := scored + part.MissedWeeks
	if denominator > 0 {
		part.Accuracy = float64(part.Wins) / float64(denominator)
	}
}

func combinePartitions(a, b standings.PartitionStats) standings.PartitionStats {
	total := standings.PartitionStats{
		Wins:        a.Wins + b.Wins,
		Losses:      a.Losses + b.Losses,
		Ties:        a.Ties + b.Ties,
		Points:      a.Points + b.Points,
		Tiebreak:    a.Tiebreak + b.Tiebreak,
		MissedWeeks: a.MissedWeeks + b.MissedWeeks,
	}
	finalizePartition(&total)
	return total
}

// longestStreaks scans scored picks in week order. Ties neither reset nor
// extend a running streak.
func longestStreaks(picks []pick.Pick) (longestWin, longestLoss int) {
	ordered := make([]pick.Pick, 0, len(picks))
	for _, p := range picks {
		if p.IsScored() {
			ordered = append(ordered, p)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Week < ordered[j].Week
	})

	winRun, lossRun := 0, 0
	for _, p := range ordered {
		switch p.Outcome {
		case pick.OutcomeWin:
			winRun++
			lossRun = 0
		case pick.OutcomeLoss:
			lossRun++
			winRun = 0
		case pick.OutcomeTie:
			continue
		}
		if winRun > longestWin {
			longestWin = winRun
		}
		if lossRun > longestLoss {
			longestLoss = lossRun
		}
	}
	return longestWin, longestLoss
}
