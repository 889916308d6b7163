package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/award"
	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/domain/season"
	"github.com/pickemlabs/pickem-engine/internal/domain/standings"
	idgen "github.com/pickemlabs/pickem-engine/internal/platform/id"
)

const eliminationGateRank = 4
const finalGateCount = 2

// SnapshotService freezes phase-boundary eligibility and hands out season
// awards. Snapshots are never recomputed once created so later score
// corrections cannot drift the frozen regular-phase ranking.
type SnapshotService struct {
	seasonRepo   season.Repository
	contestRepo  contest.Repository
	pickRepo     pick.Repository
	snapshotRepo standings.SnapshotRepository
	awardRepo    award.Repository
	standings    *StandingsService
	idGen        idgen.Generator
	now          func() time.Time
}

func NewSnapshotService(
	seasonRepo season.Repository,
	contestRepo contest.Repository,
	pickRepo pick.Repository,
	snapshotRepo standings.SnapshotRepository,
	awardRepo award.Repository,
	standingsService *StandingsService,
	idGen idgen.Generator,
) *SnapshotService {
	return &SnapshotService{
		seasonRepo:   seasonRepo,
		contestRepo:  contestRepo,
		pickRepo:     pickRepo,
		snapshotRepo: snapshotRepo,
		awardRepo:    awardRepo,
		standings:    standingsService,
		idGen:        idGen,
		now:          time.Now,
	}
}

// CreateSnapshot freezes the regular-phase leaderboard once the final
// regular week is fully scored. Re-running is a no-op that returns the
// existing rows.
func (s *SnapshotService) CreateSnapshot(ctx context.Context, seasonID string, scope pick.Scope) ([]standings.Snapshot, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.CreateSnapshot")
	defer span.End()

	seasonRow, err := s.getSeason(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	existing, err := s.snapshotRepo.ListBySeason(ctx, seasonID, scope)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	complete, err := s.weekFullyFinal(ctx, seasonID, seasonRow.RegularPhaseLength)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, fmt.Errorf("%w: regular phase week %d is not fully final", ErrInvalidInput, seasonRow.RegularPhaseLength)
	}

	rows, err := s.standings.Leaderboard(ctx, seasonID, scope, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no picks to snapshot for season %s", ErrInvalidInput, seasonID)
	}

	now := s.now().UTC()
	snapshots := make([]standings.Snapshot, 0, len(rows))
	for _, row := range rows {
		snapshotID, err := s.idGen.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate snapshot id: %w", err)
		}
		snapshots = append(snapshots, standings.Snapshot{
			ID:                    snapshotID,
			SeasonID:              seasonID,
			PickerID:              row.PickerID,
			Scope:                 scope,
			FinalRank:             row.Rank,
			Wins:                  row.Wins,
			Losses:                row.Losses,
			Ties:                  row.Ties,
			Points:                row.Points,
			Tiebreak:              row.Tiebreak,
			AdvancesToElimination: row.Rank <= eliminationGateRank,
			CreatedAt:             now,
		})
	}

	if err := s.snapshotRepo.CreateAll(ctx, snapshots); err != nil {
		// A concurrent call may have won the race; the stored rows are the
		// authoritative snapshot either way.
		stored, listErr := s.snapshotRepo.ListBySeason(ctx, seasonID, scope)
		if listErr == nil && len(stored) > 0 {
			return stored, nil
		}
		return nil, fmt.Errorf("create snapshots: %w", err)
	}

	return snapshots, nil
}

// GrantFinalGate re-ranks the elimination-eligible pickers once the first
// elimination round is fully scored and grants the final gate to the top
// two. It is deterministic and re-runnable: the gate is reset and
// reassigned from current elimination results on every call.
func (s *SnapshotService) GrantFinalGate(ctx context.Context, seasonID string, scope pick.Scope) ([]standings.Snapshot, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.GrantFinalGate")
	defer span.End()

	seasonRow, err := s.getSeason(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.snapshotRepo.ListBySeason(ctx, seasonID, scope)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%w: no snapshot exists for season %s", ErrNotFound, seasonID)
	}

	firstEliminationWeek := seasonRow.RegularPhaseLength + 1
	complete, err := s.weekFullyFinal(ctx, seasonID, firstEliminationWeek)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, fmt.Errorf("%w: elimination week %d is not fully final", ErrInvalidInput, firstEliminationWeek)
	}

	picks, err := s.pickRepo.ListBySeason(ctx, seasonID, scope)
	if err != nil {
		return nil, fmt.Errorf("list season picks: %w", err)
	}

	type contender struct {
		pickerID        string
		eliminationWins int
		seasonTiebreak  int
	}

	contenders := make([]contender, 0, len(snapshots))
	for _, snapshot := range snapshots {
		if !snapshot.AdvancesToElimination {
			continue
		}
		c := contender{pickerID: snapshot.PickerID}
		for _, p := range picks {
			if p.PickerID != snapshot.PickerID || !p.IsScored() {
				continue
			}
			c.seasonTiebreak += p.TiebreakValue
			if seasonRow.InEliminationPhase(p.Week) && p.Outcome == pick.OutcomeWin {
				c.eliminationWins++
			}
		}
		contenders = append(contenders, c)
	}

	sort.SliceStable(contenders, func(i, j int) bool {
		if contenders[i].eliminationWins != contenders[j].eliminationWins {
			return contenders[i].eliminationWins > contenders[j].eliminationWins
		}
		return contenders[i].seasonTiebreak > contenders[j].seasonTiebreak
	})

	granted := make([]string, 0, finalGateCount)
	for i, c := range contenders {
		if i >= finalGateCount {
			break
		}
		granted = append(granted, c.pickerID)
	}

	if err := s.snapshotRepo.SetFinalGate(ctx, seasonID, scope, granted); err != nil {
		return nil, fmt.Errorf("set final gate: %w", err)
	}

	return s.snapshotRepo.ListBySeason(ctx, seasonID, scope)
}

// IsEliminationEligible prefers the frozen snapshot and only falls back to
// a live leaderboard when no snapshot exists yet.
func (s *SnapshotService) IsEliminationEligible(ctx context.Context, seasonID, pickerID string, scope pick.Scope) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.IsEliminationEligible")
	defer span.End()

	snapshot, found, err := s.snapshotRepo.GetByPicker(ctx, seasonID, pickerID, scope)
	if err != nil {
		return false, fmt.Errorf("get snapshot: %w", err)
	}
	if found {
		return snapshot.AdvancesToElimination, nil
	}

	rows, err := s.standings.Leaderboard(ctx, seasonID, scope, true)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.PickerID == pickerID {
			return row.Rank <= eliminationGateRank, nil
		}
	}
	return false, nil
}

// IsFinalEligible reads only the snapshot gate; the final gate has no live
// fallback because it is meaningless before the snapshot exists.
func (s *SnapshotService) IsFinalEligible(ctx context.Context, seasonID, pickerID string, scope pick.Scope) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.IsFinalEligible")
	defer span.End()

	snapshot, found, err := s.snapshotRepo.GetByPicker(ctx, seasonID, pickerID, scope)
	if err != nil {
		return false, fmt.Errorf("get snapshot: %w", err)
	}
	return found && snapshot.AdvancesToFinal, nil
}

// FinalizeSeason determines placement once the last week is fully final and
// creates the awards. When the final-week contest was played by the two
// final-gate pickers their head-to-head result decides first and second,
// and the best non-participant takes third; otherwise the season-long
// leaderboard top three are awarded directly. Award creation is idempotent,
// so re-running after a partial failure only fills the gaps.
func (s *SnapshotService) FinalizeSeason(ctx context.Context, seasonID string, scope pick.Scope) ([]award.Award, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.FinalizeSeason")
	defer span.End()

	seasonRow, err := s.getSeason(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	complete, err := s.weekFullyFinal(ctx, seasonID, seasonRow.FinalWeek())
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, fmt.Errorf("%w: final week %d is not fully final", ErrInvalidInput, seasonRow.FinalWeek())
	}

	placements, err := s.determinePlacements(ctx, seasonRow, scope)
	if err != nil {
		return nil, err
	}

	types := []award.Type{award.TypeChampion, award.TypeRunnerUp, award.TypeThirdPlace}
	now := s.now().UTC()
	created := make([]award.Award, 0, len(placements))
	for i, pickerID := range placements {
		if i >= len(types) || pickerID == "" {
			break
		}
		awardID, err := s.idGen.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate award id: %w", err)
		}
		row := award.Award{
			ID:        awardID,
			SeasonID:  seasonID,
			PickerID:  pickerID,
			Scope:     scope,
			Type:      types[i],
			CreatedAt: now,
		}
		if _, err := s.awardRepo.CreateIfAbsent(ctx, row); err != nil {
			return nil, fmt.Errorf("create award: %w", err)
		}
		created = append(created, row)
	}

	if !seasonRow.IsComplete {
		if err := s.seasonRepo.MarkComplete(ctx, seasonID); err != nil {
			return nil, fmt.Errorf("mark season complete: %w", err)
		}
	}

	return created, nil
}

// determinePlacements returns picker ids ordered champion, runner-up, third.
func (s *SnapshotService) determinePlacements(ctx context.Context, seasonRow season.Season, scope pick.Scope) ([]string, error) {
	rows, err := s.standings.Leaderboard(ctx, seasonRow.ID, scope, false)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no picks for season %s", ErrInvalidInput, seasonRow.ID)
	}

	finalists, err := s.finalWeekResults(ctx, seasonRow, scope)
	if err != nil {
		return nil, err
	}
	if len(finalists) != finalGateCount {
		// No played final matchup: fall straight through to the season
		// leaderboard.
		placements := make([]string, 0, 3)
		for i := 0; i < len(rows) && i < 3; i++ {
			placements = append(placements, rows[i].PickerID)
		}
		return placements, nil
	}

	placements := []string{finalists[0], finalists[1]}
	for _, row := range rows {
		if row.PickerID == finalists[0] || row.PickerID == finalists[1] {
			continue
		}
		placements = append(placements, row.PickerID)
		break
	}
	return placements, nil
}

// finalWeekResults orders the two final-gate pickers by their final-week
// pick results. An empty slice means the final matchup did not happen.
func (s *SnapshotService) finalWeekResults(ctx context.Context, seasonRow season.Season, scope pick.Scope) ([]string, error) {
	snapshots, err := s.snapshotRepo.ListBySeason(ctx, seasonRow.ID, scope)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	type finalist struct {
		pickerID string
		points   float64
		tiebreak int
	}

	finalists := make([]finalist, 0, finalGateCount)
	for _, snapshot := range snapshots {
		if !snapshot.AdvancesToFinal {
			continue
		}
		finalPick, found, err := s.pickRepo.GetActive(ctx, snapshot.PickerID, seasonRow.ID, seasonRow.FinalWeek(), scope)
		if err != nil {
			return nil, fmt.Errorf("get final week pick: %w", err)
		}
		if !found || !finalPick.IsScored() {
			return nil, nil
		}
		finalists = append(finalists, finalist{
			pickerID: snapshot.PickerID,
			points:   finalPick.Points,
			tiebreak: finalPick.TiebreakValue,
		})
	}
	if len(finalists) != finalGateCount {
		return nil, nil
	}

	sort.SliceStable(finalists, func(i, j int) bool {
		if finalists[i].points != finalists[j].points {
			return finalists[i].points > finalists[j].points
		}
		return finalists[i].tiebreak > finalists[j].tiebreak
	})

	return []string{finalists[0].pickerID, finalists[1].pickerID}, nil
}

// ListSnapshots returns the frozen snapshots for a season, ordered by
// final rank.
func (s *SnapshotService) ListSnapshots(ctx context.Context, seasonID string, scope pick.Scope) ([]standings.Snapshot, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.ListSnapshots")
	defer span.End()

	if _, err := s.getSeason(ctx, seasonID); err != nil {
		return nil, err
	}

	rows, err := s.snapshotRepo.ListBySeason(ctx, seasonID, scope)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return rows, nil
}

// ListAwards returns the awards granted for a season scope.
func (s *SnapshotService) ListAwards(ctx context.Context, seasonID string, scope pick.Scope) ([]award.Award, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.ListAwards")
	defer span.End()

	if _, err := s.getSeason(ctx, seasonID); err != nil {
		return nil, err
	}

	rows, err := s.awardRepo.ListBySeason(ctx, seasonID, scope)
	if err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}
	return rows, nil
}

func (s *SnapshotService) getSeason(ctx context.Context, seasonID string) (season.Season, error) {
	if seasonID == "" {
		return season.Season{}, fmt.Errorf("%w: season is required", ErrInvalidInput)
	}
	seasonRow, found, err := s.seasonRepo.GetByID(ctx, seasonID)
	if err != nil {
		return season.Season{}, fmt.Errorf("get season: %w", err)
	}
	if !found {
		return season.Season{}, fmt.Errorf("%w: season %s", ErrNotFound, seasonID)
	}
	return seasonRow, nil
}

// weekFullyFinal reports whether week has at least one contest and every
// contest that week is final.
func (s *SnapshotService) weekFullyFinal(ctx context.Context, seasonID string, week int) (bool, error) {
	contests, err := s.contestRepo.ListByWeek(ctx, seasonID, week)
	if err != nil {
		return false, fmt.Errorf("list contests for week %d: %w", week, err)
	}
	if len(contests) == 0 {
		return false, nil
	}
	for _, c := range contests {
		if !c.IsFinal {
			return false, nil
		}
	}
	return true, nil
}
