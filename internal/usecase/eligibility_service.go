package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/domain/season"
	idgen "github.com/pickemlabs/pickem-engine/internal/platform/id"
)

// Denial reasons returned to pickers. These are values, not errors: a
// denied pick is an expected outcome and changes no state.
const (
	ReasonContestStarted   = "contest has already started"
	ReasonContestFinal     = "contest is already final"
	ReasonExistingLocked   = "existing pick is locked: its contest already started"
	ReasonTeamAlreadyUsed  = "team was already picked this season"
	ReasonLosingTeamRepeat = "team lost last week and cannot be picked again this week"
	ReasonOpponentRepeat   = "team played against last week's pick"
)

// Decision is the validator verdict for a proposed pick.
type Decision struct {
	Allowed bool
	Reason  string
	// SupersededPickID names the existing same-week pick that the new pick
	// replaces, when one exists and is still replaceable.
	SupersededPickID string
}

func allowed(supersededID string) Decision {
	return Decision{Allowed: true, SupersededPickID: supersededID}
}

func denied(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// PickRequest is one proposed pick.
type PickRequest struct {
	PickerID      string
	SeasonID      string
	ContestID     string
	TeamID        string
	Scope         pick.Scope
	ExcludePickID string
	// AdminOverride skips the history rules. Contest-state checking is
	// still bypassed only through ForceContestState.
	AdminOverride     bool
	ForceContestState bool
}

type EligibilityService struct {
	seasonRepo  season.Repository
	contestRepo contest.Repository
	pickRepo    pick.Repository
	idGen       idgen.Generator
	now         func() time.Time

	// submitMu serializes check-then-write per (picker, week, scope). The
	// unique index in the store is the final arbiter; this is the fast path.
	submitMu sync.Mutex
	inFlight map[string]*sync.Mutex
}

func NewEligibilityService(
	seasonRepo season.Repository,
	contestRepo contest.Repository,
	pickRepo pick.Repository,
	idGen idgen.Generator,
) *EligibilityService {
	return &EligibilityService{
		seasonRepo:  seasonRepo,
		contestRepo: contestRepo,
		pickRepo:    pickRepo,
		idGen:       idGen,
		now:         time.Now,
		inFlight:    make(map[string]*sync.Mutex),
	}
}

// Validate runs the eligibility rules for a proposed pick without writing
// anything. Rules run in order and stop at the first denial.
func (s *EligibilityService) Validate(ctx context.Context, req PickRequest) (Decision, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.EligibilityService.Validate")
	defer span.End()

	if req.PickerID == "" || req.SeasonID == "" || req.ContestID == "" || req.TeamID == "" {
		return Decision{}, fmt.Errorf("%w: picker, season, contest and team are required", ErrInvalidInput)
	}

	seasonRow, found, err := s.seasonRepo.GetByID(ctx, req.SeasonID)
	if err != nil {
		return Decision{}, fmt.Errorf("get season: %w", err)
	}
	if !found {
		return Decision{}, fmt.Errorf("%w: season %s", ErrNotFound, req.SeasonID)
	}

	proposed, found, err := s.contestRepo.GetByID(ctx, req.ContestID)
	if err != nil {
		return Decision{}, fmt.Errorf("get contest: %w", err)
	}
	if !found {
		return Decision{}, fmt.Errorf("%w: contest %s", ErrNotFound, req.ContestID)
	}
	if proposed.SeasonID != req.SeasonID {
		return Decision{}, fmt.Errorf("%w: contest %s does not belong to season %s", ErrInvalidInput, req.ContestID, req.SeasonID)
	}
	if !proposed.Involves(req.TeamID) {
		return Decision{}, fmt.Errorf("%w: team %s does not play in contest %s", ErrInvalidInput, req.TeamID, req.ContestID)
	}

	now := s.now().UTC()

	// Rule 1: contest state.
	if !req.ForceContestState {
		if proposed.IsFinal {
			return denied(ReasonContestFinal), nil
		}
		if !now.Before(proposed.StartsAt) {
			return denied(ReasonContestStarted), nil
		}
	}

	// Rule 2: single active pick per week. A superseded pick is only
	// replaceable while its own contest has not started.
	supersededID := ""
	existing, found, err := s.pickRepo.GetActive(ctx, req.PickerID, req.SeasonID, proposed.Week, req.Scope)
	if err != nil {
		return Decision{}, fmt.Errorf("get active pick: %w", err)
	}
	if found && existing.ID != req.ExcludePickID {
		existingContest, contestFound, err := s.contestRepo.GetByID(ctx, existing.ContestID)
		if err != nil {
			return Decision{}, fmt.Errorf("get existing pick contest: %w", err)
		}
		if contestFound && !req.AdminOverride && !now.Before(existingContest.StartsAt) {
			return denied(fmt.Sprintf("%s (%s)", ReasonExistingLocked, existingContest.ID)), nil
		}
		supersededID = existing.ID
	}

	if req.AdminOverride {
		return allowed(supersededID), nil
	}

	// Elimination and final periods re-open the whole team pool, so the
	// history rules only bind during the regular phase.
	if seasonRow.InEliminationPhase(proposed.Week) {
		return allowed(supersededID), nil
	}

	history, err := s.pickRepo.ListByPicker(ctx, req.PickerID, req.SeasonID, req.Scope)
	if err != nil {
		return Decision{}, fmt.Errorf("list picker history: %w", err)
	}

	// Rule 3: one team per season.
	for _, past := range history {
		if past.ID == supersededID || past.ID == req.ExcludePickID {
			continue
		}
		if past.TeamID == req.TeamID {
			return denied(ReasonTeamAlreadyUsed), nil
		}
	}

	previous, found := previousWeekPick(history, proposed.Week, supersededID, req.ExcludePickID)
	if !found {
		return allowed(supersededID), nil
	}

	// Rule 4: no immediate repeat of a losing team. Ties are not losses.
	if previous.Outcome == pick.OutcomeLoss && previous.TeamID == req.TeamID {
		return denied(ReasonLosingTeamRepeat), nil
	}

	// Rule 5: no immediate repeat opponent.
	previousContest, contestFound, err := s.contestRepo.GetByID(ctx, previous.ContestID)
	if err != nil {
		return Decision{}, fmt.Errorf("get previous pick contest: %w", err)
	}
	if contestFound {
		opponent := previousContest.Opponent(previous.TeamID)
		if opponent != "" && proposed.Involves(opponent) {
			return denied(ReasonOpponentRepeat), nil
		}
	}

	return allowed(supersededID), nil
}

// SubmitPick validates and writes a pick as one critical section per
// (picker, week, scope). A denial is returned in the decision, not as an
// error; a duplicate-pick constraint violation surfaces as ErrConflict.
func (s *EligibilityService) SubmitPick(ctx context.Context, req PickRequest) (pick.Pick, Decision, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.EligibilityService.SubmitPick")
	defer span.End()

	proposed, found, err := s.contestRepo.GetByID(ctx, req.ContestID)
	if err != nil {
		return pick.Pick{}, Decision{}, fmt.Errorf("get contest: %w", err)
	}
	if !found {
		return pick.Pick{}, Decision{}, fmt.Errorf("%w: contest %s", ErrNotFound, req.ContestID)
	}

	unlock := s.lockSubmission(req.PickerID, proposed.Week, req.Scope)
	defer unlock()

	decision, err := s.Validate(ctx, req)
	if err != nil {
		return pick.Pick{}, Decision{}, err
	}
	if !decision.Allowed {
		return pick.Pick{}, decision, nil
	}

	pickID, err := s.idGen.NewID()
	if err != nil {
		return pick.Pick{}, Decision{}, fmt.Errorf("generate pick id: %w", err)
	}

	now := s.now().UTC()
	newPick := pick.Pick{
		ID:        pickID,
		PickerID:  req.PickerID,
		SeasonID:  req.SeasonID,
		ContestID: req.ContestID,
		Week:      proposed.Week,
		Scope:     req.Scope,
		TeamID:    req.TeamID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := newPick.Validate(); err != nil {
		return pick.Pick{}, Decision{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if decision.SupersededPickID != "" {
		err = s.pickRepo.Replace(ctx, decision.SupersededPickID, newPick)
	} else {
		err = s.pickRepo.Create(ctx, newPick)
	}
	if err != nil {
		return pick.Pick{}, Decision{}, fmt.Errorf("write pick: %w", err)
	}

	return newPick, decision, nil
}

// DeletePick removes a picker's own pick. Admins may remove any pick.
func (s *EligibilityService) DeletePick(ctx context.Context, pickID, requesterID string, isAdmin bool) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.EligibilityService.DeletePick")
	defer span.End()

	if pickID == "" {
		return fmt.Errorf("%w: pick id is required", ErrInvalidInput)
	}

	existing, found, err := s.pickRepo.GetByID(ctx, pickID)
	if err != nil {
		return fmt.Errorf("get pick: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: pick %s", ErrNotFound, pickID)
	}
	if !isAdmin && existing.PickerID != requesterID {
		return fmt.Errorf("%w: pick %s belongs to another picker", ErrUnauthorized, pickID)
	}

	if err := s.pickRepo.Delete(ctx, pickID); err != nil {
		return fmt.Errorf("delete pick: %w", err)
	}
	return nil
}

func (s *EligibilityService) lockSubmission(pickerID string, week int, scope pick.Scope) func() {
	key := fmt.Sprintf("%s|%d|%s", pickerID, week, scope)

	s.submitMu.Lock()
	mu, ok := s.inFlight[key]
	if !ok {
		mu = &sync.Mutex{}
		s.inFlight[key] = mu
	}
	s.submitMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// previousWeekPick finds the pick for the week immediately before the
// proposed week, skipping superseded and excluded picks.
func previousWeekPick(history []pick.Pick, week int, skipIDs ...string) (pick.Pick, bool) {
	for _, past := range history {
		if past.Week != week-1 {
			continue
		}
		skipped := false
		for _, id := range skipIDs {
			if id != "" && past.ID == id {
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}
		return past, true
	}
	return pick.Pick{}, false
}
