package pick

import (
	"errors"
	"fmt"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
)

var ErrContestNotFinal = errors.New("contest is not final")

// Result is the scored portion of a pick.
type Result struct {
	Outcome       Outcome
	Points        float64
	TiebreakValue int
}

// Score maps a finished contest and a picked team to a result. Ties score
// half a point with no tiebreak signal; wins carry the positive margin and
// losses the negative margin. The mapping does not depend on the week, so
// scoring the same finalized contest twice yields the same result.
func Score(teamID string, c contest.Contest) (Result, error) {
	if !c.IsFinal || !c.HasScores() {
		return Result{}, fmt.Errorf("%w: contest=%s", ErrContestNotFinal, c.ID)
	}
	if !c.Involves(teamID) {
		return Result{}, fmt.Errorf("team %s does not play in contest %s", teamID, c.ID)
	}

	if c.IsTie() {
		return Result{Outcome: OutcomeTie, Points: 0.5, TiebreakValue: 0}, nil
	}

	winner, _ := c.Winner()
	if teamID == winner {
		return Result{Outcome: OutcomeWin, Points: 1.0, TiebreakValue: c.Margin()}, nil
	}
	return Result{Outcome: OutcomeLoss, Points: 0.0, TiebreakValue: -c.Margin()}, nil
}
