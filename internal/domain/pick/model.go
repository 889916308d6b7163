package pick

import (
	"fmt"
	"time"
)

type Outcome string

const (
	OutcomeUnset Outcome = ""
	OutcomeWin   Outcome = "win"
	OutcomeLoss  Outcome = "loss"
	OutcomeTie   Outcome = "tie"
)

// Pick is one picker's team choice for one contest in one week.
// Result fields stay unset until the contest is final.
type Pick struct {
	ID        string
	PickerID  string
	SeasonID  string
	ContestID string
	Week      int
	Scope     Scope
	TeamID    string

	Outcome       Outcome
	Points        float64
	TiebreakValue int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Pick) Validate() error {
	if p.PickerID == "" {
		return fmt.Errorf("picker id is required")
	}
	if p.SeasonID == "" {
		return fmt.Errorf("season id is required")
	}
	if p.ContestID == "" {
		return fmt.Errorf("contest id is required")
	}
	if p.TeamID == "" {
		return fmt.Errorf("team id is required")
	}
	if p.Week <= 0 {
		return fmt.Errorf("week must be greater than zero")
	}

	return nil
}

// IsScored reports whether the pick's contest finished and a result was applied.
func (p Pick) IsScored() bool {
	return p.Outcome != OutcomeUnset
}
