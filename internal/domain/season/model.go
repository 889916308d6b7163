package season

import "fmt"

// Season is one pool year. Exactly one season is current at a time.
type Season struct {
	ID                 string
	Year               int
	RegularPhaseLength int
	PostPhaseLength    int
	CurrentPeriod      int
	IsComplete         bool
	IsCurrent          bool
}

func (s Season) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("season id is required")
	}
	if s.Year <= 0 {
		return fmt.Errorf("season year is required")
	}
	if s.RegularPhaseLength <= 0 {
		return fmt.Errorf("regular phase length must be greater than zero")
	}
	if s.PostPhaseLength < 0 {
		return fmt.Errorf("post phase length must not be negative")
	}

	return nil
}

// FinalWeek is the last playable week of the season.
func (s Season) FinalWeek() int {
	return s.RegularPhaseLength + s.PostPhaseLength
}

func (s Season) InRegularPhase(week int) bool {
	return week >= 1 && week <= s.RegularPhaseLength
}

// InEliminationPhase reports whether week falls past the regular phase,
// including the final week.
func (s Season) InEliminationPhase(week int) bool {
	return week > s.RegularPhaseLength && week <= s.FinalWeek()
}
