package team

import "fmt"

// Team is one franchise inside a season. No pool rules live here.
type Team struct {
	ID       string
	SeasonID string
	Name     string
	Abbr     string
	Wins     int
	Losses   int
	Ties     int
}

func (t Team) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if t.SeasonID == "" {
		return fmt.Errorf("team season id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}

	return nil
}
