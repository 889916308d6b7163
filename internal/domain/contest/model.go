package contest

import "time"

// Contest is one scheduled game between two teams.
type Contest struct {
	ID         string
	SeasonID   string
	Week       int
	HomeTeamID string
	AwayTeamID string
	StartsAt   time.Time
	HomeScore  *int
	AwayScore  *int
	IsFinal    bool
	IsOvertime bool
}

// HasScores reports whether both scores are recorded.
func (c Contest) HasScores() bool {
	return c.HomeScore != nil && c.AwayScore != nil
}

func (c Contest) IsTie() bool {
	if !c.IsFinal || !c.HasScores() {
		return false
	}
	return *c.HomeScore == *c.AwayScore
}

// Winner returns the winning team id. ok is false for ties and for
// contests that are not final.
func (c Contest) Winner() (string, bool) {
	if !c.IsFinal || !c.HasScores() || c.IsTie() {
		return "", false
	}
	if *c.HomeScore > *c.AwayScore {
		return c.HomeTeamID, true
	}
	return c.AwayTeamID, true
}

// Margin is the absolute score differential. Zero for ties and for
// contests without scores.
func (c Contest) Margin() int {
	if !c.HasScores() {
		return 0
	}
	diff := *c.HomeScore - *c.AwayScore
	if diff < 0 {
		return -diff
	}
	return diff
}

// Pickable reports whether a pick may still target this contest.
func (c Contest) Pickable(now time.Time) bool {
	return !c.IsFinal && now.Before(c.StartsAt)
}

// Involves reports whether teamID plays in this contest.
func (c Contest) Involves(teamID string) bool {
	return teamID != "" && (teamID == c.HomeTeamID || teamID == c.AwayTeamID)
}

// Opponent returns the team opposing teamID, or "" when teamID does not play.
func (c Contest) Opponent(teamID string) string {
	switch teamID {
	case c.HomeTeamID:
		return c.AwayTeamID
	case c.AwayTeamID:
		return c.HomeTeamID
	default:
		return ""
	}
}
