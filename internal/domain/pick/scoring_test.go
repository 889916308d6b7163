package pick

import (
	"errors"
	"testing"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
)

func finalContest(home, away int) contest.Contest {
	return contest.Contest{
		ID:         "c1",
		SeasonID:   "s1",
		Week:       1,
		HomeTeamID: "home",
		AwayTeamID: "away",
		StartsAt:   time.Date(2025, 9, 7, 13, 0, 0, 0, time.UTC),
		HomeScore:  &home,
		AwayScore:  &away,
		IsFinal:    true,
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		teamID      string
		contest     contest.Contest
		want        Result
		wantErr     error
		wantSomeErr bool
	}{
		{
			name:    "winner by ten",
			teamID:  "home",
			contest: finalContest(27, 17),
			want:    Result{Outcome: OutcomeWin, Points: 1.0, TiebreakValue: 10},
		},
		{
			name:    "loser by ten",
			teamID:  "away",
			contest: finalContest(27, 17),
			want:    Result{Outcome: OutcomeLoss, Points: 0.0, TiebreakValue: -10},
		},
		{
			name:    "away side win",
			teamID:  "away",
			contest: finalContest(14, 31),
			want:    Result{Outcome: OutcomeWin, Points: 1.0, TiebreakValue: 17},
		},
		{
			name:    "tie scores half for home picker",
			teamID:  "home",
			contest: finalContest(21, 21),
			want:    Result{Outcome: OutcomeTie, Points: 0.5, TiebreakValue: 0},
		},
		{
			name:    "tie scores half for away picker",
			teamID:  "away",
			contest: finalContest(21, 21),
			want:    Result{Outcome: OutcomeTie, Points: 0.5, TiebreakValue: 0},
		},
		{
			name:    "not final",
			teamID:  "home",
			contest: contest.Contest{ID: "c1", HomeTeamID: "home", AwayTeamID: "away"},
			wantErr: ErrContestNotFinal,
		},
		{
			name:        "team not in contest",
			teamID:      "other",
			contest:     finalContest(10, 3),
			wantSomeErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Score(tc.teamID, tc.contest)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if tc.wantSomeErr {
				if err == nil {
					t.Fatalf("expected error, got result %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			if got != tc.want {
				t.Fatalf("result mismatch: got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestScoreIdempotent(t *testing.T) {
	c := finalContest(24, 20)

	first, err := Score("home", c)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	second, err := Score("home", c)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if first != second {
		t.Fatalf("scoring is not idempotent: %+v vs %+v", first, second)
	}
}
