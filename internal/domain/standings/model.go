package standings

import (
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
)

// PartitionStats aggregates one phase partition of a picker's season.
type PartitionStats struct {
	Wins        int
	Losses      int
	Ties        int
	Points      float64
	Tiebreak    int
	MissedWeeks int
	// Accuracy is wins over scored picks plus missed weeks, in [0, 1].
	Accuracy float64
}

// SeasonStats is a picker's full-season aggregate.
type SeasonStats struct {
	PickerID string
	SeasonID string
	Scope    pick.Scope

	Regular     PartitionStats
	Elimination PartitionStats
	Total       PartitionStats

	LongestWinStreak  int
	LongestLossStreak int
}

// Row is one leaderboard entry. Rank is shared between exact ties.
type Row struct {
	Rank     int
	PickerID string
	Wins     int
	Losses   int
	Ties     int
	Points   float64
	Tiebreak int
}

// Snapshot freezes a picker's regular-phase finish. AdvancesToFinal is the
// only field that may change after creation; AdvancesToElimination is never
// revoked.
type Snapshot struct {
	ID        string
	SeasonID  string
	PickerID  string
	Scope     pick.Scope
	FinalRank int
	Wins      int
	Losses    int
	Ties      int
	Points    float64
	Tiebreak  int

	AdvancesToElimination bool
	AdvancesToFinal       bool

	CreatedAt time.Time
}
