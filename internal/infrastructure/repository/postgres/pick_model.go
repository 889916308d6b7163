package postgres

import (
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
)

// Scope is stored as a plain pool id column with '' for the global stream,
// which keeps the one-active-pick unique index free of NULL semantics.
type pickTableModel struct {
	ID            int64      `db:"id"`
	PublicID      string     `db:"public_id"`
	PickerID      string     `db:"picker_id"`
	SeasonID      string     `db:"season_public_id"`
	ContestID     string     `db:"contest_public_id"`
	Week          int        `db:"week"`
	PoolID        string     `db:"pool_public_id"`
	TeamID        string     `db:"team_public_id"`
	Outcome       string     `db:"outcome"`
	Points        float64    `db:"points"`
	TiebreakValue int        `db:"tiebreak_value"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

type pickInsertModel struct {
	PublicID      string  `db:"public_id"`
	PickerID      string  `db:"picker_id"`
	SeasonID      string  `db:"season_public_id"`
	ContestID     string  `db:"contest_public_id"`
	Week          int     `db:"week"`
	PoolID        string  `db:"pool_public_id"`
	TeamID        string  `db:"team_public_id"`
	Outcome       string  `db:"outcome"`
	Points        float64 `db:"points"`
	TiebreakValue int     `db:"tiebreak_value"`
}

func pickToDomain(row pickTableModel) pick.Pick {
	return pick.Pick{
		ID:            row.PublicID,
		PickerID:      row.PickerID,
		SeasonID:      row.SeasonID,
		ContestID:     row.ContestID,
		Week:          row.Week,
		Scope:         pick.PerPool(row.PoolID),
		TeamID:        row.TeamID,
		Outcome:       pick.Outcome(row.Outcome),
		Points:        row.Points,
		TiebreakValue: row.TiebreakValue,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func pickToInsertModel(p pick.Pick) pickInsertModel {
	return pickInsertModel{
		PublicID:      p.ID,
		PickerID:      p.PickerID,
		SeasonID:      p.SeasonID,
		ContestID:     p.ContestID,
		Week:          p.Week,
		PoolID:        p.Scope.PoolID,
		TeamID:        p.TeamID,
		Outcome:       string(p.Outcome),
		Points:        p.Points,
		TiebreakValue: p.TiebreakValue,
	}
}
