package postgres

import "time"

type seasonTableModel struct {
	ID                 int64      `db:"id"`
	PublicID           string     `db:"public_id"`
	Year               int        `db:"year"`
	RegularPhaseLength int        `db:"regular_phase_length"`
	PostPhaseLength    int        `db:"post_phase_length"`
	CurrentPeriod      int        `db:"current_period"`
	IsComplete         bool       `db:"is_complete"`
	IsCurrent          bool       `db:"is_current"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	DeletedAt          *time.Time `db:"deleted_at"`
}

type seasonInsertModel struct {
	PublicID           string `db:"public_id"`
	Year               int    `db:"year"`
	RegularPhaseLength int    `db:"regular_phase_length"`
	PostPhaseLength    int    `db:"post_phase_length"`
	CurrentPeriod      int    `db:"current_period"`
	IsComplete         bool   `db:"is_complete"`
	IsCurrent          bool   `db:"is_current"`
}
