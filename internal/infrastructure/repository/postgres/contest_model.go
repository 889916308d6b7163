package postgres

import (
	"database/sql"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
)

type contestTableModel struct {
	ID         int64         `db:"id"`
	PublicID   string        `db:"public_id"`
	SeasonID   string        `db:"season_public_id"`
	Week       int           `db:"week"`
	HomeTeamID string        `db:"home_team_public_id"`
	AwayTeamID string        `db:"away_team_public_id"`
	StartsAt   int64         `db:"starts_at"`
	HomeScore  sql.NullInt64 `db:"home_score"`
	AwayScore  sql.NullInt64 `db:"away_score"`
	IsFinal    bool          `db:"is_final"`
	IsOvertime bool          `db:"is_overtime"`
	CreatedAt  time.Time     `db:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at"`
	DeletedAt  *time.Time    `db:"deleted_at"`
}

type contestInsertModel struct {
	PublicID   string `db:"public_id"`
	SeasonID   string `db:"season_public_id"`
	Week       int    `db:"week"`
	HomeTeamID string `db:"home_team_public_id"`
	AwayTeamID string `db:"away_team_public_id"`
	StartsAt   int64  `db:"starts_at"`
	HomeScore  *int64 `db:"home_score"`
	AwayScore  *int64 `db:"away_score"`
	IsFinal    bool   `db:"is_final"`
	IsOvertime bool   `db:"is_overtime"`
}

func contestToDomain(row contestTableModel) contest.Contest {
	return contest.Contest{
		ID:         row.PublicID,
		SeasonID:   row.SeasonID,
		Week:       row.Week,
		HomeTeamID: row.HomeTeamID,
		AwayTeamID: row.AwayTeamID,
		StartsAt:   unixToTime(row.StartsAt),
		HomeScore:  nullIntToIntPtr(row.HomeScore),
		AwayScore:  nullIntToIntPtr(row.AwayScore),
		IsFinal:    row.IsFinal,
		IsOvertime: row.IsOvertime,
	}
}

func contestToInsertModel(c contest.Contest) contestInsertModel {
	return contestInsertModel{
		PublicID:   c.ID,
		SeasonID:   c.SeasonID,
		Week:       c.Week,
		HomeTeamID: c.HomeTeamID,
		AwayTeamID: c.AwayTeamID,
		StartsAt:   timeToUnix(c.StartsAt),
		HomeScore:  intPtrToNullable(c.HomeScore),
		AwayScore:  intPtrToNullable(c.AwayScore),
		IsFinal:    c.IsFinal,
		IsOvertime: c.IsOvertime,
	}
}
