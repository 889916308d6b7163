package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/domain/standings"
	"github.com/pickemlabs/pickem-engine/internal/usecase"
)

type leaderboardRowDTO struct {
	Rank     int     `json:"rank"`
	PickerID string  `json:"picker_id"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	Ties     int     `json:"ties"`
	Points   float64 `json:"points"`
	Tiebreak int     `json:"tiebreak"`
}

type partitionStatsDTO struct {
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Ties        int     `json:"ties"`
	Points      float64 `json:"points"`
	Tiebreak    int     `json:"tiebreak"`
	MissedWeeks int     `json:"missed_weeks"`
	Accuracy    float64 `json:"accuracy"`
}

type seasonStatsDTO struct {
	PickerID string `json:"picker_id"`
	SeasonID string `json:"season_id"`
	PoolID   string `json:"pool_id,omitempty"`

	Regular     partitionStatsDTO `json:"regular"`
	Elimination partitionStatsDTO `json:"elimination"`
	Total       partitionStatsDTO `json:"total"`

	LongestWinStreak  int `json:"longest_win_streak"`
	LongestLossStreak int `json:"longest_loss_streak"`
}

type snapshotDTO struct {
	ID                    string    `json:"id"`
	SeasonID              string    `json:"season_id"`
	PickerID              string    `json:"picker_id"`
	PoolID                string    `json:"pool_id,omitempty"`
	FinalRank             int       `json:"final_rank"`
	Wins                  int       `json:"wins"`
	Losses                int       `json:"losses"`
	Ties                  int       `json:"ties"`
	Points                float64   `json:"points"`
	Tiebreak              int       `json:"tiebreak"`
	AdvancesToElimination bool      `json:"advances_to_elimination"`
	AdvancesToFinal       bool      `json:"advances_to_final"`
	CreatedAt             time.Time `json:"created_at"`
}

func partitionToDTO(p standings.PartitionStats) partitionStatsDTO {
	return partitionStatsDTO{
		Wins:        p.Wins,
		Losses:      p.Losses,
		Ties:        p.Ties,
		Points:      p.Points,
		Tiebreak:    p.Tiebreak,
		MissedWeeks: p.MissedWeeks,
		Accuracy:    p.Accuracy,
	}
}

func snapshotToDTO(s standings.Snapshot) snapshotDTO {
	return snapshotDTO{
		ID:                    s.ID,
		SeasonID:              s.SeasonID,
		PickerID:              s.PickerID,
		PoolID:                s.Scope.PoolID,
		FinalRank:             s.FinalRank,
		Wins:                  s.Wins,
		Losses:                s.Losses,
		Ties:                  s.Ties,
		Points:                s.Points,
		Tiebreak:              s.Tiebreak,
		AdvancesToElimination: s.AdvancesToElimination,
		AdvancesToFinal:       s.AdvancesToFinal,
		CreatedAt:             s.CreatedAt,
	}
}

// scopeFromQuery reads the optional pool_id parameter; absent means the
// shared global pick stream.
func scopeFromQuery(r *http.Request) pick.Scope {
	return pick.PerPool(strings.TrimSpace(r.URL.Query().Get("pool_id")))
}

func requiredQuery(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return "", fmt.Errorf("%w: %s query parameter is required", usecase.ErrInvalidInput, name)
	}
	return value, nil
}

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLeaderboard")
	defer span.End()

	seasonID, err := requiredQuery(r, "season_id")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	phase := strings.TrimSpace(r.URL.Query().Get("phase"))
	regularOnly := false
	switch phase {
	case "", "overall":
	case "regular":
		regularOnly = true
	default:
		writeError(ctx, w, fmt.Errorf("%w: phase must be regular or overall", usecase.ErrInvalidInput))
		return
	}

	rows, err := h.standingsService.Leaderboard(ctx, seasonID, scopeFromQuery(r), regularOnly)
	if err != nil {
		h.logger.WarnContext(ctx, "get leaderboard failed", "season_id", seasonID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]leaderboardRowDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, leaderboardRowDTO{
			Rank:     row.Rank,
			PickerID: row.PickerID,
			Wins:     row.Wins,
			Losses:   row.Losses,
			Ties:     row.Ties,
			Points:   row.Points,
			Tiebreak: row.Tiebreak,
		})
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetSeasonStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetSeasonStats")
	defer span.End()

	seasonID, err := requiredQuery(r, "season_id")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	pickerID, err := requiredQuery(r, "picker_id")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	stats, err := h.standingsService.SeasonStats(ctx, pickerID, seasonID, scopeFromQuery(r))
	if err != nil {
		h.logger.WarnContext(ctx, "get season stats failed", "season_id", seasonID, "picker_id", pickerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, seasonStatsDTO{
		PickerID:          stats.PickerID,
		SeasonID:          stats.SeasonID,
		PoolID:            stats.Scope.PoolID,
		Regular:           partitionToDTO(stats.Regular),
		Elimination:       partitionToDTO(stats.Elimination),
		Total:             partitionToDTO(stats.Total),
		LongestWinStreak:  stats.LongestWinStreak,
		LongestLossStreak: stats.LongestLossStreak,
	})
}

func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListSnapshots")
	defer span.End()

	seasonID, err := requiredQuery(r, "season_id")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	rows, err := h.snapshotService.ListSnapshots(ctx, seasonID, scopeFromQuery(r))
	if err != nil {
		h.logger.WarnContext(ctx, "list snapshots failed", "season_id", seasonID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]snapshotDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, snapshotToDTO(row))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}
