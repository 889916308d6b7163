package httpapi

import (
	"net/http"
)

type teamDTO struct {
	ID       string `json:"id"`
	SeasonID string `json:"season_id"`
	Name     string `json:"name"`
	Abbr     string `json:"abbr,omitempty"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Ties     int    `json:"ties"`
}

func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListTeams")
	defer span.End()

	seasonID, err := requiredQuery(r, "season_id")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	teams, err := h.teamRepo.ListBySeason(ctx, seasonID)
	if err != nil {
		h.logger.WarnContext(ctx, "list teams failed", "season_id", seasonID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]teamDTO, 0, len(teams))
	for _, t := range teams {
		items = append(items, teamDTO{
			ID:       t.ID,
			SeasonID: t.SeasonID,
			Name:     t.Name,
			Abbr:     t.Abbr,
			Wins:     t.Wins,
			Losses:   t.Losses,
			Ties:     t.Ties,
		})
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}
