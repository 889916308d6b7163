package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/award"
	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
)

type seasonScopeRequest struct {
	SeasonID string `json:"season_id" validate:"required"`
	PoolID   string `json:"pool_id" validate:"omitempty,max=64"`
}

type awardDTO struct {
	ID        string    `json:"id"`
	SeasonID  string    `json:"season_id"`
	PickerID  string    `json:"picker_id"`
	PoolID    string    `json:"pool_id,omitempty"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func awardToDTO(a award.Award) awardDTO {
	return awardDTO{
		ID:        a.ID,
		SeasonID:  a.SeasonID,
		PickerID:  a.PickerID,
		PoolID:    a.Scope.PoolID,
		Type:      string(a.Type),
		CreatedAt: a.CreatedAt,
	}
}

func (h *Handler) decodeSeasonScope(ctx context.Context, w http.ResponseWriter, r *http.Request) (seasonScopeRequest, pick.Scope, bool) {
	var req seasonScopeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return seasonScopeRequest{}, pick.Scope{}, false
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return seasonScopeRequest{}, pick.Scope{}, false
	}
	return req, pick.PerPool(req.PoolID), true
}

// CreateSnapshots freezes the regular-phase leaderboard for a season.
// Safe to re-run; the stored rows win.
func (h *Handler) CreateSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateSnapshots")
	defer span.End()

	req, scope, ok := h.decodeSeasonScope(ctx, w, r)
	if !ok {
		return
	}

	rows, err := h.snapshotService.CreateSnapshot(ctx, req.SeasonID, scope)
	if err != nil {
		h.logger.WarnContext(ctx, "create snapshots failed", "season_id", req.SeasonID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]snapshotDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, snapshotToDTO(row))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

// GrantFinalGate marks the elimination-phase survivors that advance to
// the final contest.
func (h *Handler) GrantFinalGate(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GrantFinalGate")
	defer span.End()

	req, scope, ok := h.decodeSeasonScope(ctx, w, r)
	if !ok {
		return
	}

	rows, err := h.snapshotService.GrantFinalGate(ctx, req.SeasonID, scope)
	if err != nil {
		h.logger.WarnContext(ctx, "grant final gate failed", "season_id", req.SeasonID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]snapshotDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, snapshotToDTO(row))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

// FinalizeSeason closes out the season and hands out awards. Idempotent:
// a finalized season returns its existing awards.
func (h *Handler) FinalizeSeason(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.FinalizeSeason")
	defer span.End()

	req, scope, ok := h.decodeSeasonScope(ctx, w, r)
	if !ok {
		return
	}

	awards, err := h.snapshotService.FinalizeSeason(ctx, req.SeasonID, scope)
	if err != nil {
		h.logger.WarnContext(ctx, "finalize season failed", "season_id", req.SeasonID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]awardDTO, 0, len(awards))
	for _, a := range awards {
		items = append(items, awardToDTO(a))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) ListAwards(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListAwards")
	defer span.End()

	seasonID, err := requiredQuery(r, "season_id")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	awards, err := h.snapshotService.ListAwards(ctx, seasonID, scopeFromQuery(r))
	if err != nil {
		h.logger.WarnContext(ctx, "list awards failed", "season_id", seasonID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]awardDTO, 0, len(awards))
	for _, a := range awards {
		items = append(items, awardToDTO(a))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}
