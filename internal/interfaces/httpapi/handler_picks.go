package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
	"github.com/pickemlabs/pickem-engine/internal/usecase"
)

type submitPickRequest struct {
	PickerID  string `json:"picker_id" validate:"required"`
	SeasonID  string `json:"season_id" validate:"required"`
	ContestID string `json:"contest_id" validate:"required"`
	TeamID    string `json:"team_id" validate:"required"`
	PoolID    string `json:"pool_id" validate:"omitempty,max=64"`
}

type adminPickOverrideRequest struct {
	submitPickRequest
	// SkipContestState also lets the pick through after lock time.
	SkipContestState bool `json:"skip_contest_state"`
}

type pickDTO struct {
	ID            string    `json:"id"`
	PickerID      string    `json:"picker_id"`
	SeasonID      string    `json:"season_id"`
	ContestID     string    `json:"contest_id"`
	Week          int       `json:"week"`
	PoolID        string    `json:"pool_id,omitempty"`
	TeamID        string    `json:"team_id"`
	Outcome       string    `json:"outcome,omitempty"`
	Points        float64   `json:"points"`
	TiebreakValue int       `json:"tiebreak_value"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type pickDecisionDTO struct {
	Allowed          bool     `json:"allowed"`
	Reason           string   `json:"reason,omitempty"`
	SupersededPickID string   `json:"superseded_pick_id,omitempty"`
	Pick             *pickDTO `json:"pick,omitempty"`
}

func pickToDTO(p pick.Pick) pickDTO {
	return pickDTO{
		ID:            p.ID,
		PickerID:      p.PickerID,
		SeasonID:      p.SeasonID,
		ContestID:     p.ContestID,
		Week:          p.Week,
		PoolID:        p.Scope.PoolID,
		TeamID:        p.TeamID,
		Outcome:       string(p.Outcome),
		Points:        p.Points,
		TiebreakValue: p.TiebreakValue,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (h *Handler) SubmitPick(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubmitPick")
	defer span.End()

	var req submitPickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	submitted, decision, err := h.eligibilityService.SubmitPick(ctx, usecase.PickRequest{
		PickerID:  req.PickerID,
		SeasonID:  req.SeasonID,
		ContestID: req.ContestID,
		TeamID:    req.TeamID,
		Scope:     pick.PerPool(req.PoolID),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "submit pick failed", "picker_id", req.PickerID, "contest_id", req.ContestID, "error", err)
		writeError(ctx, w, err)
		return
	}
	if !decision.Allowed {
		writeSuccess(ctx, w, http.StatusUnprocessableEntity, pickDecisionDTO{
			Allowed: false,
			Reason:  decision.Reason,
		})
		return
	}

	dto := pickToDTO(submitted)
	writeSuccess(ctx, w, http.StatusCreated, pickDecisionDTO{
		Allowed:          true,
		SupersededPickID: decision.SupersededPickID,
		Pick:             &dto,
	})
}

// AdminOverridePick submits a pick with the history rules skipped, and
// optionally the contest-state check as well.
func (h *Handler) AdminOverridePick(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AdminOverridePick")
	defer span.End()

	var req adminPickOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	submitted, decision, err := h.eligibilityService.SubmitPick(ctx, usecase.PickRequest{
		PickerID:          req.PickerID,
		SeasonID:          req.SeasonID,
		ContestID:         req.ContestID,
		TeamID:            req.TeamID,
		Scope:             pick.PerPool(req.PoolID),
		AdminOverride:     true,
		ForceContestState: req.SkipContestState,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "admin pick override failed", "picker_id", req.PickerID, "contest_id", req.ContestID, "error", err)
		writeError(ctx, w, err)
		return
	}
	if !decision.Allowed {
		writeSuccess(ctx, w, http.StatusUnprocessableEntity, pickDecisionDTO{
			Allowed: false,
			Reason:  decision.Reason,
		})
		return
	}

	dto := pickToDTO(submitted)
	writeSuccess(ctx, w, http.StatusCreated, pickDecisionDTO{
		Allowed:          true,
		SupersededPickID: decision.SupersededPickID,
		Pick:             &dto,
	})
}

func (h *Handler) DeletePick(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeletePick")
	defer span.End()

	pickID := r.PathValue("pickID")
	requesterID := strings.TrimSpace(r.URL.Query().Get("picker_id"))
	if requesterID == "" {
		writeError(ctx, w, fmt.Errorf("%w: picker_id query parameter is required", usecase.ErrInvalidInput))
		return
	}

	if err := h.eligibilityService.DeletePick(ctx, pickID, requesterID, false); err != nil {
		h.logger.WarnContext(ctx, "delete pick failed", "pick_id", pickID, "picker_id", requesterID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AdminDeletePick removes any picker's pick.
func (h *Handler) AdminDeletePick(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AdminDeletePick")
	defer span.End()

	pickID := r.PathValue("pickID")
	if err := h.eligibilityService.DeletePick(ctx, pickID, "", true); err != nil {
		h.logger.WarnContext(ctx, "admin delete pick failed", "pick_id", pickID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}
