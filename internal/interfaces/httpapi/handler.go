package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/pickemlabs/pickem-engine/internal/broadcast"
	"github.com/pickemlabs/pickem-engine/internal/domain/team"
	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
	"github.com/pickemlabs/pickem-engine/internal/usecase"
)

type Handler struct {
	eligibilityService *usecase.EligibilityService
	standingsService   *usecase.StandingsService
	snapshotService    *usecase.SnapshotService
	jobOrchestrator    *usecase.JobOrchestratorService
	resyncService      *usecase.ResyncService
	syncService        *usecase.SyncService
	teamRepo           team.Repository
	hub                *broadcast.Hub
	logger             *logging.Logger
	validator          *validator.Validate
}

func NewHandler(
	eligibilityService *usecase.EligibilityService,
	standingsService *usecase.StandingsService,
	snapshotService *usecase.SnapshotService,
	jobOrchestrator *usecase.JobOrchestratorService,
	resyncService *usecase.ResyncService,
	syncService *usecase.SyncService,
	teamRepo team.Repository,
	hub *broadcast.Hub,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		eligibilityService: eligibilityService,
		standingsService:   standingsService,
		snapshotService:    snapshotService,
		jobOrchestrator:    jobOrchestrator,
		resyncService:      resyncService,
		syncService:        syncService,
		teamRepo:           teamRepo,
		hub:                hub,
		logger:             logger,
		validator:          validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

// decodeJSON decodes a request body into target, rejecting unknown fields.
// An empty body leaves target at its zero value.
func decodeJSON(r *http.Request, target any) error {
	decoder := jsoniter.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}
