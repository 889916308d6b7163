package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerPublicDomainRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/picks", handler.SubmitPick)
	mux.HandleFunc("DELETE /v1/picks/{pickID}", handler.DeletePick)
	mux.HandleFunc("GET /v1/teams", handler.ListTeams)
	mux.HandleFunc("GET /v1/standings", handler.GetLeaderboard)
	mux.HandleFunc("GET /v1/standings/stats", handler.GetSeasonStats)
	mux.HandleFunc("GET /v1/snapshots", handler.ListSnapshots)
	mux.HandleFunc("GET /v1/awards", handler.ListAwards)
	mux.HandleFunc("GET /v1/events", handler.StreamEvents)
}

func registerAdminRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/admin/snapshots", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.CreateSnapshots)))
	mux.Handle("POST /v1/admin/final-gate", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.GrantFinalGate)))
	mux.Handle("POST /v1/admin/finalize", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.FinalizeSeason)))
	mux.Handle("POST /v1/admin/picks", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.AdminOverridePick)))
	mux.Handle("DELETE /v1/admin/picks/{pickID}", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.AdminDeletePick)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("GET /internal/jobs/status", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.JobsStatus)))
	mux.Handle("POST /internal/jobs/{jobName}/force", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.ForceJob)))
	mux.Handle("POST /internal/jobs/{jobName}/pause", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.PauseJob)))
	mux.Handle("POST /internal/jobs/{jobName}/resume", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.ResumeJob)))
	mux.Handle("POST /internal/resync", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunResync)))
	mux.Handle("POST /internal/contests/{contestID}/rescore", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RescoreContest)))
}
