package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/usecase"
)

type tickReportDTO struct {
	JobName         string `json:"job_name"`
	ContestsChecked int    `json:"contests_checked"`
	ContestsUpdated int    `json:"contests_updated"`
	NewlyFinal      int    `json:"newly_final"`
	PicksRescored   int    `json:"picks_rescored"`
	Skipped         bool   `json:"skipped"`
}

type jobStatsDTO struct {
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt   *time.Time `json:"last_success_at,omitempty"`
	TotalRuns       int        `json:"total_runs"`
	SuccessfulRuns  int        `json:"successful_runs"`
	FailedRuns      int        `json:"failed_runs"`
	LastError       string     `json:"last_error,omitempty"`
	LastErrorAt     *time.Time `json:"last_error_at,omitempty"`
	ContestsUpdated int        `json:"contests_updated"`
}

type jobStatusDTO struct {
	Name      string      `json:"name"`
	Paused    bool        `json:"paused"`
	NextRunAt *time.Time  `json:"next_run_at,omitempty"`
	Stats     jobStatsDTO `json:"stats"`
}

type orchestratorStatusDTO struct {
	SchedulerRunning bool           `json:"scheduler_running"`
	Jobs             []jobStatusDTO `json:"jobs"`
}

type resyncRequest struct {
	SeasonID   string `json:"season_id" validate:"required"`
	Weeks      []int  `json:"weeks" validate:"omitempty,dive,min=1"`
	MaxWorkers int    `json:"max_workers" validate:"omitempty,min=1,max=32"`
	DryRun     bool   `json:"dry_run"`
}

func tickReportToDTO(report usecase.TickReport) tickReportDTO {
	return tickReportDTO{
		JobName:         report.JobName,
		ContestsChecked: report.ContestsChecked,
		ContestsUpdated: report.ContestsUpdated,
		NewlyFinal:      report.NewlyFinal,
		PicksRescored:   report.PicksRescored,
		Skipped:         report.Skipped,
	}
}

func (h *Handler) JobsStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.JobsStatus")
	defer span.End()

	status, err := h.jobOrchestrator.Status(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "jobs status failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	jobs := make([]jobStatusDTO, 0, len(status.Jobs))
	for _, job := range status.Jobs {
		jobs = append(jobs, jobStatusDTO{
			Name:      job.Name,
			Paused:    job.Paused,
			NextRunAt: job.NextRunAt,
			Stats: jobStatsDTO{
				LastRunAt:       job.Stats.LastRunAt,
				LastSuccessAt:   job.Stats.LastSuccessAt,
				TotalRuns:       job.Stats.TotalRuns,
				SuccessfulRuns:  job.Stats.SuccessfulRuns,
				FailedRuns:      job.Stats.FailedRuns,
				LastError:       job.Stats.LastError,
				LastErrorAt:     job.Stats.LastErrorAt,
				ContestsUpdated: job.Stats.ContestsUpdated,
			},
		})
	}

	writeSuccess(ctx, w, http.StatusOK, orchestratorStatusDTO{
		SchedulerRunning: status.SchedulerRunning,
		Jobs:             jobs,
	})
}

func (h *Handler) ForceJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ForceJob")
	defer span.End()

	jobName := r.PathValue("jobName")
	report, err := h.jobOrchestrator.ForceSync(ctx, jobName)
	if err != nil {
		h.logger.WarnContext(ctx, "force job failed", "job_name", jobName, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, tickReportToDTO(report))
}

func (h *Handler) PauseJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.PauseJob")
	defer span.End()

	jobName := r.PathValue("jobName")
	if err := h.jobOrchestrator.PauseJob(ctx, jobName); err != nil {
		h.logger.WarnContext(ctx, "pause job failed", "job_name", jobName, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "paused", "job": jobName})
}

func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ResumeJob")
	defer span.End()

	jobName := r.PathValue("jobName")
	if err := h.jobOrchestrator.ResumeJob(ctx, jobName); err != nil {
		h.logger.WarnContext(ctx, "resume job failed", "job_name", jobName, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "resumed", "job": jobName})
}

func (h *Handler) RunResync(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunResync")
	defer span.End()

	if h.resyncService == nil {
		writeError(ctx, w, fmt.Errorf("%w: resync service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	var req resyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.resyncService.Resync(ctx, usecase.ResyncInput{
		SeasonID:   req.SeasonID,
		Weeks:      req.Weeks,
		MaxWorkers: req.MaxWorkers,
		DryRun:     req.DryRun,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "resync failed", "season_id", req.SeasonID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

// RescoreContest re-pulls one contest's result and rescores its picks.
func (h *Handler) RescoreContest(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RescoreContest")
	defer span.End()

	contestID := r.PathValue("contestID")
	rescored, err := h.syncService.ForceRescoreContest(ctx, contestID)
	if err != nil {
		h.logger.WarnContext(ctx, "rescore contest failed", "contest_id", contestID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{
		"contest_id":     contestID,
		"picks_rescored": rescored,
	})
}
