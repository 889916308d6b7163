package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/syncjob"
	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
)

// JobInfo is one scheduled job family's live state.
type JobInfo struct {
	Name      string     `json:"name"`
	Paused    bool       `json:"paused"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// TickScheduler is the scheduling backend the orchestrator drives. It is
// an explicit dependency so the operational surface is testable without a
// running timer loop.
type TickScheduler interface {
	Running() bool
	Jobs() []JobInfo
	PauseJob(name string) error
	ResumeJob(name string) error
}

// JobStatusReport combines a job's schedule state with its persisted
// run statistics.
type JobStatusReport struct {
	JobInfo
	Stats syncjob.Stats `json:"stats"`
}

type OrchestratorStatus struct {
	SchedulerRunning bool              `json:"scheduler_running"`
	Jobs             []JobStatusReport `json:"jobs"`
}

// JobOrchestratorService is the admin-facing control plane over the sync
// job families: status, force-sync, pause and resume.
type JobOrchestratorService struct {
	scheduler TickScheduler
	jobRepo   syncjob.Repository
	sync      *SyncService
	logger    *logging.Logger
}

func NewJobOrchestratorService(
	scheduler TickScheduler,
	jobRepo syncjob.Repository,
	syncService *SyncService,
	logger *logging.Logger,
) *JobOrchestratorService {
	if logger == nil {
		logger = logging.Default()
	}
	return &JobOrchestratorService{
		scheduler: scheduler,
		jobRepo:   jobRepo,
		sync:      syncService,
		logger:    logger,
	}
}

func (s *JobOrchestratorService) Status(ctx context.Context) (OrchestratorStatus, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobOrchestratorService.Status")
	defer span.End()

	statsRows, err := s.jobRepo.ListStats(ctx)
	if err != nil {
		return OrchestratorStatus{}, fmt.Errorf("list job stats: %w", err)
	}
	statsByName := make(map[string]syncjob.Stats, len(statsRows))
	for _, row := range statsRows {
		statsByName[row.JobName] = row
	}

	status := OrchestratorStatus{}
	seen := make(map[string]struct{})
	if s.scheduler != nil {
		status.SchedulerRunning = s.scheduler.Running()
		for _, info := range s.scheduler.Jobs() {
			report := JobStatusReport{JobInfo: info}
			if stats, ok := statsByName[info.Name]; ok {
				report.Stats = stats
			} else {
				report.Stats = syncjob.Stats{JobName: info.Name}
			}
			status.Jobs = append(status.Jobs, report)
			seen[info.Name] = struct{}{}
		}
	}

	// Stats can exist for jobs the scheduler does not currently carry,
	// e.g. after a config change; still report them.
	for _, row := range statsRows {
		if _, ok := seen[row.JobName]; ok {
			continue
		}
		status.Jobs = append(status.Jobs, JobStatusReport{
			JobInfo: JobInfo{Name: row.JobName},
			Stats:   row,
		})
	}

	sort.SliceStable(status.Jobs, func(i, j int) bool {
		return status.Jobs[i].Name < status.Jobs[j].Name
	})

	return status, nil
}

func (s *JobOrchestratorService) ForceSync(ctx context.Context, jobName string) (TickReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobOrchestratorService.ForceSync")
	defer span.End()

	if !syncjob.IsKnownJob(jobName) {
		return TickReport{}, fmt.Errorf("%w: unknown job %q", ErrInvalidInput, jobName)
	}

	s.logger.InfoContext(ctx, "forcing out-of-cycle sync", "job", jobName)
	return s.sync.ForceSync(ctx, jobName)
}

func (s *JobOrchestratorService) PauseJob(ctx context.Context, jobName string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobOrchestratorService.PauseJob")
	defer span.End()

	if !syncjob.IsKnownJob(jobName) {
		return fmt.Errorf("%w: unknown job %q", ErrInvalidInput, jobName)
	}
	if s.scheduler == nil {
		return fmt.Errorf("%w: scheduler is not configured", ErrDependencyUnavailable)
	}
	if err := s.scheduler.PauseJob(jobName); err != nil {
		return fmt.Errorf("pause job %s: %w", jobName, err)
	}
	s.logger.InfoContext(ctx, "paused sync job", "job", jobName)
	return nil
}

func (s *JobOrchestratorService) ResumeJob(ctx context.Context, jobName string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobOrchestratorService.ResumeJob")
	defer span.End()

	if !syncjob.IsKnownJob(jobName) {
		return fmt.Errorf("%w: unknown job %q", ErrInvalidInput, jobName)
	}
	if s.scheduler == nil {
		return fmt.Errorf("%w: scheduler is not configured", ErrDependencyUnavailable)
	}
	if err := s.scheduler.ResumeJob(jobName); err != nil {
		return fmt.Errorf("resume job %s: %w", jobName, err)
	}
	s.logger.InfoContext(ctx, "resumed sync job", "job", jobName)
	return nil
}
