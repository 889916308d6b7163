// Package scheduler drives the sync job families on gocron timers. Each
// job runs in singleton mode: a tick that fires while the previous one is
// still running is rescheduled, never stacked.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/pickemlabs/pickem-engine/internal/domain/syncjob"
	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
	"github.com/pickemlabs/pickem-engine/internal/usecase"
)

type Config struct {
	Timezone       string
	LiveInterval   time.Duration
	StatusInterval time.Duration
	DailyAtHour    int
	DailyAtMinute  int
	WeeklyWeekday  time.Weekday
	WeeklyAtHour   int
	JobTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timezone:       "America/New_York",
		LiveInterval:   90 * time.Second,
		StatusInterval: 5 * time.Minute,
		DailyAtHour:    2,
		WeeklyWeekday:  time.Tuesday,
		WeeklyAtHour:   6,
		JobTimeout:     10 * time.Minute,
	}
}

type Scheduler struct {
	s      gocron.Scheduler
	sync   *usecase.SyncService
	cfg    Config
	logger *logging.Logger

	mu      sync.Mutex
	jobs    map[string]gocron.Job
	paused  map[string]bool
	running bool
}

func NewScheduler(cfg Config, syncService *usecase.SyncService, logger *logging.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.LiveInterval <= 0 {
		cfg.LiveInterval = DefaultConfig().LiveInterval
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultConfig().StatusInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultConfig().JobTimeout
	}

	location := time.UTC
	if cfg.Timezone != "" {
		loaded, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
		location = loaded
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(location))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Scheduler{
		s:      s,
		sync:   syncService,
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]gocron.Job),
		paused: make(map[string]bool),
	}, nil
}

func (s *Scheduler) Start() error {
	type jobSpec struct {
		name       string
		definition gocron.JobDefinition
		run        func(context.Context) (usecase.TickReport, error)
	}

	specs := []jobSpec{
		{
			name:       syncjob.JobLive,
			definition: gocron.DurationJob(s.cfg.LiveInterval),
			run:        s.sync.RunLiveTick,
		},
		{
			name:       syncjob.JobStatus,
			definition: gocron.DurationJob(s.cfg.StatusInterval),
			run:        s.sync.RunStatusTick,
		},
		{
			name: syncjob.JobDaily,
			definition: gocron.DailyJob(1, gocron.NewAtTimes(
				gocron.NewAtTime(uint(s.cfg.DailyAtHour), uint(s.cfg.DailyAtMinute), 0),
			)),
			run: s.sync.RunDailyTick,
		},
		{
			name: syncjob.JobWeekly,
			definition: gocron.WeeklyJob(1, gocron.NewWeekdays(s.cfg.WeeklyWeekday), gocron.NewAtTimes(
				gocron.NewAtTime(uint(s.cfg.WeeklyAtHour), 0, 0),
			)),
			run: s.sync.RunWeeklyTick,
		},
	}

	for _, spec := range specs {
		spec := spec
		job, err := s.s.NewJob(
			spec.definition,
			gocron.NewTask(func() { s.runJob(spec.name, spec.run) }),
			gocron.WithName(spec.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("create %s job: %w", spec.name, err)
		}
		s.mu.Lock()
		s.jobs[spec.name] = job
		s.mu.Unlock()
	}

	s.s.Start()
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("sync scheduler started",
		"live_interval", s.cfg.LiveInterval.String(),
		"status_interval", s.cfg.StatusInterval.String(),
	)
	return nil
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return s.s.Shutdown()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Jobs() []usecase.JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]usecase.JobInfo, 0, len(s.jobs))
	for _, name := range syncjob.KnownJobs {
		job, ok := s.jobs[name]
		if !ok {
			continue
		}
		info := usecase.JobInfo{Name: name, Paused: s.paused[name]}
		if next, err := job.NextRun(); err == nil && !next.IsZero() {
			info.NextRunAt = &next
		}
		infos = append(infos, info)
	}
	return infos
}

// PauseJob keeps the timer firing but makes the task a no-op. The
// resume path needs no reschedule that way.
func (s *Scheduler) PauseJob(name string) error {
	return s.setPaused(name, true)
}

func (s *Scheduler) ResumeJob(name string) error {
	return s.setPaused(name, false)
}

func (s *Scheduler) setPaused(name string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; !ok {
		return fmt.Errorf("job %q is not scheduled", name)
	}
	s.paused[name] = paused
	return nil
}

func (s *Scheduler) isPaused(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused[name]
}

func (s *Scheduler) runJob(name string, run func(context.Context) (usecase.TickReport, error)) {
	if s.isPaused(name) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	report, err := run(ctx)
	if err != nil {
		s.logger.Error("sync job failed", "job", name, "error", err)
		return
	}
	if report.Skipped {
		s.logger.Debug("sync job skipped: previous tick still running", "job", name)
		return
	}
	s.logger.Debug("sync job finished",
		"job", name,
		"contests_checked", report.ContestsChecked,
		"contests_updated", report.ContestsUpdated,
		"newly_final", report.NewlyFinal,
		"picks_rescored", report.PicksRescored,
	)
}
