package scheduler

import (
	"testing"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/syncjob"
	"github.com/pickemlabs/pickem-engine/internal/infrastructure/repository/memory"
	"github.com/pickemlabs/pickem-engine/internal/platform/cache"
	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
	"github.com/pickemlabs/pickem-engine/internal/usecase"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	seasonRepo := memory.NewSeasonRepository()
	contestRepo := memory.NewContestRepository()
	pickRepo := memory.NewPickRepository()
	snapshotRepo := memory.NewSnapshotRepository()

	standingsSvc := usecase.NewStandingsService(seasonRepo, contestRepo, pickRepo, snapshotRepo, cache.NewStore(time.Minute))
	snapshotSvc := usecase.NewSnapshotService(seasonRepo, contestRepo, pickRepo, snapshotRepo, memory.NewAwardRepository(), standingsSvc, nil)
	syncSvc := usecase.NewSyncService(
		seasonRepo, contestRepo, pickRepo, memory.NewSyncJobRepository(),
		nil, nil, standingsSvc, snapshotSvc, nil,
		usecase.SyncConfig{}, logging.NewNop(),
	)

	// Hour-scale intervals keep the timers from firing inside the test.
	sched, err := NewScheduler(Config{
		Timezone:       "UTC",
		LiveInterval:   time.Hour,
		StatusInterval: time.Hour,
		DailyAtHour:    2,
		WeeklyWeekday:  time.Tuesday,
		WeeklyAtHour:   6,
		JobTimeout:     time.Minute,
	}, syncSvc, logging.NewNop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return sched
}

func TestScheduler_StartRegistersAllJobFamilies(t *testing.T) {
	sched := newTestScheduler(t)
	if err := sched.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}()

	if !sched.Running() {
		t.Fatal("scheduler must report running after Start")
	}

	jobs := sched.Jobs()
	if len(jobs) != len(syncjob.KnownJobs) {
		t.Fatalf("jobs = %d, want %d", len(jobs), len(syncjob.KnownJobs))
	}
	for i, name := range syncjob.KnownJobs {
		if jobs[i].Name != name {
			t.Fatalf("job[%d] = %s, want %s", i, jobs[i].Name, name)
		}
		if jobs[i].NextRunAt == nil {
			t.Fatalf("job %s has no next run", name)
		}
		if jobs[i].Paused {
			t.Fatalf("job %s must start unpaused", name)
		}
	}
}

func TestScheduler_PauseAndResume(t *testing.T) {
	sched := newTestScheduler(t)
	if err := sched.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = sched.Stop() }()

	if err := sched.PauseJob(syncjob.JobLive); err != nil {
		t.Fatalf("PauseJob: %v", err)
	}
	for _, job := range sched.Jobs() {
		if job.Name == syncjob.JobLive && !job.Paused {
			t.Fatal("live job must report paused")
		}
		if job.Name == syncjob.JobStatus && job.Paused {
			t.Fatal("pausing one job must not pause another")
		}
	}

	if err := sched.ResumeJob(syncjob.JobLive); err != nil {
		t.Fatalf("ResumeJob: %v", err)
	}
	for _, job := range sched.Jobs() {
		if job.Name == syncjob.JobLive && job.Paused {
			t.Fatal("live job must report resumed")
		}
	}
}

func TestScheduler_PauseUnknownJob(t *testing.T) {
	sched := newTestScheduler(t)
	if err := sched.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = sched.Stop() }()

	if err := sched.PauseJob("hourly"); err == nil {
		t.Fatal("expected error for unscheduled job")
	}
}

func TestScheduler_StopClearsRunning(t *testing.T) {
	sched := newTestScheduler(t)
	if err := sched.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sched.Running() {
		t.Fatal("scheduler must report stopped after Stop")
	}
}
