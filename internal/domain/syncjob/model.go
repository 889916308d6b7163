package syncjob

import "time"

const (
	JobLive   = "live"
	JobStatus = "status"
	JobDaily  = "daily"
	JobWeekly = "weekly"
)

// KnownJobs lists every job family the synchronizer schedules.
var KnownJobs = []string{JobLive, JobStatus, JobDaily, JobWeekly}

func IsKnownJob(name string) bool {
	for _, job := range KnownJobs {
		if job == name {
			return true
		}
	}
	return false
}

// Stats is the per-job operational record surfaced to admin tooling.
type Stats struct {
	JobName         string
	LastRunAt       *time.Time
	LastSuccessAt   *time.Time
	TotalRuns       int
	SuccessfulRuns  int
	FailedRuns      int
	LastError       string
	LastErrorAt     *time.Time
	ContestsUpdated int
}

type DispatchStatus string

const (
	StatusCompleted DispatchStatus = "completed"
	StatusFailed    DispatchStatus = "failed"
	StatusSkipped   DispatchStatus = "skipped"
)

// DispatchEvent is one tick's audit record.
type DispatchEvent struct {
	DispatchID      string
	JobName         string
	SeasonID        string
	Status          DispatchStatus
	ContestsChecked int
	ContestsUpdated int
	NewlyFinal      int
	ErrorMessage    string
	OccurredAt      time.Time
	TraceID         string
	SpanID          string
}
