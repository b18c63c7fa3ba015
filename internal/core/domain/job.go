package domain

import "time"

type JobState string

const (
	JobPending JobState = "pending"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// IngestJob is the queryable record of one background ingestion run. The
// request payload is stored with the job so a detached worker can execute it
// from the job id alone.
type IngestJob struct {
	ID         string        `json:"id"`
	State      JobState      `json:"state"`
	Request    IngestRequest `json:"request"`
	Files      int           `json:"files"`
	Chunks     int           `json:"chunks"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}
