package domain

import "time"

// Run statuses written to the job report.
const (
	StatusSuccess        = "SUCCESS"
	StatusPartialFailure = "PARTIAL_FAILURE"
	StatusNoop           = "NOOP"
	StatusDryRun         = "DRY_RUN"
	StatusFailed         = "FAILED"
)

// Failure is one dataset that could not be processed.
type Failure struct {
	DatasetID string    `json:"dataset_id"`
	Kind      ErrorKind `json:"kind"`
	Reason    string    `json:"reason"`
}

// JobReport summarizes a single run.
type JobReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Theme      string    `json:"theme"`
	Listed     int       `json:"listed"`
	Selected   []string  `json:"selected"`
	Succeeded  []string  `json:"succeeded"`
	Failed     []Failure `json:"failed"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// HasFailures reports whether any dataset failed.
func (r *JobReport) HasFailures() bool {
	return len(r.Failed) > 0
}

// Finalize stamps the finish time and derives the status.
func (r *JobReport) Finalize(finishedAt time.Time, dryRun bool) {
	r.FinishedAt = finishedAt
	switch {
	case dryRun:
		r.Status = StatusDryRun
	case len(r.Failed) > 0:
		r.Status = StatusPartialFailure
	case len(r.Selected) == 0:
		r.Status = StatusNoop
	default:
		r.Status = StatusSuccess
	}
}

// Fail marks a run that stopped before or after its workers because of a
// fatal error.
func (r *JobReport) Fail(finishedAt time.Time, err error) {
	r.FinishedAt = finishedAt
	r.Status = StatusFailed
	if err != nil {
		r.Error = err.Error()
	}
}
