package provenance

import "time"

// Status represents the lifecycle of a pipeline run record.
type Status string

const (
	// StatusRunning marks a run that has started and not yet concluded.
	StatusRunning Status = "running"
	// StatusCompleted marks a run that produced a decision.
	StatusCompleted Status = "completed"
	// StatusReview marks a run stopped by a data or configuration problem a
	// human must fix before retrying.
	StatusReview Status = "review"
	// StatusFailed marks a run stopped by an infrastructure fault.
	StatusFailed Status = "failed"
)

var allStatuses = []Status{StatusRunning, StatusCompleted, StatusReview, StatusFailed}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusReview || s == StatusFailed
}

// Run is one pipeline run persisted in SQLite.
type Run struct {
	ID              int64
	RunID           string
	Model           string
	Status          Status
	Seed            int64
	SnapshotDigest  string
	SampleCount     int
	TrainCount      int
	ValCount        int
	TestCount       int
	NewMetricsJSON  string
	BaselineJSON    string
	ShouldPromote   bool
	Bootstrap       bool
	Justification   string
	PromotedVersion string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
