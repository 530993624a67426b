package models

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Job status values. The lifecycle is queued → running → completed|failed;
// completed and failed are terminal.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job types.
const (
	JobTypeFullScan    = "full_scan"
	JobTypeIncremental = "incremental"
)

// IsTerminalJobStatus reports whether status is completed or failed.
func IsTerminalJobStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// AnalysisJob tracks one analysis run for one repository.
type AnalysisJob struct {
	ID           string     `json:"id"              db:"id"`
	RepositoryID string     `json:"repository_id"   db:"repository_id"`
	JobType      string     `json:"job_type"        db:"job_type"` // full_scan | incremental
	Status       string     `json:"status"          db:"status"`
	Progress     float64    `json:"progress"        db:"progress"`
	StartedAt    *time.Time `json:"started_at,omitempty"   db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	// ResultsJSON is the serialised ResultsSummary, set only on completion.
	ResultsJSON string    `json:"-"                       db:"results_json"`
	ErrorMsg    string    `json:"error_msg,omitempty"     db:"error_msg"`
	CreatedAt   time.Time `json:"created_at"              db:"created_at"`
}

// ResultsSummary is the structured result attached to a completed job.
type ResultsSummary struct {
	PatternsExtracted int      `json:"patterns_extracted"`
	TechStackDetected []string `json:"tech_stack_detected"`
	Confidence        float64  `json:"confidence"`
}

// Results parses the stored results summary. Returns nil while the job has
// not completed (or if the stored JSON is unreadable).
func (j *AnalysisJob) Results() *ResultsSummary {
	if j.ResultsJSON == "" {
		return nil
	}
	var rs ResultsSummary
	if err := json.Unmarshal([]byte(j.ResultsJSON), &rs); err != nil {
		return nil
	}
	return &rs
}

// NewJobID generates an opaque 16-hex-character job identifier.
func NewJobID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
