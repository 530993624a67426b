package models

import "time"

// Repository analysis status values, mirroring the job phases.
const (
	AnalysisStatusPending   = "pending"
	AnalysisStatusAnalyzing = "analyzing"
	AnalysisStatusCompleted = "completed"
	AnalysisStatusFailed    = "failed"
)

// Repository is a tracked source-code repository from any provider.
// The orchestrator owns analysis_status, tech_stack, framework,
// patterns_count and last_analyzed; identity and metadata come from the
// provider that discovered the repo.
type Repository struct {
	ID            string     `json:"id"             db:"id"`
	Provider      string     `json:"provider"       db:"provider"` // github | gitlab
	Owner         string     `json:"owner"          db:"owner"`
	Name          string     `json:"name"           db:"name"`
	FullName      string     `json:"full_name"      db:"full_name"` // owner/name
	CloneURL      string     `json:"clone_url"      db:"clone_url"`
	DefaultBranch string     `json:"default_branch" db:"default_branch"`
	Language      string     `json:"language"       db:"language"`
	// TechStackJSON is a JSON array of detected technologies.
	TechStackJSON  string     `json:"-"               db:"tech_stack"`
	Framework      string     `json:"framework"       db:"framework"`
	AnalysisStatus string     `json:"analysis_status" db:"analysis_status"`
	PatternsCount  int        `json:"patterns_count"  db:"patterns_count"`
	LastAnalyzed   *time.Time `json:"last_analyzed,omitempty" db:"last_analyzed"`
	CreatedAt      time.Time  `json:"created_at"      db:"created_at"`
}

// RepoRef identifies a repository to the batch coordinator. Either ID (a
// known repository row) or FullName ("owner/name") must be set.
type RepoRef struct {
	ID       string `json:"id,omitempty"`
	FullName string `json:"full_name"`
	CloneURL string `json:"clone_url,omitempty"`
	Provider string `json:"provider,omitempty"`
}
