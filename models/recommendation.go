package models

import "time"

// Recommendation status values.
const (
	RecommendationActive    = "active"
	RecommendationResolved  = "resolved"
	RecommendationDismissed = "dismissed"
)

// Recommendation is a stored improvement suggestion for a repository.
// Created by the generator, marked resolved when its underlying issue
// disappears from a successful scan, and removed by the deduplicator when
// a newer equivalent record exists.
type Recommendation struct {
	ID           int64         `json:"id"            db:"id"`
	RepositoryID string        `json:"repository_id" db:"repository_id"`
	Title        string        `json:"title"         db:"title"`
	Description  string        `json:"description"   db:"description"`
	Category     string        `json:"category"      db:"category"`
	Priority     SeverityLevel `json:"priority"      db:"priority"`
	Status       string        `json:"status"        db:"status"`
	// IssueSignature ties the recommendation back to the scan issue that
	// produced it, so later scans can detect resolution.
	IssueSignature string    `json:"issue_signature" db:"issue_signature"`
	TagsJSON       string    `json:"-"               db:"tags"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
}

// FixedIssuesReport classifies previously known issues that a successful
// scan no longer observes, grouped the way the scanner groups them.
type FixedIssuesReport struct {
	FixedSecurityIssues    []Issue `json:"fixed_security_issues"`
	FixedTypeIssues        []Issue `json:"fixed_type_issues"`
	FixedPerformanceIssues []Issue `json:"fixed_performance_issues"`
}

// Total counts fixed issues across all categories.
func (f *FixedIssuesReport) Total() int {
	return len(f.FixedSecurityIssues) + len(f.FixedTypeIssues) + len(f.FixedPerformanceIssues)
}

// Signatures lists the issue signatures of every fixed issue, for
// callers that resolve the matching recommendations.
func (f *FixedIssuesReport) Signatures() []string {
	sigs := make([]string, 0, f.Total())
	for _, group := range [][]Issue{f.FixedSecurityIssues, f.FixedTypeIssues, f.FixedPerformanceIssues} {
		for _, issue := range group {
			sigs = append(sigs, issue.Signature)
		}
	}
	return sigs
}

// RepoScanOutcome is the per-repository entry in a batch report.
type RepoScanOutcome struct {
	Repository      string `json:"repository"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	Patterns        int    `json:"patterns"`
	Issues          int    `json:"issues"`
	Recommendations int    `json:"recommendations"`
	FixedIssues     int    `json:"fixed_issues"`
}

// BatchError is a quick-triage entry for a failed batch member.
type BatchError struct {
	Repository string `json:"repository"`
	Error      string `json:"error"`
}

// BatchReport aggregates a full scan-all run. Sums cover successful scans
// only; failures are listed but never abort the batch.
type BatchReport struct {
	TotalRepositories    int               `json:"total_repositories"`
	Successful           int               `json:"successful"`
	Failed               int               `json:"failed"`
	TotalPatterns        int               `json:"total_patterns"`
	TotalIssues          int               `json:"total_issues"`
	TotalRecommendations int               `json:"total_recommendations"`
	Results              []RepoScanOutcome `json:"results"`
	Errors               []BatchError      `json:"errors"`
	StartedAt            time.Time         `json:"started_at"`
	CompletedAt          time.Time         `json:"completed_at"`
}
