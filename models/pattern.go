package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Issue categories produced by the scanner.
const (
	IssueCategorySecurity    = "security"
	IssueCategoryTypeSafety  = "type_safety"
	IssueCategoryPerformance = "performance"
)

// Issue is a single problem observed during a scan. Issues are not
// persisted as rows; identity across successive scans is carried by
// Signature and matched against the active recommendations for the repo.
type Issue struct {
	Signature   string        `json:"signature"`
	Category    string        `json:"category"`
	Rule        string        `json:"rule"`
	Description string        `json:"description"`
	FilePath    string        `json:"file_path"`
	Line        int           `json:"line"`
	Severity    SeverityLevel `json:"severity"`
}

// IssueSignature builds the structural fingerprint identifying an issue
// across scans: file path + rule + description.
func IssueSignature(filePath, rule, description string) string {
	return fmt.Sprintf("%s|%s|%s", filePath, rule, description)
}

// Pattern is a structural code pattern extracted from a repository.
type Pattern struct {
	ID           string    `json:"id"            db:"id"`
	RepositoryID string    `json:"repository_id" db:"repository_id"`
	Name         string    `json:"name"          db:"name"`
	Category     string    `json:"category"      db:"category"`
	FilePath     string    `json:"file_path"     db:"file_path"`
	Description  string    `json:"description"   db:"description"`
	Confidence   float64   `json:"confidence"    db:"confidence"`
	DetectedAt   time.Time `json:"detected_at"   db:"detected_at"`
}

// PatternID derives a stable identifier so repeated scans upsert rather
// than duplicate.
func PatternID(repositoryID, name, filePath string) string {
	sum := sha256.Sum256([]byte(repositoryID + "\x00" + name + "\x00" + filePath))
	return hex.EncodeToString(sum[:16])
}

// ScanResult is the transient outcome of one scan invocation. It is
// consumed by the reconciler and recommendation generator, then discarded.
type ScanResult struct {
	SecurityIssues    []Issue   `json:"security_issues"`
	TypeSafetyIssues  []Issue   `json:"type_safety_issues"`
	PerformanceIssues []Issue   `json:"performance_issues"`
	Patterns          []Pattern `json:"patterns"`
	ScanSuccessful    bool      `json:"scan_successful"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}

// IssuesByCategory returns the issue list for the given category.
func (r *ScanResult) IssuesByCategory(category string) []Issue {
	switch category {
	case IssueCategorySecurity:
		return r.SecurityIssues
	case IssueCategoryTypeSafety:
		return r.TypeSafetyIssues
	case IssueCategoryPerformance:
		return r.PerformanceIssues
	default:
		return nil
	}
}

// TotalIssues counts issues across all categories.
func (r *ScanResult) TotalIssues() int {
	return len(r.SecurityIssues) + len(r.TypeSafetyIssues) + len(r.PerformanceIssues)
}
