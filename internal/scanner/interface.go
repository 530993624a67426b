// Package scanner extracts patterns and issues from a repository working
// tree. The pipeline treats it as an opaque collaborator: a scanner never
// returns a Go error — handled failures are reported in-band through
// ScanResult.ScanSuccessful and ErrorMessage, so a broken scan can be
// distinguished from a clean one that found nothing.
package scanner

import (
	"context"

	"github.com/patternscope/patternscope/models"
)

// Scanner analyses one repository tree per invocation.
type Scanner interface {
	// Name returns the scanner implementation name.
	Name() string

	// Scan inspects repoPath and returns the issues and patterns found.
	// Implementations must not panic or return errors out-of-band: any
	// handled failure sets ScanSuccessful=false with an ErrorMessage.
	Scan(ctx context.Context, repositoryID, repoPath string) models.ScanResult
}

// Noop is a scanner that observes nothing. Used when no real scanner is
// configured: the pipeline still completes with empty pattern lists,
// because absence of pattern data is not an analysis failure.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Scan(ctx context.Context, repositoryID, repoPath string) models.ScanResult {
	return models.ScanResult{
		SecurityIssues:    []models.Issue{},
		TypeSafetyIssues:  []models.Issue{},
		PerformanceIssues: []models.Issue{},
		Patterns:          []models.Pattern{},
		ScanSuccessful:    true,
	}
}
