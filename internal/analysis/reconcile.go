package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/patternscope/patternscope/models"
)

// Reconciler compares a fresh scan against previously recorded issues and
// reports the ones that no longer show up as fixed. It never writes:
// resolving the matching recommendations is the caller's job, off the
// report's signatures.
type Reconciler struct {
	store  *Store
	logger *slog.Logger
}

// NewReconciler creates a Reconciler over the store.
func NewReconciler(store *Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

// ReconcileIssues diffs the active recommendation set for a repository
// against the issues the current scan found. Signatures with an active
// recommendation but no matching current issue are reported as fixed; the
// recommendations themselves stay untouched until the caller resolves
// them.
//
// A failed scan is evidence of nothing: when ScanSuccessful is false the
// reconciler returns an empty report, so a transient clone or scanner
// outage never reports open issues as fixed.
func (r *Reconciler) ReconcileIssues(ctx context.Context, repositoryID string, result *models.ScanResult) (*models.FixedIssuesReport, error) {
	report := &models.FixedIssuesReport{}
	if result == nil || !result.ScanSuccessful {
		return report, nil
	}

	current := make(map[string]bool)
	for _, category := range []string{
		models.IssueCategorySecurity,
		models.IssueCategoryTypeSafety,
		models.IssueCategoryPerformance,
	} {
		for _, issue := range result.IssuesByCategory(category) {
			current[issue.Signature] = true
		}
	}

	active, err := r.store.GetActiveRecommendations(ctx, repositoryID, "")
	if err != nil {
		return nil, fmt.Errorf("loading active recommendations: %w", err)
	}

	for _, rec := range active {
		if rec.IssueSignature == "" || current[rec.IssueSignature] {
			continue
		}
		issue := models.Issue{
			Signature:   rec.IssueSignature,
			Category:    rec.Category,
			Description: rec.Description,
			Severity:    rec.Priority,
		}
		switch rec.Category {
		case models.IssueCategorySecurity:
			report.FixedSecurityIssues = append(report.FixedSecurityIssues, issue)
		case models.IssueCategoryTypeSafety:
			report.FixedTypeIssues = append(report.FixedTypeIssues, issue)
		case models.IssueCategoryPerformance:
			report.FixedPerformanceIssues = append(report.FixedPerformanceIssues, issue)
		}
	}

	if report.Total() > 0 {
		r.logger.Info("issues no longer observed by scan",
			"repository", repositoryID, "fixed", report.Total())
	}
	return report, nil
}
