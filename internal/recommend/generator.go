// Package recommend maps scan results to stored improvement
// recommendations. Generation is deterministic: one recommendation per
// distinct issue signature, so successive scans of an unchanged tree
// produce the same set.
package recommend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/patternscope/patternscope/models"
)

// categoryTitles prefixes recommendation titles per issue category.
var categoryTitles = map[string]string{
	models.IssueCategorySecurity:    "Fix security issue",
	models.IssueCategoryTypeSafety:  "Improve type safety",
	models.IssueCategoryPerformance: "Address performance concern",
}

// Generator converts a ScanResult into recommendation records.
type Generator struct{}

// NewGenerator creates a Generator.
func NewGenerator() *Generator { return &Generator{} }

// Generate produces one active recommendation per issue in the scan
// result. A failed scan generates nothing: there is no reliable issue set
// to recommend against.
func (g *Generator) Generate(repositoryID string, scan *models.ScanResult) []models.Recommendation {
	if scan == nil || !scan.ScanSuccessful {
		return nil
	}
	now := time.Now().UTC()
	var recs []models.Recommendation
	for _, category := range []string{
		models.IssueCategorySecurity,
		models.IssueCategoryTypeSafety,
		models.IssueCategoryPerformance,
	} {
		for _, issue := range scan.IssuesByCategory(category) {
			recs = append(recs, buildRecommendation(repositoryID, category, issue, now))
		}
	}
	return recs
}

func buildRecommendation(repositoryID, category string, issue models.Issue, now time.Time) models.Recommendation {
	title := fmt.Sprintf("%s: %s", categoryTitles[category], issue.Description)
	desc := fmt.Sprintf("%s in %s", issue.Description, issue.FilePath)
	if issue.Line > 0 {
		desc = fmt.Sprintf("%s (line %d)", desc, issue.Line)
	}
	tags, _ := json.Marshal([]string{category, issue.Rule})
	return models.Recommendation{
		RepositoryID:   repositoryID,
		Title:          title,
		Description:    desc,
		Category:       category,
		Priority:       issue.Severity,
		Status:         models.RecommendationActive,
		IssueSignature: issue.Signature,
		TagsJSON:       string(tags),
		CreatedAt:      now,
	}
}

// NormalizeText lowercases and collapses whitespace; used for duplicate
// detection across recommendation titles and descriptions.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
