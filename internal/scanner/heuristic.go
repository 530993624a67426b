package scanner

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/patternscope/patternscope/models"
)

// issueRule is a single line-level heuristic check.
type issueRule struct {
	id          string
	category    string
	severity    models.SeverityLevel
	pattern     *regexp.Regexp
	description string
	extensions  map[string]struct{}
}

func exts(list ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, e := range list {
		m[e] = struct{}{}
	}
	return m
}

var codeExts = exts(".go", ".js", ".mjs", ".ts", ".tsx", ".jsx", ".py", ".rb", ".java", ".php", ".cs")

var issueRules = []issueRule{
	{
		id:          "hardcoded-credential",
		category:    models.IssueCategorySecurity,
		severity:    models.SeverityHigh,
		pattern:     regexp.MustCompile(`(?i)(password|passwd|api[_-]?key|secret[_-]?key|auth[_-]?token)\s*[:=]\s*["'][^"']{8,}["']`),
		description: "possible hardcoded credential",
		extensions:  codeExts,
	},
	{
		id:          "sql-string-concat",
		category:    models.IssueCategorySecurity,
		severity:    models.SeverityHigh,
		pattern:     regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)[^"']*["']\s*\+`),
		description: "SQL statement built by string concatenation",
		extensions:  codeExts,
	},
	{
		id:          "untyped-any",
		category:    models.IssueCategoryTypeSafety,
		severity:    models.SeverityMedium,
		pattern:     regexp.MustCompile(`:\s*any\b|\bas\s+any\b`),
		description: "untyped any usage",
		extensions:  exts(".ts", ".tsx"),
	},
	{
		id:          "ts-ignore",
		category:    models.IssueCategoryTypeSafety,
		severity:    models.SeverityLow,
		pattern:     regexp.MustCompile(`@ts-ignore|@ts-nocheck`),
		description: "type checking suppressed",
		extensions:  exts(".ts", ".tsx", ".js", ".jsx"),
	},
	{
		id:          "query-in-loop",
		category:    models.IssueCategoryPerformance,
		severity:    models.SeverityMedium,
		pattern:     regexp.MustCompile(`(?i)for\s*\(.*\)\s*{[^}]*\b(query|find|exec)\s*\(`),
		description: "database call inside a loop",
		extensions:  codeExts,
	},
	{
		id:          "sync-io",
		category:    models.IssueCategoryPerformance,
		severity:    models.SeverityLow,
		pattern:     regexp.MustCompile(`\breadFileSync\b|\bexecSync\b`),
		description: "synchronous I/O on a request path",
		extensions:  exts(".js", ".mjs", ".ts", ".tsx"),
	},
}

// Heuristic is the builtin rule-based scanner. It is intentionally
// shallow: line-level regex checks plus structural pattern extraction,
// enough to feed the reconciliation and recommendation machinery.
type Heuristic struct {
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64
	// MaxFiles caps the walk.
	MaxFiles int
}

// NewHeuristic returns a Heuristic scanner with default limits.
func NewHeuristic() *Heuristic {
	return &Heuristic{MaxFileSize: 1 << 20, MaxFiles: 10000}
}

func (h *Heuristic) Name() string { return "heuristic" }

// Scan walks repoPath applying every issue rule to each source line.
// Failures (unreadable tree, cancelled context) are reported in-band.
func (h *Heuristic) Scan(ctx context.Context, repositoryID, repoPath string) models.ScanResult {
	res := models.ScanResult{
		SecurityIssues:    []models.Issue{},
		TypeSafetyIssues:  []models.Issue{},
		PerformanceIssues: []models.Issue{},
		Patterns:          []models.Pattern{},
		ScanSuccessful:    true,
	}

	if _, err := os.Stat(repoPath); err != nil {
		res.ScanSuccessful = false
		res.ErrorMessage = fmt.Sprintf("repository path unavailable: %v", err)
		return res
	}

	now := time.Now().UTC()
	seen := 0
	dirCounts := make(map[string]int)

	err := filepath.WalkDir(repoPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := entry.Name()
		if entry.IsDir() {
			if name == ".git" || name == "node_modules" || name == "vendor" || name == "dist" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := codeExts[ext]; !ok {
			return nil
		}
		seen++
		if seen > h.MaxFiles {
			return filepath.SkipAll
		}
		if info, err := entry.Info(); err != nil || info.Size() > h.MaxFileSize {
			return nil
		}

		rel, _ := filepath.Rel(repoPath, path)
		rel = filepath.ToSlash(rel)
		dirCounts[filepath.ToSlash(filepath.Dir(rel))]++

		h.scanFile(path, rel, &res)
		return nil
	})
	if err != nil {
		res.ScanSuccessful = false
		res.ErrorMessage = fmt.Sprintf("scan aborted: %v", err)
		return res
	}

	res.Patterns = extractPatterns(repositoryID, dirCounts, now)
	return res
}

// scanFile applies the line rules to one file. Read errors skip the file
// rather than failing the scan.
func (h *Heuristic) scanFile(path, rel string, res *models.ScanResult) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		for i := range issueRules {
			rule := &issueRules[i]
			if _, ok := rule.extensions[ext]; !ok {
				continue
			}
			if !rule.pattern.MatchString(line) {
				continue
			}
			issue := models.Issue{
				Signature:   models.IssueSignature(rel, rule.id, rule.description),
				Category:    rule.category,
				Rule:        rule.id,
				Description: rule.description,
				FilePath:    rel,
				Line:        lineNo,
				Severity:    rule.severity,
			}
			switch rule.category {
			case models.IssueCategorySecurity:
				res.SecurityIssues = appendUnique(res.SecurityIssues, issue)
			case models.IssueCategoryTypeSafety:
				res.TypeSafetyIssues = appendUnique(res.TypeSafetyIssues, issue)
			case models.IssueCategoryPerformance:
				res.PerformanceIssues = appendUnique(res.PerformanceIssues, issue)
			}
		}
	}
}

// appendUnique keeps one issue per signature (a rule firing on many lines
// of the same file is one issue for reconciliation purposes).
func appendUnique(list []models.Issue, issue models.Issue) []models.Issue {
	for _, existing := range list {
		if existing.Signature == issue.Signature {
			return list
		}
	}
	return append(list, issue)
}

// extractPatterns derives coarse structural patterns from directory shape.
func extractPatterns(repositoryID string, dirCounts map[string]int, now time.Time) []models.Pattern {
	patterns := []models.Pattern{}
	add := func(name, category, dir, description string, confidence float64) {
		patterns = append(patterns, models.Pattern{
			ID:           models.PatternID(repositoryID, name, dir),
			RepositoryID: repositoryID,
			Name:         name,
			Category:     category,
			FilePath:     dir,
			Description:  description,
			Confidence:   confidence,
			DetectedAt:   now,
		})
	}

	for dir, count := range dirCounts {
		base := filepath.Base(dir)
		switch base {
		case "controllers", "handlers", "routes":
			add("http-handler-layer", "architecture", dir,
				fmt.Sprintf("%d handler files grouped under %s", count, base), 0.8)
		case "models", "entities":
			add("data-model-layer", "architecture", dir,
				fmt.Sprintf("%d model files grouped under %s", count, base), 0.8)
		case "services":
			add("service-layer", "architecture", dir,
				fmt.Sprintf("%d service files grouped under %s", count, base), 0.8)
		case "middleware", "middlewares":
			add("middleware-chain", "architecture", dir,
				fmt.Sprintf("%d middleware files under %s", count, base), 0.7)
		case "tests", "test", "__tests__":
			add("dedicated-test-tree", "testing", dir,
				fmt.Sprintf("%d test files under %s", count, base), 0.6)
		}
	}
	return patterns
}
