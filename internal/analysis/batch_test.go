package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/patternscope/patternscope/models"
)

func TestGroupRepos(t *testing.T) {
	mk := func(n int) []models.Repository {
		repos := make([]models.Repository, n)
		for i := range repos {
			repos[i].ID = string(rune('a' + i))
		}
		return repos
	}

	cases := []struct {
		name  string
		n     int
		size  int
		want  []int
	}{
		{"remainder group", 7, 3, []int{3, 3, 1}},
		{"exact multiple", 6, 3, []int{3, 3}},
		{"fewer than batch", 2, 3, []int{2}},
		{"single", 1, 3, []int{1}},
		{"empty", 0, 3, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			groups := groupRepos(mk(tc.n), tc.size)
			if len(groups) != len(tc.want) {
				t.Fatalf("expected %d groups, got %d", len(tc.want), len(groups))
			}
			for i, g := range groups {
				if len(g) != tc.want[i] {
					t.Fatalf("group %d: expected %d repos, got %d", i, tc.want[i], len(g))
				}
			}
		})
	}
}

func TestScanAllIsolatesFailures(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	good := seedRepo(t, store, "good")
	bad := seedRepo(t, store, "bad")

	sc := &fakeScanner{results: map[string]models.ScanResult{
		good.ID: {ScanSuccessful: true},
		bad.ID:  {ScanSuccessful: false, ErrorMessage: "scanner exploded"},
	}}
	p := newTestPipeline(t, store, &fakeWorkspace{dir: writeGoProject(t)}, sc)
	c := NewCoordinator(store, p, 3, 0, nil)

	report, err := c.ScanAll(ctx)
	if err != nil {
		t.Fatalf("scan all: %v", err)
	}

	if report.TotalRepositories != 2 {
		t.Fatalf("expected 2 repositories, got %d", report.TotalRepositories)
	}
	if report.Successful != 1 || report.Failed != 1 {
		t.Fatalf("expected 1 success / 1 failure, got %d / %d", report.Successful, report.Failed)
	}
	if len(report.Errors) != 1 || report.Errors[0].Repository != bad.FullName {
		t.Fatalf("failure not attributed: %+v", report.Errors)
	}
	if len(report.Results) != 2 {
		t.Fatalf("every repository needs an outcome entry, got %d", len(report.Results))
	}

	// Both jobs must have reached a terminal state.
	for _, id := range []string{good.ID, bad.ID} {
		job, err := store.GetLatestJob(ctx, id)
		if err != nil || job == nil {
			t.Fatalf("missing job for %s: %v", id, err)
		}
		if !models.IsTerminalJobStatus(job.Status) {
			t.Fatalf("job for %s left non-terminal: %s", id, job.Status)
		}
	}
}

func TestScanAllPausesBetweenGroups(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// 4 repos with batch size 2: two groups, one delay between them.
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		seedRepo(t, store, id)
	}
	p := newTestPipeline(t, store, &fakeWorkspace{dir: writeGoProject(t)}, &fakeScanner{})
	delay := 150 * time.Millisecond
	c := NewCoordinator(store, p, 2, delay, nil)

	start := time.Now()
	report, err := c.ScanAll(ctx)
	if err != nil {
		t.Fatalf("scan all: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Fatalf("expected at least one inter-group pause of %s, took %s", delay, elapsed)
	}
	if report.Successful != 4 {
		t.Fatalf("expected 4 successes, got %+v", report)
	}
}

func TestScanAllEmptyFleet(t *testing.T) {
	store, _ := newTestStore(t)
	p := newTestPipeline(t, store, &fakeWorkspace{dir: writeGoProject(t)}, &fakeScanner{})
	c := NewCoordinator(store, p, 3, 2*time.Second, nil)

	start := time.Now()
	report, err := c.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("scan all: %v", err)
	}
	if report.TotalRepositories != 0 || len(report.Results) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
	// No repositories means no delays either.
	if time.Since(start) > time.Second {
		t.Fatal("empty fleet should return immediately")
	}
}

func TestScanAllOutcomeCountsCurrentScanOnly(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "counts")

	// A leftover recommendation from an earlier scan. Its issue is gone
	// now, so this run should report it fixed rather than count it.
	seedActiveRec(t, store, repo.ID, models.IssueCategoryPerformance,
		models.IssueSignature("old.go", "query-in-loop", "db call inside range"))

	issue := models.Issue{
		Signature:   models.IssueSignature("auth.go", "hardcoded-credential", "secret in source"),
		Category:    models.IssueCategorySecurity,
		Rule:        "hardcoded-credential",
		Description: "secret in source",
		FilePath:    "auth.go",
		Severity:    models.SeverityHigh,
	}
	sc := &fakeScanner{results: map[string]models.ScanResult{
		repo.ID: {
			SecurityIssues: []models.Issue{issue},
			Patterns: []models.Pattern{{
				ID:           models.PatternID(repo.ID, "cli-entrypoint", "main.go"),
				RepositoryID: repo.ID,
				Name:         "cli-entrypoint",
				Category:     "structure",
				FilePath:     "main.go",
			}},
			ScanSuccessful: true,
		},
	}}
	p := newTestPipeline(t, store, &fakeWorkspace{dir: writeGoProject(t)}, sc)
	c := NewCoordinator(store, p, 3, 0, nil)

	report, err := c.ScanAll(ctx)
	if err != nil {
		t.Fatalf("scan all: %v", err)
	}
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(report.Results))
	}
	out := report.Results[0]
	if !out.Success {
		t.Fatalf("scan should succeed: %+v", out)
	}
	if out.Patterns != 1 || out.Issues != 1 || out.Recommendations != 1 {
		t.Fatalf("outcome must count this scan's findings only: %+v", out)
	}
	if out.FixedIssues != 1 {
		t.Fatalf("fixed leftover issue not reported: %+v", out)
	}
	if report.TotalIssues != 1 || report.TotalPatterns != 1 || report.TotalRecommendations != 1 {
		t.Fatalf("report totals wrong: %+v", report)
	}
}
