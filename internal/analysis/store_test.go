package analysis

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/internal/database"
	"github.com/patternscope/patternscope/models"
)

func newTestStore(t *testing.T) (*Store, database.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "analysis-test.db")
	db, err := database.NewSQLite(config.DatabaseConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("new sqlite db: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), db
}

func seedRepo(t *testing.T, store *Store, id string) *models.Repository {
	t.Helper()
	repo := &models.Repository{
		ID:       id,
		Provider: "github",
		Owner:    "acme",
		Name:     id,
		FullName: "acme/" + id,
	}
	if err := store.UpsertRepository(context.Background(), repo); err != nil {
		t.Fatalf("seed repository: %v", err)
	}
	return repo
}

func TestJobLifecycleHappyPath(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "web")

	job, err := store.CreateJob(ctx, repo.ID, models.JobTypeFullScan)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if job.Status != models.JobStatusQueued || job.Progress != 0 {
		t.Fatalf("new job should be queued at 0 progress, got %+v", job)
	}

	if err := store.MarkJobRunning(ctx, job.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != models.JobStatusRunning {
		t.Fatalf("expected running, got %s", got.Status)
	}
	if got.StartedAt == nil {
		t.Fatal("started_at should be set once running")
	}

	if err := store.UpdateJobProgress(ctx, job.ID, 0.3); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := store.CompleteJob(ctx, job.ID, &models.ResultsSummary{
		PatternsExtracted: 4,
		TechStackDetected: []string{"go"},
		Confidence:        0.8,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ = store.GetJob(ctx, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Progress != 1.0 {
		t.Fatalf("completed job should pin progress to 1.0, got %f", got.Progress)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at should be set")
	}
	results := got.Results()
	if results == nil || results.PatternsExtracted != 4 {
		t.Fatalf("results summary not round-tripped: %+v", results)
	}
}

func TestTerminalStatusIsSticky(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "api")

	job, _ := store.CreateJob(ctx, repo.ID, models.JobTypeFullScan)
	if err := store.MarkJobRunning(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.CompleteJob(ctx, job.ID, &models.ResultsSummary{}); err != nil {
		t.Fatal(err)
	}

	// A late failure report must not overwrite the terminal state.
	if err := store.FailJob(ctx, job.ID, "late worker crash"); err != nil {
		t.Fatalf("fail should be a silent no-op, got %v", err)
	}
	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Fatalf("completed is terminal, got %s", got.Status)
	}
	if got.ErrorMsg != "" {
		t.Fatalf("terminal job must keep empty error, got %q", got.ErrorMsg)
	}

	// Same for late progress writes.
	if err := store.UpdateJobProgress(ctx, job.ID, 0.5); err != nil {
		t.Fatalf("late progress should be ignored, got %v", err)
	}
	got, _ = store.GetJob(ctx, job.ID)
	if got.Progress != 1.0 {
		t.Fatalf("late progress applied: %f", got.Progress)
	}

	// And re-running a terminal job is not possible.
	if err := store.MarkJobRunning(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetJob(ctx, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Fatalf("terminal job restarted: %s", got.Status)
	}
}

func TestFailureFreezesProgress(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "worker")

	job, _ := store.CreateJob(ctx, repo.ID, models.JobTypeFullScan)
	store.MarkJobRunning(ctx, job.ID)
	store.UpdateJobProgress(ctx, job.ID, 0.7)

	if err := store.FailJob(ctx, job.ID, "clone timed out"); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != models.JobStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Progress != 0.7 {
		t.Fatalf("failure should freeze progress at last checkpoint, got %f", got.Progress)
	}
	if got.ErrorMsg != "clone timed out" {
		t.Fatalf("error message lost: %q", got.ErrorMsg)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "svc")

	job, _ := store.CreateJob(ctx, repo.ID, models.JobTypeFullScan)

	// Progress against a queued job is ignored.
	store.UpdateJobProgress(ctx, job.ID, 0.3)
	got, _ := store.GetJob(ctx, job.ID)
	if got.Progress != 0 {
		t.Fatalf("queued job progressed: %f", got.Progress)
	}

	store.MarkJobRunning(ctx, job.ID)
	store.UpdateJobProgress(ctx, job.ID, 0.7)
	store.UpdateJobProgress(ctx, job.ID, 0.3) // out-of-order write
	got, _ = store.GetJob(ctx, job.ID)
	if got.Progress != 0.7 {
		t.Fatalf("progress regressed to %f", got.Progress)
	}
}

func TestCreateJobRejectsUnknownType(t *testing.T) {
	store, _ := newTestStore(t)
	repo := seedRepo(t, store, "cli")
	if _, err := store.CreateJob(context.Background(), repo.ID, "turbo"); err == nil {
		t.Fatal("expected error for invalid job type")
	}
}

func TestGetLatestJobOrdersByCreation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "docs")

	first, _ := store.CreateJob(ctx, repo.ID, models.JobTypeFullScan)
	time.Sleep(10 * time.Millisecond)
	second, _ := store.CreateJob(ctx, repo.ID, models.JobTypeIncremental)

	latest, err := store.GetLatestJob(ctx, repo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("expected latest job %s, got %+v (first was %s)", second.ID, latest, first.ID)
	}

	none, err := store.GetLatestJob(ctx, "missing-repo")
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Fatalf("expected nil for unanalysed repo, got %+v", none)
	}
}

func TestInsertRecommendationsSkipsActiveDuplicateSignatures(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "shop")

	rec := models.Recommendation{
		RepositoryID:   repo.ID,
		Title:          "Fix hardcoded credential",
		Category:       models.IssueCategorySecurity,
		Priority:       models.SeverityHigh,
		Status:         models.RecommendationActive,
		IssueSignature: "config.go|hardcoded-credential|secret in source",
		TagsJSON:       "[]",
		CreatedAt:      time.Now().UTC(),
	}
	n, err := store.InsertRecommendations(ctx, []models.Recommendation{rec})
	if err != nil || n != 1 {
		t.Fatalf("first insert: n=%d err=%v", n, err)
	}
	// Same signature from a repeat scan must not pile up.
	n, err = store.InsertRecommendations(ctx, []models.Recommendation{rec})
	if err != nil || n != 0 {
		t.Fatalf("repeat insert should skip, n=%d err=%v", n, err)
	}

	recs, _ := store.GetActiveRecommendations(ctx, repo.ID, "")
	if len(recs) != 1 {
		t.Fatalf("expected 1 active recommendation, got %d", len(recs))
	}
}

func TestResolveRecommendationsBySignature(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "infra")

	_, err := store.InsertRecommendations(ctx, []models.Recommendation{
		{
			RepositoryID:   repo.ID,
			Title:          "Avoid queries in loops",
			Category:       models.IssueCategoryPerformance,
			Priority:       models.SeverityMedium,
			Status:         models.RecommendationActive,
			IssueSignature: "dao.go|query-in-loop|db call inside range",
			TagsJSON:       "[]",
			CreatedAt:      time.Now().UTC(),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.ResolveRecommendations(ctx, repo.ID,
		[]string{"dao.go|query-in-loop|db call inside range"}); err != nil {
		t.Fatal(err)
	}

	active, _ := store.GetActiveRecommendations(ctx, repo.ID, "")
	if len(active) != 0 {
		t.Fatalf("resolved recommendation still active: %+v", active)
	}
}

func TestResolveRecommendationsCountsUpdatedRows(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "tally")

	sig := "auth.go|hardcoded-credential|secret in source"
	_, err := store.InsertRecommendations(ctx, []models.Recommendation{{
		RepositoryID:   repo.ID,
		Title:          "Remove hardcoded credential",
		Category:       models.IssueCategorySecurity,
		Priority:       models.SeverityHigh,
		Status:         models.RecommendationActive,
		IssueSignature: sig,
		TagsJSON:       "[]",
		CreatedAt:      time.Now().UTC(),
	}})
	if err != nil {
		t.Fatal(err)
	}

	// One matching signature, one unknown, one empty: only the match counts.
	n, err := store.ResolveRecommendations(ctx, repo.ID, []string{sig, "gone.go|no-such-rule|x", ""})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row resolved, got %d", n)
	}

	// Nothing left active, so a second pass updates nothing.
	n, err = store.ResolveRecommendations(ctx, repo.ID, []string{sig})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("already resolved rows must not be counted again, got %d", n)
	}
}
