package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/internal/database"
	"github.com/patternscope/patternscope/models"
)

func newTestGateway(t *testing.T) (*Gateway, database.DB) {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "gateway.db"),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Analyzer: config.AnalyzerConfig{Workers: 1, BatchSize: 2, ScanIntervalMinutes: 60},
	}
	gw, err := New(cfg, db)
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	return gw, db
}

func seedGatewayRepo(t *testing.T, gw *Gateway, id string) *models.Repository {
	t.Helper()
	repo := &models.Repository{
		ID:            id,
		Provider:      "github",
		Owner:         "acme",
		Name:          "web",
		FullName:      "acme/web",
		CloneURL:      "https://github.com/acme/web.git",
		DefaultBranch: "main",
	}
	if err := gw.store.UpsertRepository(context.Background(), repo); err != nil {
		t.Fatalf("seed repository: %v", err)
	}
	return repo
}

func doRequest(t *testing.T, gw *Gateway, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, rd)
	buildHandler(gw).ServeHTTP(rr, req)
	return rr
}

func TestHandleHealth(t *testing.T) {
	gw, _ := newTestGateway(t)
	rr := doRequest(t, gw, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleAnalyzeQueuesJob(t *testing.T) {
	gw, _ := newTestGateway(t)
	seedGatewayRepo(t, gw, "github:acme/web")

	rr := doRequest(t, gw, http.MethodPost, "/api/repositories/github:acme%2Fweb/analyze", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Job models.AnalysisJob `json:"job"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Job.ID == "" {
		t.Fatal("response job has no id")
	}
	if resp.Job.Status != models.JobStatusQueued {
		t.Fatalf("job status = %q, want queued", resp.Job.Status)
	}
	if resp.Job.JobType != models.JobTypeFullScan {
		t.Fatalf("job type = %q, want default full scan", resp.Job.JobType)
	}

	stored, err := gw.store.GetJob(context.Background(), resp.Job.ID)
	if err != nil {
		t.Fatalf("load queued job: %v", err)
	}
	if stored.RepositoryID != "github:acme/web" {
		t.Fatalf("job repository = %q", stored.RepositoryID)
	}
}

func TestHandleAnalyzeRejectsUnknownRepoAndBadType(t *testing.T) {
	gw, _ := newTestGateway(t)

	rr := doRequest(t, gw, http.MethodPost, "/api/repositories/github:nope%2Fmissing/analyze", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown repo, got %d", rr.Code)
	}

	seedGatewayRepo(t, gw, "github:acme/web")
	rr = doRequest(t, gw, http.MethodPost, "/api/repositories/github:acme%2Fweb/analyze",
		map[string]string{"job_type": "bogus"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad job type, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleAnalysisStatusNeverAnalyzed(t *testing.T) {
	gw, _ := newTestGateway(t)
	seedGatewayRepo(t, gw, "github:acme/web")

	rr := doRequest(t, gw, http.MethodGet, "/api/repositories/github:acme%2Fweb/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "never_analyzed" {
		t.Fatalf("status = %v, want never_analyzed", resp["status"])
	}
}

func TestHandleAnalysisStatusReportsLatestJob(t *testing.T) {
	gw, _ := newTestGateway(t)
	seedGatewayRepo(t, gw, "github:acme/web")
	ctx := context.Background()

	job, err := gw.store.CreateJob(ctx, "github:acme/web", models.JobTypeFullScan)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := gw.store.MarkJobRunning(ctx, job.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := gw.store.UpdateJobProgress(ctx, job.ID, 0.7); err != nil {
		t.Fatalf("update progress: %v", err)
	}

	rr := doRequest(t, gw, http.MethodGet, "/api/repositories/github:acme%2Fweb/status", nil)
	var resp struct {
		Status   string  `json:"status"`
		Progress float64 `json:"progress"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != models.JobStatusRunning {
		t.Fatalf("status = %q, want running", resp.Status)
	}
	if resp.Progress != 0.7 {
		t.Fatalf("progress = %v, want 0.7", resp.Progress)
	}
}

func TestHandleListRepositoriesPaginates(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()
	for _, id := range []string{"github:acme/a", "github:acme/b", "github:acme/c"} {
		repo := &models.Repository{ID: id, Provider: "github", Owner: "acme",
			Name: id[len("github:acme/"):], FullName: id[len("github:"):]}
		if err := gw.store.UpsertRepository(ctx, repo); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	rr := doRequest(t, gw, http.MethodGet, "/api/repositories?page=1&page_size=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Items      []models.Repository `json:"items"`
		Total      int                 `json:"total"`
		Page       int                 `json:"page"`
		TotalPages int                 `json:"total_pages"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 3 || len(resp.Items) != 2 || resp.TotalPages != 2 {
		t.Fatalf("unexpected page: total=%d items=%d pages=%d", resp.Total, len(resp.Items), resp.TotalPages)
	}
}

func TestHandleDedupeRemovesDuplicateRecommendations(t *testing.T) {
	gw, db := newTestGateway(t)
	seedGatewayRepo(t, gw, "github:acme/web")
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := &models.Recommendation{
			RepositoryID:   "github:acme/web",
			Title:          "Remove hardcoded credential",
			Description:    "Move the credential into configuration",
			Category:       models.IssueCategorySecurity,
			Priority:       models.SeverityHigh,
			Status:         models.RecommendationActive,
			IssueSignature: "sig-dup",
			TagsJSON:       "[]",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := db.Insert(ctx, "recommendations", rec); err != nil {
			t.Fatalf("seed recommendation %d: %v", i, err)
		}
	}

	rr := doRequest(t, gw, http.MethodPost, "/api/recommendations/dedupe?repository_id=github:acme/web", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Scanned int `json:"scanned"`
		Removed int `json:"removed"`
		Kept    int `json:"kept"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Removed != 2 || resp.Kept != 1 {
		t.Fatalf("dedupe result = %+v, want removed=2 kept=1", resp)
	}

	recs, err := gw.store.GetActiveRecommendations(ctx, "github:acme/web", "")
	if err != nil {
		t.Fatalf("list recommendations: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("active recommendations = %d, want 1", len(recs))
	}
}

func TestScannerStartStopPersistsState(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()
	if err := gw.scheduler.Start(ctx, 60); err != nil {
		t.Fatalf("scheduler start: %v", err)
	}
	defer gw.scheduler.Stop()

	rr := doRequest(t, gw, http.MethodPost, "/api/scanner/start",
		map[string]int{"interval_minutes": 30})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var state ScannerState
	if err := gw.db.Get(ctx, &state,
		`SELECT id, enabled, interval_minutes, last_run_at FROM scanner_state WHERE id = 1`); err != nil {
		t.Fatalf("load scanner state: %v", err)
	}
	if !state.Enabled || state.IntervalMinutes != 30 {
		t.Fatalf("persisted state = %+v, want enabled at 30m", state)
	}

	rr = doRequest(t, gw, http.MethodPost, "/api/scanner/stop", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if err := gw.db.Get(ctx, &state,
		`SELECT id, enabled, interval_minutes, last_run_at FROM scanner_state WHERE id = 1`); err != nil {
		t.Fatalf("reload scanner state: %v", err)
	}
	if state.Enabled {
		t.Fatal("scanner should be disabled after stop")
	}
	if state.IntervalMinutes != 30 {
		t.Fatalf("interval = %d, disable should keep it", state.IntervalMinutes)
	}
}

func TestScannerStateEndpoint(t *testing.T) {
	gw, _ := newTestGateway(t)
	if err := gw.scheduler.Start(context.Background(), 45); err != nil {
		t.Fatalf("scheduler start: %v", err)
	}
	defer gw.scheduler.Stop()

	rr := doRequest(t, gw, http.MethodGet, "/api/scanner", nil)
	var resp struct {
		Enabled         bool `json:"enabled"`
		IntervalMinutes int  `json:"interval_minutes"`
		ScanInProgress  bool `json:"scan_in_progress"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Enabled {
		t.Fatal("scanner should boot disabled")
	}
	if resp.IntervalMinutes != 45 {
		t.Fatalf("interval = %d, want seeded default 45", resp.IntervalMinutes)
	}
	if resp.ScanInProgress {
		t.Fatal("no scan should be in progress")
	}
}

func TestHandleScanAllReportBeforeFirstBatch(t *testing.T) {
	gw, _ := newTestGateway(t)
	rr := doRequest(t, gw, http.MethodGet, "/api/repositories/scan-all/report", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first batch, got %d", rr.Code)
	}
}

func TestHandleGetJobNotFound(t *testing.T) {
	gw, _ := newTestGateway(t)
	rr := doRequest(t, gw, http.MethodGet, "/api/jobs/does-not-exist", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHandleScanAllEmptyFleetReturnsReport(t *testing.T) {
	gw, _ := newTestGateway(t)

	rr := doRequest(t, gw, http.MethodPost, "/api/repositories/scan-all", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var report models.BatchReport
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalRepositories != 0 || report.Successful != 0 || report.Failed != 0 {
		t.Fatalf("unexpected counts in empty-fleet report: %+v", report)
	}

	// The same report is now served as the last completed batch.
	rr = doRequest(t, gw, http.MethodGet, "/api/repositories/scan-all/report", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from report endpoint, got %d", rr.Code)
	}
}

func TestHandleJobsSummary(t *testing.T) {
	gw, _ := newTestGateway(t)
	seedGatewayRepo(t, gw, "github:acme/web")
	ctx := context.Background()

	if _, err := gw.store.CreateJob(ctx, "github:acme/web", models.JobTypeFullScan); err != nil {
		t.Fatalf("create job: %v", err)
	}

	failed, err := gw.store.CreateJob(ctx, "github:acme/web", models.JobTypeIncremental)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := gw.store.MarkJobRunning(ctx, failed.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := gw.store.FailJob(ctx, failed.ID, "clone timed out"); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	rr := doRequest(t, gw, http.MethodGet, "/api/jobs/summary", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}
	if resp.ByStatus[models.JobStatusQueued] != 1 {
		t.Fatalf("queued = %d, want 1", resp.ByStatus[models.JobStatusQueued])
	}
	if resp.ByStatus[models.JobStatusFailed] != 1 {
		t.Fatalf("failed = %d, want 1", resp.ByStatus[models.JobStatusFailed])
	}
	if resp.ByStatus[models.JobStatusCompleted] != 0 {
		t.Fatalf("completed = %d, want 0", resp.ByStatus[models.JobStatusCompleted])
	}
}
