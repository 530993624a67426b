package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patternscope/patternscope/internal/analysis"
	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/internal/database"
	"github.com/patternscope/patternscope/internal/detect"
	"github.com/patternscope/patternscope/internal/recommend"
	"github.com/patternscope/patternscope/internal/repository"
	"github.com/patternscope/patternscope/internal/scanner"
	"github.com/patternscope/patternscope/models"
)

// Gateway is the long-running daemon that combines:
//   - the analysis worker pool (executing queued jobs)
//   - the batch coordinator (fleet-wide scans)
//   - a cron scheduler (automated periodic scans)
//   - a REST + SSE HTTP server (control plane for dashboards)
type Gateway struct {
	cfg         *config.Config
	db          database.DB
	store       *analysis.Store
	pipeline    *analysis.Pipeline
	workers     *analysis.Workers
	coordinator *analysis.Coordinator
	scheduler   *Scheduler
	broadcaster *Broadcaster
	providers   map[string]repository.Provider

	mu        sync.RWMutex
	startedAt time.Time
	lastBatch *models.BatchReport

	batchRunning atomic.Bool
}

// New wires the gateway from configuration and an open database.
func New(cfg *config.Config, db database.DB) (*Gateway, error) {
	b := newBroadcaster()
	store := analysis.NewStore(db)

	detector, err := detect.NewDetector()
	if err != nil {
		return nil, fmt.Errorf("loading detection rules: %w", err)
	}

	providers := make(map[string]repository.Provider)
	tokens := make(map[string]string)
	for _, gh := range cfg.Git.GitHub {
		p, err := repository.NewGitHub(gh)
		if err != nil {
			return nil, err
		}
		providers[p.Name()] = p
		tokens[p.Name()] = p.AuthToken()
	}
	for _, gl := range cfg.Git.GitLab {
		p, err := repository.NewGitLab(gl)
		if err != nil {
			return nil, err
		}
		providers[p.Name()] = p
		tokens[p.Name()] = p.AuthToken()
	}

	pipeline := analysis.NewPipeline(store,
		repository.NewCloneManager(tokens),
		detector,
		scanner.NewHeuristic(),
		recommend.NewGenerator(),
		b,
		slog.Default(),
	)

	gw := &Gateway{
		cfg:         cfg,
		db:          db,
		store:       store,
		pipeline:    pipeline,
		broadcaster: b,
		providers:   providers,
		startedAt:   time.Now(),
	}
	gw.workers = analysis.NewWorkers(store, pipeline, cfg.Analyzer.Workers, slog.Default())
	gw.coordinator = analysis.NewCoordinator(store, pipeline,
		cfg.Analyzer.BatchSize,
		time.Duration(cfg.Analyzer.BatchDelaySeconds)*time.Second,
		slog.Default(),
	)
	gw.scheduler = newScheduler(db, func(ctx context.Context) {
		gw.runBatchScan(ctx, cfg.Analyzer.IncludeSelf)
	}, b.send)
	return gw, nil
}

// Start runs the gateway until ctx is cancelled. It:
//  1. Starts the worker pool
//  2. Initialises the automated scanner
//  3. Starts a stats ticker that refreshes GatewayStatus every 5s via SSE
//  4. Binds the HTTP server (blocks until shutdown)
func (gw *Gateway) Start(ctx context.Context) error {
	port := gw.cfg.Gateway.Port
	if port == 0 {
		port = 7080
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	gw.workers.Start(ctx)

	if err := gw.scheduler.Start(ctx, gw.cfg.Analyzer.ScanIntervalMinutes); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	go gw.runStatsTicker(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: buildHandler(gw),
	}

	// Shut down HTTP server when ctx is cancelled.
	go func() {
		<-ctx.Done()
		gw.scheduler.Stop()
		gw.workers.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", "http://"+addr)
	gw.broadcaster.send(SSEEvent{
		Type:    "gateway.started",
		Payload: map[string]string{"addr": "http://" + addr},
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// runBatchScan executes a fleet scan and records the report. Used by both
// the scheduler tick and the manual scan-all endpoint; the endpoint waits
// for the returned report, the scheduler discards it.
func (gw *Gateway) runBatchScan(ctx context.Context, includeSelf bool) *models.BatchReport {
	gw.batchRunning.Store(true)
	defer gw.batchRunning.Store(false)

	if includeSelf {
		if err := gw.ensureSelfRepository(ctx); err != nil {
			slog.Warn("could not register self repository", "error", err)
		}
	}

	gw.broadcaster.send(SSEEvent{Type: "batch.started"})
	report, err := gw.coordinator.ScanAll(ctx)
	if err != nil {
		slog.Error("batch scan failed", "error", err)
		gw.broadcaster.send(SSEEvent{Type: "batch.failed", Payload: map[string]string{"error": err.Error()}})
		return nil
	}

	gw.mu.Lock()
	gw.lastBatch = report
	gw.mu.Unlock()
	gw.broadcaster.send(SSEEvent{Type: "batch.completed", Payload: report})
	return report
}

// ensureSelfRepository registers the working directory the daemon runs
// from as a local repository so scan-all can include it.
func (gw *Gateway) ensureSelfRepository(ctx context.Context) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	return gw.store.UpsertRepository(ctx, &models.Repository{
		ID:       "local:" + strings.ToLower(cwd),
		Provider: "local",
		Owner:    "local",
		Name:     filepath.Base(cwd),
		FullName: "local/" + filepath.Base(cwd),
		CloneURL: cwd,
	})
}

// runStatsTicker refreshes GatewayStatus from the DB every 5 seconds and
// broadcasts a "status.update" SSE event to all connected clients.
func (gw *Gateway) runStatsTicker(ctx context.Context) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			gw.broadcaster.send(SSEEvent{Type: "status.update", Payload: gw.currentStatus(ctx)})
		}
	}
}

func (gw *Gateway) currentStatus(ctx context.Context) GatewayStatus {
	var repos, queued, running, recs countRow
	_ = gw.db.Get(ctx, &repos, "SELECT COUNT(*) AS n FROM repositories")
	_ = gw.db.Get(ctx, &queued, "SELECT COUNT(*) AS n FROM analysis_jobs WHERE status = 'queued'")
	_ = gw.db.Get(ctx, &running, "SELECT COUNT(*) AS n FROM analysis_jobs WHERE status = 'running'")
	_ = gw.db.Get(ctx, &recs, "SELECT COUNT(*) AS n FROM recommendations WHERE status = 'active'")

	state := gw.scheduler.State()
	status := GatewayStatus{
		Repositories:   repos.N,
		QueuedJobs:     queued.N,
		RunningJobs:    running.N,
		ActiveRecs:     recs.N,
		ScannerEnabled: state.Enabled,
		BatchRunning:   gw.batchRunning.Load(),
		UptimeSeconds:  int64(time.Since(gw.startedAt).Seconds()),
	}
	if state.LastRunAt != nil {
		status.LastScanAt = *state.LastRunAt
	}
	return status
}
