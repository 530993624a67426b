package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patternscope/patternscope/internal/detect"
	"github.com/patternscope/patternscope/internal/recommend"
	"github.com/patternscope/patternscope/internal/scanner"
	"github.com/patternscope/patternscope/models"
)

// Progress checkpoints reached as the pipeline moves through its phases.
const (
	progressDetected  = 0.3
	progressExtracted = 0.7
	progressPersisted = 0.9
)

// Workspace prepares a local checkout for a repository and cleans it up
// afterwards. The production implementation shallow-clones with go-git.
type Workspace interface {
	Prepare(ctx context.Context, repo *models.Repository) (path string, cleanup func(), err error)
}

// Notifier receives pipeline lifecycle events for live dashboards. The
// gateway's SSE broadcaster implements it; a nil Notifier is valid.
type Notifier interface {
	JobEvent(jobID, repositoryID, status string, progress float64)
}

// Pipeline runs a single repository through the full analysis sequence:
// detect tech stack, extract patterns and issues, persist, update the
// repository record, reconcile fixed issues and generate recommendations.
type Pipeline struct {
	store     *Store
	workspace Workspace
	detector  *detect.Detector
	scanner   scanner.Scanner
	generator *recommend.Generator
	notifier  Notifier
	logger    *slog.Logger
}

// NewPipeline wires the pipeline collaborators together.
func NewPipeline(store *Store, ws Workspace, det *detect.Detector, sc scanner.Scanner, gen *recommend.Generator, notifier Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     store,
		workspace: ws,
		detector:  det,
		scanner:   sc,
		generator: gen,
		notifier:  notifier,
		logger:    logger,
	}
}

// RunResult summarises one run for callers that report it: the batch
// coordinator, the refresh endpoint, the CLI. Patterns and Issues count
// what this scan found; FixedIssues and NewRecommendations count the
// reconciliation side effects.
type RunResult struct {
	Patterns           int `json:"patterns"`
	Issues             int `json:"issues"`
	FixedIssues        int `json:"fixed_issues"`
	NewRecommendations int `json:"new_recommendations"`
}

// WithWorkspace returns a copy of the pipeline using ws instead of the
// configured workspace. Used for jobs that target a local checkout.
func (p *Pipeline) WithWorkspace(ws Workspace) *Pipeline {
	cp := *p
	cp.workspace = ws
	return &cp
}

// Run executes the job to completion. The returned error reports why the
// job failed; the job row itself always ends in a terminal state, with
// progress frozen at the last checkpoint reached on failure.
func (p *Pipeline) Run(ctx context.Context, job *models.AnalysisJob) error {
	_, err := p.RunDetailed(ctx, job)
	return err
}

// RunDetailed is Run plus a summary of what the run fixed and recommended.
func (p *Pipeline) RunDetailed(ctx context.Context, job *models.AnalysisJob) (*RunResult, error) {
	log := p.logger.With("job", job.ID, "repository", job.RepositoryID)

	if err := p.store.MarkJobRunning(ctx, job.ID); err != nil {
		return nil, p.fail(ctx, job, fmt.Errorf("marking job running: %w", err))
	}
	p.notify(job, models.JobStatusRunning, 0)

	repo, err := p.store.GetRepository(ctx, job.RepositoryID)
	if err != nil {
		return nil, p.fail(ctx, job, err)
	}
	if err := p.store.SetRepositoryAnalysisStatus(ctx, repo.ID, models.AnalysisStatusAnalyzing); err != nil {
		log.Warn("could not flag repository as analyzing", "error", err)
	}

	path, cleanup, err := p.workspace.Prepare(ctx, repo)
	if err != nil {
		return nil, p.fail(ctx, job, fmt.Errorf("preparing workspace: %w", err))
	}
	defer cleanup()

	// Phase 1: tech stack detection.
	detected, err := p.detector.DetectTechStack(ctx, path)
	if err != nil {
		return nil, p.fail(ctx, job, fmt.Errorf("detecting tech stack: %w", err))
	}
	p.checkpoint(ctx, job, progressDetected)
	log.Info("tech stack detected", "language", detected.PrimaryLanguage, "stack", detected.TechStack)

	// Phase 2: pattern and issue extraction. The scanner reports its own
	// failures in-band via ScanSuccessful rather than an error return.
	result := p.scanner.Scan(ctx, repo.ID, path)
	if !result.ScanSuccessful {
		return nil, p.fail(ctx, job, fmt.Errorf("scan failed: %s", result.ErrorMessage))
	}
	p.checkpoint(ctx, job, progressExtracted)
	log.Info("extraction finished", "patterns", len(result.Patterns), "issues", result.TotalIssues())

	// Phase 3: persist patterns and refresh the repository record.
	if err := p.store.UpsertPatterns(ctx, result.Patterns); err != nil {
		return nil, p.fail(ctx, job, err)
	}
	patternsCount, err := p.store.CountPatterns(ctx, repo.ID)
	if err != nil {
		return nil, p.fail(ctx, job, err)
	}
	err = p.store.UpdateRepositoryAnalysis(ctx, repo.ID, detected.TechStack,
		detected.PrimaryLanguage, detected.Framework, patternsCount, models.AnalysisStatusCompleted)
	if err != nil {
		return nil, p.fail(ctx, job, err)
	}
	p.checkpoint(ctx, job, progressPersisted)

	// Phase 4: reconcile previously reported issues, then generate fresh
	// recommendations for what the scan still finds. The reconciler only
	// classifies; resolving the matching recommendations happens here.
	reconciler := NewReconciler(p.store, p.logger)
	fixed := 0
	report, err := reconciler.ReconcileIssues(ctx, repo.ID, &result)
	if err != nil {
		log.Warn("issue reconciliation failed", "error", err)
	} else if report.Total() > 0 {
		if _, err := p.store.ResolveRecommendations(ctx, repo.ID, report.Signatures()); err != nil {
			log.Warn("resolving fixed recommendations failed", "error", err)
		} else {
			fixed = report.Total()
			log.Info("issues reconciled as fixed", "count", fixed)
		}
	}

	recs := p.generator.Generate(repo.ID, &result)
	inserted, err := p.store.InsertRecommendations(ctx, recs)
	if err != nil {
		return nil, p.fail(ctx, job, err)
	}

	summary := &models.ResultsSummary{
		PatternsExtracted: len(result.Patterns),
		TechStackDetected: detected.TechStack,
		Confidence:        extractionConfidence(&result),
	}
	if err := p.store.CompleteJob(ctx, job.ID, summary); err != nil {
		return nil, p.fail(ctx, job, fmt.Errorf("completing job: %w", err))
	}
	p.notify(job, models.JobStatusCompleted, 1)
	log.Info("analysis completed", "recommendations", inserted)
	return &RunResult{
		Patterns:           len(result.Patterns),
		Issues:             result.TotalIssues(),
		FixedIssues:        fixed,
		NewRecommendations: inserted,
	}, nil
}

func (p *Pipeline) checkpoint(ctx context.Context, job *models.AnalysisJob, progress float64) {
	if err := p.store.UpdateJobProgress(ctx, job.ID, progress); err != nil {
		p.logger.Warn("progress update failed", "job", job.ID, "error", err)
	}
	p.notify(job, models.JobStatusRunning, progress)
}

// fail moves the job to its terminal failed state. Progress stays frozen
// at the last checkpoint reached.
func (p *Pipeline) fail(ctx context.Context, job *models.AnalysisJob, cause error) error {
	p.logger.Error("analysis failed", "job", job.ID, "repository", job.RepositoryID, "error", cause)
	if err := p.store.FailJob(ctx, job.ID, cause.Error()); err != nil {
		p.logger.Error("could not record job failure", "job", job.ID, "error", err)
	}
	if err := p.store.SetRepositoryAnalysisStatus(ctx, job.RepositoryID, models.AnalysisStatusFailed); err != nil {
		p.logger.Warn("could not flag repository as failed", "error", err)
	}
	p.notify(job, models.JobStatusFailed, -1)
	return cause
}

func (p *Pipeline) notify(job *models.AnalysisJob, status string, progress float64) {
	if p.notifier == nil {
		return
	}
	p.notifier.JobEvent(job.ID, job.RepositoryID, status, progress)
}

// extractionConfidence scores how much signal the scan produced. Empty
// repositories score low so dashboards can flag thin results.
func extractionConfidence(result *models.ScanResult) float64 {
	n := len(result.Patterns) + result.TotalIssues()
	switch {
	case n == 0:
		return 0.2
	case n < 5:
		return 0.6
	case n < 20:
		return 0.8
	default:
		return 0.95
	}
}

// WaitForTerminal polls until the job reaches a terminal state or the
// context ends. Used by the CLI's foreground analyze command.
func (p *Pipeline) WaitForTerminal(ctx context.Context, jobID string, poll time.Duration) (*models.AnalysisJob, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		job, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if models.IsTerminalJobStatus(job.Status) {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}
