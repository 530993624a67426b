package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patternscope/patternscope/models"
)

// Coordinator runs the full-fleet scan: every tracked repository analysed
// in bounded parallel groups with a cool-down between groups, so a large
// fleet never hammers the hosting providers all at once.
type Coordinator struct {
	store    *Store
	pipeline *Pipeline
	logger   *slog.Logger

	// BatchSize is the number of repositories analysed concurrently.
	BatchSize int
	// BatchDelay is the pause between consecutive groups. There is no
	// delay before the first group or after the last.
	BatchDelay time.Duration
}

// NewCoordinator creates a Coordinator with the given concurrency bounds.
// A non-positive size falls back to 3; a negative delay falls back to 2s
// (zero disables the pause).
func NewCoordinator(store *Store, pipeline *Pipeline, batchSize int, batchDelay time.Duration, logger *slog.Logger) *Coordinator {
	if batchSize <= 0 {
		batchSize = 3
	}
	if batchDelay < 0 {
		batchDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:      store,
		pipeline:   pipeline,
		logger:     logger,
		BatchSize:  batchSize,
		BatchDelay: batchDelay,
	}
}

// ScanAll analyses every tracked repository and returns an aggregate
// report. One repository failing, or even panicking, never stops the
// rest: the failure is captured in the report and the batch moves on.
func (c *Coordinator) ScanAll(ctx context.Context) (*models.BatchReport, error) {
	repos, err := c.store.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	report := &models.BatchReport{
		TotalRepositories: len(repos),
		StartedAt:         time.Now().UTC(),
	}
	if len(repos) == 0 {
		report.CompletedAt = time.Now().UTC()
		return report, nil
	}

	groups := groupRepos(repos, c.BatchSize)
	c.logger.Info("starting batch scan",
		"repositories", len(repos), "groups", len(groups), "batch_size", c.BatchSize)

	for gi, group := range groups {
		if gi > 0 && c.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				report.CompletedAt = time.Now().UTC()
				return report, ctx.Err()
			case <-time.After(c.BatchDelay):
			}
		}

		outcomes := make([]models.RepoScanOutcome, len(group))
		var wg sync.WaitGroup
		for i := range group {
			wg.Add(1)
			go func(i int, repo models.Repository) {
				defer wg.Done()
				outcomes[i] = c.scanOne(ctx, &repo)
			}(i, group[i])
		}
		wg.Wait()

		for _, outcome := range outcomes {
			report.Results = append(report.Results, outcome)
			if outcome.Success {
				report.Successful++
				report.TotalPatterns += outcome.Patterns
				report.TotalIssues += outcome.Issues
				report.TotalRecommendations += outcome.Recommendations
			} else {
				report.Failed++
				report.Errors = append(report.Errors, models.BatchError{
					Repository: outcome.Repository,
					Error:      outcome.Error,
				})
			}
		}
	}

	report.CompletedAt = time.Now().UTC()
	c.logger.Info("batch scan finished",
		"successful", report.Successful, "failed", report.Failed,
		"duration", report.CompletedAt.Sub(report.StartedAt))
	return report, nil
}

// scanOne runs the full pipeline for a single repository, converting any
// panic into a failed outcome so a bad repository cannot take down its
// whole group.
func (c *Coordinator) scanOne(ctx context.Context, repo *models.Repository) (outcome models.RepoScanOutcome) {
	outcome.Repository = repo.FullName

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while scanning repository",
				"repository", repo.FullName, "panic", r)
			outcome.Success = false
			outcome.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	job, err := c.store.CreateJob(ctx, repo.ID, models.JobTypeFullScan)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	res, err := c.pipeline.RunDetailed(ctx, job)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	// Counts come from this scan, not from whatever rows accrued over
	// earlier runs.
	outcome.Success = true
	outcome.Patterns = res.Patterns
	outcome.Issues = res.Issues
	outcome.Recommendations = res.NewRecommendations
	outcome.FixedIssues = res.FixedIssues
	return outcome
}

// groupRepos splits repos into consecutive groups of at most size
// elements. The final group holds the remainder.
func groupRepos(repos []models.Repository, size int) [][]models.Repository {
	var groups [][]models.Repository
	for start := 0; start < len(repos); start += size {
		end := start + size
		if end > len(repos) {
			end = len(repos)
		}
		groups = append(groups, repos[start:end])
	}
	return groups
}
