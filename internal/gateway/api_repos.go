package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/patternscope/patternscope/internal/repository"
	"github.com/patternscope/patternscope/models"
)

func (gw *Gateway) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := gw.store.ListRepositories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	params := parsePaginationParams(r, 50, 200)
	writeJSON(w, http.StatusOK, paginate(repos, params))
}

func (gw *Gateway) handleGetRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := gw.store.GetRepository(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

// handleAnalyze queues an analysis job for a repository and returns 202
// immediately; the worker pool picks the job up in the background.
func (gw *Gateway) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	repo, err := gw.store.GetRepository(r.Context(), repoID)
	if err != nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}

	jobType := models.JobTypeFullScan
	var body struct {
		JobType  string `json:"job_type"`
		RepoPath string `json:"repo_path"`
		FullScan *bool  `json:"full_scan"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body.FullScan != nil && !*body.FullScan {
		jobType = models.JobTypeIncremental
	}
	if body.JobType != "" {
		jobType = body.JobType
	}
	if body.RepoPath != "" {
		if info, err := os.Stat(body.RepoPath); err != nil || !info.IsDir() {
			writeError(w, http.StatusBadRequest, "repo_path is not a readable directory")
			return
		}
	}

	job, err := gw.store.CreateJob(r.Context(), repo.ID, jobType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A caller-supplied checkout bypasses the clone workspace; the job
	// still runs in the background with the same containment the worker
	// pool provides.
	if body.RepoPath != "" {
		pl := gw.pipeline.WithWorkspace(&repository.LocalWorkspace{Path: body.RepoPath})
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic during local analysis", "job", job.ID, "panic", rec)
					_ = gw.store.FailJob(context.Background(), job.ID, fmt.Sprintf("panic: %v", rec))
				}
			}()
			_ = pl.Run(context.Background(), job)
		}()
		writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
		return
	}

	if !gw.workers.Enqueue(job.ID) {
		// Row stays queued; callers can retry via GET status.
		writeJSON(w, http.StatusAccepted, map[string]any{
			"job":     job,
			"warning": "worker queue saturated, job will start when capacity frees up",
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
}

// handleAnalysisStatus reports the latest job for a repository.
func (gw *Gateway) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	repo, err := gw.store.GetRepository(r.Context(), repoID)
	if err != nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}
	job, err := gw.store.GetLatestJob(r.Context(), repo.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"repository_id": repo.ID,
			"status":        "never_analyzed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"repository_id": repo.ID,
		"status":        job.Status,
		"progress":      job.Progress,
		"job":           job,
	})
}

// handleScanAll runs a fleet-wide batch scan and responds with the full
// report once every repository has been processed. A manual trigger is
// always honoured, even while the automated scanner is mid-run; the
// coordinator's per-repository job rows keep them apart.
func (gw *Gateway) handleScanAll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IncludeSelf bool `json:"include_self"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	// The caller waits for the whole batch; partial failures still
	// produce a 200 with the failures listed in the report.
	report := gw.runBatchScan(r.Context(), body.IncludeSelf || gw.cfg.Analyzer.IncludeSelf)
	if report == nil {
		writeError(w, http.StatusInternalServerError, "batch scan could not run")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (gw *Gateway) handleScanAllReport(w http.ResponseWriter, r *http.Request) {
	gw.mu.RLock()
	report := gw.lastBatch
	gw.mu.RUnlock()
	if report == nil {
		writeError(w, http.StatusNotFound, "no batch scan has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleRefreshRepository re-runs the full pipeline for one repository
// synchronously and reports how many previously known issues the fresh
// scan resolved plus how many recommendations it added. When the hosting
// provider is configured, repository metadata is refreshed first.
func (gw *Gateway) handleRefreshRepository(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	name := r.PathValue("repo")
	fullName := owner + "/" + name

	repo, err := gw.store.GetRepositoryByFullName(r.Context(), fullName)
	if err != nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}

	if provider, ok := gw.providers[repo.Provider]; ok {
		fresh, err := provider.GetRepo(r.Context(), owner, name)
		if err != nil {
			slog.Warn("metadata refresh failed", "repository", fullName, "error", err)
		} else {
			// Preserve analysis results across metadata refreshes.
			fresh.TechStackJSON = repo.TechStackJSON
			fresh.Framework = repo.Framework
			fresh.AnalysisStatus = repo.AnalysisStatus
			fresh.PatternsCount = repo.PatternsCount
			fresh.LastAnalyzed = repo.LastAnalyzed
			fresh.CreatedAt = repo.CreatedAt
			if err := gw.store.UpsertRepository(r.Context(), fresh); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			repo = fresh
		}
	}

	job, err := gw.store.CreateJob(r.Context(), repo.ID, models.JobTypeFullScan)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result, err := gw.pipeline.RunDetailed(r.Context(), job)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"repository_id":       repo.ID,
		"job_id":              job.ID,
		"fixed_issues":        result.FixedIssues,
		"new_recommendations": result.NewRecommendations,
	})
}
