// Package analysis contains the orchestrator core: the job record store,
// the phased single-repository pipeline, the batch scan coordinator, the
// issue reconciler and the recommendation deduplicator.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/patternscope/patternscope/internal/database"
	"github.com/patternscope/patternscope/models"
)

// Store is the typed persistence facade the orchestrator writes through.
// Job status transitions are enforced here with guarded single-statement
// updates: terminal states are sticky and late writes are ignored rather
// than applied last-writer-wins.
type Store struct {
	db database.DB
}

// NewStore creates a Store over db.
func NewStore(db database.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying database for read-only dashboard queries.
func (s *Store) DB() database.DB { return s.db }

// --- analysis jobs ---

// CreateJob inserts a new queued job and returns it.
func (s *Store) CreateJob(ctx context.Context, repositoryID, jobType string) (*models.AnalysisJob, error) {
	if jobType != models.JobTypeFullScan && jobType != models.JobTypeIncremental {
		return nil, fmt.Errorf("invalid job type %q", jobType)
	}
	job := &models.AnalysisJob{
		ID:           models.NewJobID(),
		RepositoryID: repositoryID,
		JobType:      jobType,
		Status:       models.JobStatusQueued,
		Progress:     0,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.db.Insert(ctx, "analysis_jobs", job); err != nil {
		return nil, fmt.Errorf("creating analysis job: %w", err)
	}
	return job, nil
}

// GetJob returns the job with the given id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := s.db.Get(ctx, &job, `SELECT id, repository_id, job_type, status, progress,
		started_at, completed_at, results_json, error_msg, created_at
		FROM analysis_jobs WHERE id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", jobID, err)
	}
	return &job, nil
}

// GetLatestJob returns the most recently created job for a repository, or
// nil when the repository has never been analysed.
func (s *Store) GetLatestJob(ctx context.Context, repositoryID string) (*models.AnalysisJob, error) {
	var jobs []models.AnalysisJob
	err := s.db.Select(ctx, &jobs, `SELECT id, repository_id, job_type, status, progress,
		started_at, completed_at, results_json, error_msg, created_at
		FROM analysis_jobs WHERE repository_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("loading latest job for %s: %w", repositoryID, err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// MarkJobRunning transitions queued → running. A job in any other state
// is left untouched (exactly one driver ever picks a job up, so a failed
// guard here means the caller raced a duplicate kickoff).
func (s *Store) MarkJobRunning(ctx context.Context, jobID string) error {
	return s.db.Exec(ctx, `UPDATE analysis_jobs
		SET status = ?, started_at = ?
		WHERE id = ? AND status = ?`,
		models.JobStatusRunning, time.Now().UTC(), jobID, models.JobStatusQueued)
}

// UpdateJobProgress advances progress while the job is running. Progress
// is monotone: a smaller value than the current one is ignored, as is any
// write against a job that already reached a terminal state.
func (s *Store) UpdateJobProgress(ctx context.Context, jobID string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return s.db.Exec(ctx, `UPDATE analysis_jobs
		SET progress = ?
		WHERE id = ? AND status = ? AND progress <= ?`,
		progress, jobID, models.JobStatusRunning, progress)
}

// CompleteJob transitions running → completed, pinning progress to 1.0
// and attaching the results summary. No-op if the job is not running.
func (s *Store) CompleteJob(ctx context.Context, jobID string, results *models.ResultsSummary) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("serialising results summary: %w", err)
	}
	return s.db.Exec(ctx, `UPDATE analysis_jobs
		SET status = ?, progress = 1.0, results_json = ?, error_msg = '', completed_at = ?
		WHERE id = ? AND status = ?`,
		models.JobStatusCompleted, string(data), time.Now().UTC(),
		jobID, models.JobStatusRunning)
}

// FailJob transitions a non-terminal job to failed, recording the message
// and freezing progress at its current value as a diagnostic of how far
// execution got. Terminal jobs are left untouched.
func (s *Store) FailJob(ctx context.Context, jobID, errMsg string) error {
	return s.db.Exec(ctx, `UPDATE analysis_jobs
		SET status = ?, error_msg = ?, results_json = '', completed_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		models.JobStatusFailed, errMsg, time.Now().UTC(),
		jobID, models.JobStatusQueued, models.JobStatusRunning)
}

// --- repositories ---

// GetRepository returns the repository row with the given id.
func (s *Store) GetRepository(ctx context.Context, id string) (*models.Repository, error) {
	var repo models.Repository
	err := s.db.Get(ctx, &repo, `SELECT id, provider, owner, name, full_name, clone_url,
		default_branch, language, tech_stack, framework, analysis_status,
		patterns_count, last_analyzed, created_at
		FROM repositories WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("loading repository %s: %w", id, err)
	}
	return &repo, nil
}

// GetRepositoryByFullName looks a repository up by "owner/name".
func (s *Store) GetRepositoryByFullName(ctx context.Context, fullName string) (*models.Repository, error) {
	var repo models.Repository
	err := s.db.Get(ctx, &repo, `SELECT id, provider, owner, name, full_name, clone_url,
		default_branch, language, tech_stack, framework, analysis_status,
		patterns_count, last_analyzed, created_at
		FROM repositories WHERE full_name = ?`, fullName)
	if err != nil {
		return nil, fmt.Errorf("loading repository %s: %w", fullName, err)
	}
	return &repo, nil
}

// ListRepositories returns all tracked repositories ordered by full name.
func (s *Store) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	var repos []models.Repository
	err := s.db.Select(ctx, &repos, `SELECT id, provider, owner, name, full_name, clone_url,
		default_branch, language, tech_stack, framework, analysis_status,
		patterns_count, last_analyzed, created_at
		FROM repositories ORDER BY full_name`)
	return repos, err
}

// UpsertRepository inserts or refreshes a repository row keyed by id.
func (s *Store) UpsertRepository(ctx context.Context, repo *models.Repository) error {
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = time.Now().UTC()
	}
	if repo.AnalysisStatus == "" {
		repo.AnalysisStatus = models.AnalysisStatusPending
	}
	if repo.TechStackJSON == "" {
		repo.TechStackJSON = "[]"
	}
	return s.db.Upsert(ctx, "repositories", repo, []string{"id"})
}

// SetRepositoryAnalysisStatus updates only the analysis status.
func (s *Store) SetRepositoryAnalysisStatus(ctx context.Context, repositoryID, status string) error {
	return s.db.Exec(ctx, `UPDATE repositories SET analysis_status = ? WHERE id = ?`,
		status, repositoryID)
}

// UpdateRepositoryAnalysis writes back the analysis outcome: tech stack,
// framework, pattern count, status and last-analysed timestamp.
func (s *Store) UpdateRepositoryAnalysis(ctx context.Context, repositoryID string, techStack []string, language, framework string, patternsCount int, status string) error {
	stack, err := json.Marshal(techStack)
	if err != nil {
		return fmt.Errorf("serialising tech stack: %w", err)
	}
	return s.db.Exec(ctx, `UPDATE repositories
		SET tech_stack = ?, language = ?, framework = ?, patterns_count = ?,
		    analysis_status = ?, last_analyzed = ?
		WHERE id = ?`,
		string(stack), language, framework, patternsCount, status,
		time.Now().UTC(), repositoryID)
}

// --- patterns ---

// UpsertPatterns writes extracted patterns, replacing prior rows with the
// same pattern ID. Repeated calls with identical input are idempotent.
func (s *Store) UpsertPatterns(ctx context.Context, patterns []models.Pattern) error {
	for i := range patterns {
		if err := s.db.Upsert(ctx, "patterns", &patterns[i], []string{"id"}); err != nil {
			return fmt.Errorf("upserting pattern %s: %w", patterns[i].ID, err)
		}
	}
	return nil
}

// CountPatterns returns the number of stored patterns for a repository.
func (s *Store) CountPatterns(ctx context.Context, repositoryID string) (int, error) {
	var row struct {
		N int `db:"n"`
	}
	err := s.db.Get(ctx, &row, `SELECT COUNT(*) AS n FROM patterns WHERE repository_id = ?`, repositoryID)
	return row.N, err
}

// --- recommendations ---

// GetActiveRecommendations returns active recommendations for a
// repository, optionally filtered to one issue category.
func (s *Store) GetActiveRecommendations(ctx context.Context, repositoryID, category string) ([]models.Recommendation, error) {
	query := `SELECT id, repository_id, title, description, category, priority, status,
		issue_signature, tags, created_at
		FROM recommendations WHERE repository_id = ? AND status = ?`
	args := []interface{}{repositoryID, models.RecommendationActive}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY id`
	var recs []models.Recommendation
	err := s.db.Select(ctx, &recs, query, args...)
	return recs, err
}

// InsertRecommendations stores generated recommendations, skipping any
// whose issue signature already has an active row for the repository
// (repeat scans must not pile up duplicates).
func (s *Store) InsertRecommendations(ctx context.Context, recs []models.Recommendation) (int, error) {
	inserted := 0
	for i := range recs {
		rec := &recs[i]
		var row struct {
			N int `db:"n"`
		}
		if rec.IssueSignature != "" {
			err := s.db.Get(ctx, &row, `SELECT COUNT(*) AS n FROM recommendations
				WHERE repository_id = ? AND issue_signature = ? AND status = ?`,
				rec.RepositoryID, rec.IssueSignature, models.RecommendationActive)
			if err != nil {
				return inserted, fmt.Errorf("checking existing recommendation: %w", err)
			}
			if row.N > 0 {
				continue
			}
		}
		if _, err := s.db.Insert(ctx, "recommendations", rec); err != nil {
			return inserted, fmt.Errorf("inserting recommendation: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

// DeleteRecommendations removes recommendation rows by id.
func (s *Store) DeleteRecommendations(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.db.Exec(ctx, `DELETE FROM recommendations WHERE id IN (`+placeholders+`)`, args...)
}

// ResolveRecommendations marks active recommendations matching the given
// issue signatures as resolved. The count is rows actually updated, not
// signatures attempted; a signature nothing matches contributes zero.
func (s *Store) ResolveRecommendations(ctx context.Context, repositoryID string, signatures []string) (int, error) {
	resolved := 0
	for _, sig := range signatures {
		if sig == "" {
			continue
		}
		n, err := s.db.ExecAffected(ctx, `UPDATE recommendations SET status = ?
			WHERE repository_id = ? AND issue_signature = ? AND status = ?`,
			models.RecommendationResolved, repositoryID, sig, models.RecommendationActive)
		if err != nil {
			return resolved, fmt.Errorf("resolving recommendation %q: %w", sig, err)
		}
		resolved += int(n)
	}
	return resolved, nil
}
