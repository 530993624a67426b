package gateway

import (
	"net/http"
	"strings"

	"github.com/patternscope/patternscope/models"
)

func (gw *Gateway) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := `SELECT id, repository_id, job_type, status, progress,
		started_at, completed_at, results_json, error_msg, created_at
		FROM analysis_jobs`
	var (
		conds []string
		args  []interface{}
	)
	if v := strings.TrimSpace(q.Get("repository_id")); v != "" {
		conds = append(conds, "repository_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		conds = append(conds, "status = ?")
		args = append(args, v)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	var jobs []models.AnalysisJob
	if err := gw.db.Select(r.Context(), &jobs, query, args...); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	params := parsePaginationParams(r, 50, 200)
	writeJSON(w, http.StatusOK, paginate(jobs, params))
}

// handleJobsSummary returns job counts bucketed by status, plus the total.
func (gw *Gateway) handleJobsSummary(w http.ResponseWriter, r *http.Request) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	err := gw.db.Select(r.Context(), &rows,
		`SELECT status, COUNT(*) AS n FROM analysis_jobs GROUP BY status`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summary := map[string]int{
		models.JobStatusQueued:    0,
		models.JobStatusRunning:   0,
		models.JobStatusCompleted: 0,
		models.JobStatusFailed:    0,
	}
	total := 0
	for _, row := range rows {
		summary[row.Status] = row.N
		total += row.N
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"by_status": summary,
	})
}

func (gw *Gateway) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := gw.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	resp := map[string]any{"job": job}
	if results := job.Results(); results != nil {
		resp["results"] = results
	}
	writeJSON(w, http.StatusOK, resp)
}
