package gateway

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/patternscope/patternscope/internal/analysis"
	"github.com/patternscope/patternscope/models"
)

func (gw *Gateway) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := `SELECT id, repository_id, title, description, category, priority, status,
		issue_signature, tags, created_at
		FROM recommendations`
	var (
		conds []string
		args  []interface{}
	)
	if v := strings.TrimSpace(q.Get("repository_id")); v != "" {
		conds = append(conds, "repository_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		conds = append(conds, "category = ?")
		args = append(args, v)
	}
	status := strings.TrimSpace(q.Get("status"))
	if status == "" {
		status = models.RecommendationActive
	}
	if status != "all" {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	var recs []models.Recommendation
	if err := gw.db.Select(r.Context(), &recs, query, args...); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	params := parsePaginationParams(r, 50, 200)
	writeJSON(w, http.StatusOK, paginate(recs, params))
}

func (gw *Gateway) handleRepoRecommendations(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	if _, err := gw.store.GetRepository(r.Context(), repoID); err != nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}
	recs, err := gw.store.GetActiveRecommendations(r.Context(), repoID,
		strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": recs, "total": len(recs)})
}

// handleDedupeRecommendations runs a deduplication pass. Safe to call at
// any time, repeated calls remove nothing new.
func (gw *Gateway) handleDedupeRecommendations(w http.ResponseWriter, r *http.Request) {
	dedup := analysis.NewDeduplicator(gw.store, slog.Default())

	repoID := strings.TrimSpace(r.URL.Query().Get("repository_id"))
	var (
		result *analysis.DedupeResult
		err    error
	)
	if repoID != "" {
		result, err = dedup.RunForRepository(r.Context(), repoID)
	} else {
		result, err = dedup.Run(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	gw.broadcaster.send(SSEEvent{Type: "recommendations.deduped", Payload: result})
	writeJSON(w, http.StatusOK, result)
}
