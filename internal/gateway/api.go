package gateway

import (
	"net/http"
)

// buildHandler wires all REST and SSE routes onto a new ServeMux.
// Uses Go 1.22+ method-prefixed patterns ("GET /path", "POST /path").
func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	// Health / status
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /api/status", gw.handleStatus)

	// Repositories and analysis
	mux.HandleFunc("GET /api/repositories", gw.handleListRepositories)
	mux.HandleFunc("GET /api/repositories/{id}", gw.handleGetRepository)
	mux.HandleFunc("POST /api/repositories/{id}/analyze", gw.handleAnalyze)
	mux.HandleFunc("GET /api/repositories/{id}/status", gw.handleAnalysisStatus)
	mux.HandleFunc("GET /api/repositories/{id}/recommendations", gw.handleRepoRecommendations)
	mux.HandleFunc("POST /api/repositories/scan-all", gw.handleScanAll)
	mux.HandleFunc("GET /api/repositories/scan-all/report", gw.handleScanAllReport)
	mux.HandleFunc("POST /api/repositories/{owner}/{repo}/refresh", gw.handleRefreshRepository)

	// Analysis jobs
	mux.HandleFunc("GET /api/jobs", gw.handleListJobs)
	mux.HandleFunc("GET /api/jobs/summary", gw.handleJobsSummary)
	mux.HandleFunc("GET /api/jobs/{id}", gw.handleGetJob)

	// Recommendations
	mux.HandleFunc("GET /api/recommendations", gw.handleListRecommendations)
	mux.HandleFunc("POST /api/recommendations/dedupe", gw.handleDedupeRecommendations)

	// Automated scanner controls
	mux.HandleFunc("GET /api/scanner", gw.handleScannerState)
	mux.HandleFunc("POST /api/scanner/start", gw.handleScannerStart)
	mux.HandleFunc("POST /api/scanner/stop", gw.handleScannerStop)

	// Live event stream
	mux.HandleFunc("GET /events", gw.handleEvents)

	return mux
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := gw.db.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gw.currentStatus(r.Context()))
}

// handleEvents is the SSE endpoint dashboards subscribe to.
func (gw *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := gw.broadcaster.subscribe()
	defer gw.broadcaster.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-ch:
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
