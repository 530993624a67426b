package gateway

import (
	"encoding/json"
	"net/http"
)

func (gw *Gateway) handleScannerState(w http.ResponseWriter, r *http.Request) {
	state := gw.scheduler.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":          state.Enabled,
		"interval_minutes": state.IntervalMinutes,
		"last_run_at":      state.LastRunAt,
		"scan_in_progress": gw.scheduler.ScanInProgress(),
	})
}

func (gw *Gateway) handleScannerStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IntervalMinutes int `json:"interval_minutes"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if err := gw.scheduler.Enable(r.Context(), body.IntervalMinutes); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, gw.scheduler.State())
}

func (gw *Gateway) handleScannerStop(w http.ResponseWriter, r *http.Request) {
	if err := gw.scheduler.Disable(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, gw.scheduler.State())
}
