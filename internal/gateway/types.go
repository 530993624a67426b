package gateway

// SSEEvent is serialised as JSON and pushed over the GET /events SSE stream.
type SSEEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ScannerState mirrors the persisted automated scanner settings.
type ScannerState struct {
	ID              int64   `db:"id"               json:"-"`
	Enabled         bool    `db:"enabled"          json:"enabled"`
	IntervalMinutes int     `db:"interval_minutes" json:"interval_minutes"`
	LastRunAt       *string `db:"last_run_at"      json:"last_run_at,omitempty"`
}

// GatewayStatus is a live snapshot of the daemon state.
type GatewayStatus struct {
	Repositories   int    `json:"repositories"`
	QueuedJobs     int    `json:"queued_jobs"`
	RunningJobs    int    `json:"running_jobs"`
	ActiveRecs     int    `json:"active_recommendations"`
	ScannerEnabled bool   `json:"scanner_enabled"`
	BatchRunning   bool   `json:"batch_running"`
	LastScanAt     string `json:"last_scan_at,omitempty"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

// countRow is a convenience struct for SELECT COUNT(*) AS n queries.
type countRow struct {
	N int `db:"n"`
}
