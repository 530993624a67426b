package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/patternscope/patternscope/internal/database"
)

// Scheduler drives the automated fleet scanner: a single cron entry that
// fires every interval_minutes and kicks off a batch scan. State persists
// in the scanner_state row so the daemon resumes where it left off.
//
// inProgress guards scheduled runs only: a tick that lands while the
// previous scheduled scan is still running is skipped. Manually triggered
// scans never consult the flag, so an operator can always force a scan
// alongside the schedule.
type Scheduler struct {
	db        database.DB
	scanFn    func(ctx context.Context) // runs the batch scan
	broadcast func(SSEEvent)

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	state   ScannerState

	inProgress atomic.Bool
}

func newScheduler(db database.DB, scanFn func(ctx context.Context), broadcast func(SSEEvent)) *Scheduler {
	return &Scheduler{
		db:        db,
		scanFn:    scanFn,
		broadcast: broadcast,
		cron:      cron.New(),
	}
}

// Start loads persisted scanner state and, when enabled, registers the
// cron entry. The cron runner starts either way so Enable can register
// later without restarting.
func (s *Scheduler) Start(ctx context.Context, defaultIntervalMinutes int) error {
	state, err := s.loadState(ctx, defaultIntervalMinutes)
	if err != nil {
		return fmt.Errorf("loading scanner state: %w", err)
	}

	s.mu.Lock()
	s.state = *state
	s.mu.Unlock()

	if state.Enabled {
		if err := s.register(state.IntervalMinutes); err != nil {
			return err
		}
	}
	s.cron.Start()
	slog.Info("automated scanner initialised",
		"enabled", state.Enabled, "interval_minutes", state.IntervalMinutes)
	return nil
}

// Stop halts the cron runner gracefully.
func (s *Scheduler) Stop() { s.cron.Stop() }

// Enable turns the automated scanner on with the given interval and
// persists the setting. An interval of 0 keeps the stored one.
func (s *Scheduler) Enable(ctx context.Context, intervalMinutes int) error {
	s.mu.Lock()
	if intervalMinutes <= 0 {
		intervalMinutes = s.state.IntervalMinutes
	}
	s.state.Enabled = true
	s.state.IntervalMinutes = intervalMinutes
	s.mu.Unlock()

	if err := s.saveState(ctx); err != nil {
		return err
	}
	if err := s.register(intervalMinutes); err != nil {
		return err
	}
	s.broadcast(SSEEvent{Type: "scanner.enabled", Payload: map[string]int{"interval_minutes": intervalMinutes}})
	return nil
}

// Disable turns the automated scanner off. A batch scan already running
// finishes normally.
func (s *Scheduler) Disable(ctx context.Context) error {
	s.mu.Lock()
	s.state.Enabled = false
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}
	s.mu.Unlock()

	if err := s.saveState(ctx); err != nil {
		return err
	}
	s.broadcast(SSEEvent{Type: "scanner.disabled"})
	return nil
}

// State returns a snapshot of the persisted scanner settings.
func (s *Scheduler) State() ScannerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ScanInProgress reports whether a scheduled batch scan is running.
func (s *Scheduler) ScanInProgress() bool { return s.inProgress.Load() }

// register replaces the cron entry with one firing every intervalMinutes.
func (s *Scheduler) register(intervalMinutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}
	expr := fmt.Sprintf("@every %dm", intervalMinutes)
	id, err := s.cron.AddFunc(expr, s.tick)
	if err != nil {
		return fmt.Errorf("registering scanner schedule %q: %w", expr, err)
	}
	s.entryID = id
	return nil
}

// tick is the cron callback. Overlap protection applies here only.
func (s *Scheduler) tick() {
	if !s.inProgress.CompareAndSwap(false, true) {
		slog.Info("scheduled scan skipped, previous scan still running")
		s.broadcast(SSEEvent{Type: "scanner.tick_skipped"})
		return
	}
	defer s.inProgress.Store(false)

	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)

	s.mu.Lock()
	s.state.LastRunAt = &now
	s.mu.Unlock()
	if err := s.saveState(ctx); err != nil {
		slog.Warn("could not persist scanner last run", "error", err)
	}

	s.broadcast(SSEEvent{Type: "scanner.tick", Payload: map[string]string{"at": now}})
	s.scanFn(ctx)
}

func (s *Scheduler) loadState(ctx context.Context, defaultIntervalMinutes int) (*ScannerState, error) {
	var state ScannerState
	err := s.db.Get(ctx, &state,
		`SELECT id, enabled, interval_minutes, last_run_at FROM scanner_state WHERE id = 1`)
	if err == nil {
		return &state, nil
	}

	// First boot: seed the row disabled with the configured interval.
	if defaultIntervalMinutes <= 0 {
		defaultIntervalMinutes = 60
	}
	state = ScannerState{ID: 1, Enabled: false, IntervalMinutes: defaultIntervalMinutes}
	if err := s.db.Upsert(ctx, "scanner_state", &state, []string{"id"}); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Scheduler) saveState(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	state.ID = 1
	s.mu.Unlock()
	return s.db.Upsert(ctx, "scanner_state", &state, []string{"id"})
}
