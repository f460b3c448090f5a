package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"price-monitor/internal/observability"
	"price-monitor/internal/sweep"
)

// sweeper is the part of the orchestrator the server drives.
type sweeper interface {
	TryRun(ctx context.Context) (*sweep.Report, error)
	Running() bool
}

// Server schedules sweeps and serves the HTTP surface.
type Server struct {
	sweeper  sweeper
	interval time.Duration
	logger   logrus.FieldLogger
	now      func() time.Time

	// in-flight on-demand and scheduled sweeps
	wg sync.WaitGroup

	// State
	mu         sync.Mutex
	ctx        context.Context // scheduler context, parent of on-demand sweeps
	started    time.Time
	lastSweep  *sweepSummary
	sweepRuns  int
	sweepSkips int
}

// sweepSummary is the last finished sweep as reported by /status.
type sweepSummary struct {
	SweepID        string    `json:"sweep_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Duration       string    `json:"duration"`
	Processed      int       `json:"processed"`
	Updated        int       `json:"updated"`
	ScrapeFailed   int       `json:"scrape_failed"`
	Notified       int       `json:"notified"`
	DispatchFailed int       `json:"dispatch_failed"`
	PersistFailed  int       `json:"persist_failed"`
	Cancelled      int       `json:"cancelled"`
	Error          string    `json:"error,omitempty"`
}

// NewServer creates a server that sweeps every interval.
func NewServer(s sweeper, interval time.Duration, logger *logrus.Logger) *Server {
	return &Server{
		sweeper:  s,
		interval: interval,
		logger:   logger.WithField("component", "scheduler"),
		now:      time.Now,
		started:  time.Now(),
	}
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithField("interval", s.interval.String()).Info("starting sweep scheduler")

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.sweep(ctx, "schedule")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx, "schedule")
		}
	}
}

// Wait blocks until on-demand sweeps have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// sweep runs one sweep unless another one is in progress.
func (s *Server) sweep(ctx context.Context, trigger string) {
	log := s.logger.WithField("trigger", trigger)

	report, err := s.sweeper.TryRun(ctx)
	if errors.Is(err, sweep.ErrSweepInProgress) {
		log.Warn("previous sweep still running, skipping")
		s.mu.Lock()
		s.sweepSkips++
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepRuns++

	if err != nil {
		log.WithError(err).Error("sweep failed")
		s.lastSweep = &sweepSummary{FinishedAt: s.now(), Error: err.Error()}
		return
	}
	s.lastSweep = summarize(report)
}

func summarize(r *sweep.Report) *sweepSummary {
	return &sweepSummary{
		SweepID:        r.SweepID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Duration:       r.Duration().String(),
		Processed:      r.Processed,
		Updated:        len(r.Updated()),
		ScrapeFailed:   r.ScrapeFailed,
		Notified:       r.Notified,
		DispatchFailed: r.DispatchFailed,
		PersistFailed:  r.PersistFailed,
		Cancelled:      r.Cancelled,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /sweep", s.handleSweep)

	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status       string        `json:"status"`
	Uptime       string        `json:"uptime"`
	Interval     string        `json:"interval"`
	SweepRunning bool          `json:"sweep_running"`
	SweepRuns    int           `json:"sweep_runs"`
	SweepSkips   int           `json:"sweep_skips"`
	LastSweep    *sweepSummary `json:"last_sweep,omitempty"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:       "running",
		Uptime:       s.now().Sub(s.started).Round(time.Second).String(),
		Interval:     s.interval.String(),
		SweepRunning: s.sweeper.Running(),
		SweepRuns:    s.sweepRuns,
		SweepSkips:   s.sweepSkips,
		LastSweep:    s.lastSweep,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handleSweep starts a sweep in the background. The sweep outlives the
// request and is cancelled with the scheduler.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper.Running() {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "already_running"})
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.WithoutCancel(r.Context())
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep(ctx, "http")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
