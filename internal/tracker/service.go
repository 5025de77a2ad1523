// Package tracker owns the daemon's event loop: it pulls normalized
// focus events from the backend, runs them through policy, idle gating
// and throttling, and hands emitted heartbeats to the dispatcher.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"focusbeat/internal/config"
	"focusbeat/internal/heartbeat"
	"focusbeat/internal/idle"
	"focusbeat/internal/journal"
	"focusbeat/internal/models"
	"focusbeat/internal/throttle"
	"focusbeat/pkg/focus"
)

// Dispatcher sends one heartbeat per call and never retries.
type Dispatcher interface {
	Dispatch(ctx context.Context, hb *models.Heartbeat) error
}

// Options carries per-run flags that are not part of the config file.
type Options struct {
	RunID        string
	PrintEvents  bool // mirror every normalized event to stdout
	Oneshot      bool // exit after OneshotCount normalized events
	OneshotCount int
}

// Service wires the pipeline together. One Service per process; Run owns
// the single goroutine all throttle state lives on.
type Service struct {
	cfg        *config.Config
	logger     *slog.Logger
	source     focus.Source
	monitor    *idle.Monitor
	gate       *throttle.Gate
	builder    *heartbeat.Builder
	dispatcher Dispatcher
	journal    *journal.Journal
	opts       Options

	// lastEvent and lastEntity mirror the gate's notion of the current
	// focus so the keep-alive tick can rebuild a heartbeat without a new
	// event. The mutex exists for Snapshot readers; the pipeline itself
	// is single-goroutine.
	mu         sync.RWMutex
	lastEvent  models.FocusEvent
	lastEntity models.Entity
	hasLast    bool
	startedAt  time.Time
	lastSentAt time.Time
	counters   counters
}

type counters struct {
	seen           uint64
	dropped        uint64
	suppressed     uint64
	sent           uint64
	dispatchErrors uint64
}

// New builds a Service. The gate and policy are derived from cfg here;
// the source, idle monitor and dispatcher are constructed by the caller.
func New(cfg *config.Config, logger *slog.Logger, src focus.Source, monitor *idle.Monitor,
	dispatcher Dispatcher, jrnl *journal.Journal, opts Options) *Service {
	return &Service{
		cfg:        cfg,
		logger:     logger,
		source:     src,
		monitor:    monitor,
		gate:       throttle.New(cfg.Heartbeat.MinEntityResend),
		builder:    heartbeat.NewBuilder(cfg, logger),
		dispatcher: dispatcher,
		journal:    jrnl,
		opts:       opts,
	}
}

// Run blocks until the context is cancelled, the source fails, or the
// oneshot budget is spent. Source failures are fatal by contract; the
// returned error says why the loop ended.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	go s.monitor.Run(ctx)

	events := make(chan models.FocusEvent)
	readErr := make(chan error, 1)
	go func() {
		for {
			ev, err := s.source.Next(ctx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case events <- *ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.Heartbeat.Interval)
	defer ticker.Stop()

	s.logger.Info("tracker started",
		"backend", s.source.Name(),
		"interval", s.cfg.Heartbeat.Interval,
		"min_entity_resend", s.cfg.Heartbeat.MinEntityResend)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("tracker stopped")
			return ctx.Err()

		case err := <-readErr:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.journal.Record(models.ComponentSource, "focus source failed", err.Error())
			return errors.Wrap(err, "focus source")

		case ev := <-events:
			if s.handleEvent(ctx, ev) {
				return nil
			}

		case <-ticker.C:
			s.keepAlive(ctx)
		}
	}
}

// handleEvent runs one normalized event through the pipeline and reports
// whether the oneshot budget is now spent.
func (s *Service) handleEvent(ctx context.Context, ev models.FocusEvent) bool {
	s.mu.Lock()
	s.counters.seen++
	seen := s.counters.seen
	s.mu.Unlock()

	if s.opts.PrintEvents {
		fmt.Printf("[focus] %s | class=%q title=%q window=%s\n",
			s.source.Name(), ev.WindowClass, ev.Title, ev.WindowID)
	}

	s.process(ctx, ev)

	if s.opts.Oneshot && seen >= uint64(s.opts.OneshotCount) {
		s.logger.Info("oneshot budget spent", "events", seen)
		return true
	}
	return false
}

func (s *Service) process(ctx context.Context, ev models.FocusEvent) {
	if ev.Empty() {
		s.logger.Debug("ignoring empty focus event")
		s.bumpDropped()
		return
	}
	if !s.builder.Allowed(ev.WindowClass) {
		s.bumpDropped()
		return
	}

	entity := s.builder.Entity(ev)

	// Idle is checked before the gate so suppression while idle leaves
	// throttle state untouched.
	if s.monitor.IsIdle() {
		s.logger.Debug("session idle, holding heartbeat", "entity", entity)
		return
	}

	now := time.Now()
	decision := s.gate.Decide(entity, now)
	if !decision.Send {
		s.logger.Debug("heartbeat throttled", "entity", entity)
		s.mu.Lock()
		s.counters.suppressed++
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.lastEvent = ev
	s.lastEntity = entity
	s.hasLast = true
	s.mu.Unlock()

	s.emit(ctx, ev, entity, decision.Reason, now)
}

// keepAlive re-submits the current focus through the same decision
// function, so a long unbroken focus still reports activity.
func (s *Service) keepAlive(ctx context.Context) {
	s.mu.RLock()
	ev, entity, ok := s.lastEvent, s.lastEntity, s.hasLast
	s.mu.RUnlock()
	if !ok {
		return
	}
	if s.monitor.IsIdle() {
		s.logger.Debug("session idle, skipping keep-alive")
		return
	}

	now := time.Now()
	decision := s.gate.Decide(entity, now)
	if !decision.Send {
		return
	}
	s.emit(ctx, ev, entity, decision.Reason, now)
}

func (s *Service) emit(ctx context.Context, ev models.FocusEvent, entity models.Entity, reason throttle.Reason, now time.Time) {
	hb := s.builder.Build(ev, entity, now)
	s.logger.Debug("emitting heartbeat",
		"entity", entity, "category", hb.Category, "reason", reason.String())

	err := s.dispatcher.Dispatch(ctx, hb)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.counters.dispatchErrors++
		return
	}
	s.counters.sent++
	s.lastSentAt = now
}

func (s *Service) bumpDropped() {
	s.mu.Lock()
	s.counters.dropped++
	s.mu.Unlock()
}

// Snapshot is a point-in-time view of the running tracker, served by the
// status API and the status command.
type Snapshot struct {
	RunID          string     `json:"run_id"`
	StartedAt      time.Time  `json:"started_at"`
	Backend        string     `json:"backend"`
	DryRun         bool       `json:"dry_run"`
	EventsSeen     uint64     `json:"events_seen"`
	EventsDropped  uint64     `json:"events_dropped"`
	Suppressed     uint64     `json:"suppressed"`
	HeartbeatsSent uint64     `json:"heartbeats_sent"`
	DispatchErrors uint64     `json:"dispatch_errors"`
	LastEntity     string     `json:"last_entity,omitempty"`
	LastSentAt     *time.Time `json:"last_sent_at,omitempty"`
	IdleGate       bool       `json:"idle_gate_enabled"`
	Idle           bool       `json:"idle"`
}

// Snapshot may be called from any goroutine.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		RunID:          s.opts.RunID,
		StartedAt:      s.startedAt,
		Backend:        s.source.Name(),
		DryRun:         s.cfg.WakaTime.DryRun,
		EventsSeen:     s.counters.seen,
		EventsDropped:  s.counters.dropped,
		Suppressed:     s.counters.suppressed,
		HeartbeatsSent: s.counters.sent,
		DispatchErrors: s.counters.dispatchErrors,
		IdleGate:       s.monitor.Enabled(),
		Idle:           s.monitor.IsIdle(),
	}
	if s.hasLast {
		snap.LastEntity = string(s.lastEntity)
	}
	if !s.lastSentAt.IsZero() {
		t := s.lastSentAt
		snap.LastSentAt = &t
	}
	return snap
}
