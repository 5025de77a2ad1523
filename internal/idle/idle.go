// Package idle tracks whether the session is idle or locked so the
// pipeline can hold heartbeats back. A background task polls the provider
// on a fixed interval; the event path only ever reads the cached state.
package idle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"focusbeat/internal/journal"
	"focusbeat/internal/models"
)

// escalateEvery is how many consecutive poll failures produce one warning.
// At the default 10s check interval that is one warning per minute of
// outage.
const escalateEvery = 6

// Status is one answer from a provider. Locked sessions count as idle for
// gating purposes.
type Status struct {
	Idle   bool
	Locked bool
}

// Provider answers idle queries. Implementations talk to whatever the
// host session manager is; the monitor never cares which.
type Provider interface {
	Poll(ctx context.Context) (Status, error)
	Name() string
}

// State is the monitor's cached view plus when it was last refreshed.
type State struct {
	Idle      bool
	Locked    bool
	CheckedAt time.Time
}

// Monitor owns the poll loop and the shared idle state. One goroutine
// writes (Run), the pipeline reads (IsIdle); the mutex is the only
// coordination either side needs.
type Monitor struct {
	logger   *slog.Logger
	provider Provider
	interval time.Duration
	journal  *journal.Journal

	mu    sync.RWMutex
	state State

	failures int // consecutive poll failures, touched only by Run
}

// NewMonitor builds a monitor polling provider every interval. A nil
// provider disables gating entirely: IsIdle is then always false, which
// over-reports activity but never silently drops it.
func NewMonitor(provider Provider, interval time.Duration, logger *slog.Logger, jr *journal.Journal) *Monitor {
	return &Monitor{
		logger:   logger,
		provider: provider,
		interval: interval,
		journal:  jr,
	}
}

// Run polls until the context is cancelled. The first poll happens
// immediately so the pipeline never starts against zero-value state.
func (m *Monitor) Run(ctx context.Context) {
	if m.provider == nil {
		m.logger.Warn("idle detection disabled, heartbeats will not be gated")
		return
	}

	m.logger.Info("idle monitor starting", "provider", m.provider.Name(), "interval", m.interval)
	m.poll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	st, err := m.provider.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Hold the last known state rather than assuming active; a
		// transient logind outage must not turn into reported activity.
		m.failures++
		m.logger.Debug("idle poll failed", "error", err, "consecutive", m.failures)
		if m.failures%escalateEvery == 0 {
			m.logger.Warn("idle provider unreachable, holding last known state",
				"consecutive_failures", m.failures, "error", err)
			m.journal.Record(models.ComponentIdle, "idle provider unreachable", err.Error())
		}
		return
	}
	m.failures = 0

	m.mu.Lock()
	prev := m.state
	m.state = State{Idle: st.Idle, Locked: st.Locked, CheckedAt: time.Now()}
	cur := m.state
	m.mu.Unlock()

	if gated(prev) != gated(cur) {
		if gated(cur) {
			m.logger.Info("session idle, gating heartbeats", "locked", cur.Locked)
		} else {
			m.logger.Info("session active again")
		}
	}
}

func gated(s State) bool {
	return s.Idle || s.Locked
}

// IsIdle is the pipeline's gate check. Locked counts as idle.
func (m *Monitor) IsIdle() bool {
	if m.provider == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Idle || m.state.Locked
}

// Enabled reports whether a provider is attached.
func (m *Monitor) Enabled() bool {
	return m.provider != nil
}

// State returns a copy of the cached state for status output.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
