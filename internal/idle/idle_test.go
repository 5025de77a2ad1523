package idle

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

type fakeProvider struct {
	mu      sync.Mutex
	results []fakeResult
	calls   int
}

type fakeResult struct {
	status Status
	err    error
}

func (f *fakeProvider) Poll(ctx context.Context) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.results) {
		return Status{}, errors.New("no scripted result")
	}
	r := f.results[f.calls]
	f.calls++
	return r.status, r.err
}

func (f *fakeProvider) Name() string { return "fake" }

// warnCounter is an slog handler that records warning messages.
type warnCounter struct {
	mu    sync.Mutex
	warns []string
}

func (c *warnCounter) Enabled(context.Context, slog.Level) bool { return true }

func (c *warnCounter) Handle(_ context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		c.mu.Lock()
		c.warns = append(c.warns, r.Message)
		c.mu.Unlock()
	}
	return nil
}

func (c *warnCounter) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *warnCounter) WithGroup(string) slog.Handler      { return c }

func (c *warnCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.warns)
}

func discardLogger() *slog.Logger {
	return slog.New(&warnCounter{})
}

func TestMonitorIdleAndLockedGate(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		wantIdle bool
	}{
		{"active session", Status{}, false},
		{"idle hint", Status{Idle: true}, true},
		{"locked counts as idle", Status{Locked: true}, true},
		{"idle and locked", Status{Idle: true, Locked: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{results: []fakeResult{{status: tt.status}}}
			m := NewMonitor(p, time.Second, discardLogger(), nil)
			m.poll(context.Background())
			if got := m.IsIdle(); got != tt.wantIdle {
				t.Errorf("IsIdle() = %v, want %v", got, tt.wantIdle)
			}
		})
	}
}

func TestMonitorHoldsLastKnownOnFailure(t *testing.T) {
	p := &fakeProvider{results: []fakeResult{
		{status: Status{Idle: true}},
		{err: errors.New("logind went away")},
		{err: errors.New("logind went away")},
	}}
	m := NewMonitor(p, time.Second, discardLogger(), nil)
	ctx := context.Background()

	m.poll(ctx)
	if !m.IsIdle() {
		t.Fatal("expected idle after successful poll")
	}

	m.poll(ctx)
	m.poll(ctx)
	if !m.IsIdle() {
		t.Error("failure polls must hold the last known idle state, not reset it")
	}
}

func TestMonitorFailureEscalation(t *testing.T) {
	results := make([]fakeResult, 0, 2*escalateEvery)
	for i := 0; i < 2*escalateEvery; i++ {
		results = append(results, fakeResult{err: errors.New("unreachable")})
	}
	p := &fakeProvider{results: results}

	counter := &warnCounter{}
	m := NewMonitor(p, time.Second, slog.New(counter), nil)
	ctx := context.Background()

	for i := 0; i < escalateEvery-1; i++ {
		m.poll(ctx)
	}
	if got := counter.count(); got != 0 {
		t.Fatalf("warnings before threshold = %d, want 0", got)
	}

	m.poll(ctx)
	if got := counter.count(); got != 1 {
		t.Fatalf("warnings at threshold = %d, want 1", got)
	}

	for i := 0; i < escalateEvery; i++ {
		m.poll(ctx)
	}
	if got := counter.count(); got != 2 {
		t.Errorf("warnings after second round = %d, want 2", got)
	}
}

func TestMonitorFailureCountResetsOnSuccess(t *testing.T) {
	p := &fakeProvider{results: []fakeResult{
		{err: errors.New("down")},
		{err: errors.New("down")},
		{status: Status{}},
	}}
	m := NewMonitor(p, time.Second, discardLogger(), nil)
	ctx := context.Background()

	m.poll(ctx)
	m.poll(ctx)
	if m.failures != 2 {
		t.Fatalf("failures = %d, want 2", m.failures)
	}
	m.poll(ctx)
	if m.failures != 0 {
		t.Errorf("failures after success = %d, want 0", m.failures)
	}
}

func TestMonitorDisabledWithoutProvider(t *testing.T) {
	m := NewMonitor(nil, time.Second, discardLogger(), nil)
	if m.Enabled() {
		t.Error("Enabled() = true without provider")
	}
	if m.IsIdle() {
		t.Error("disabled monitor must report not idle")
	}

	// Run must return immediately rather than ticking.
	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return for a disabled monitor")
	}
}

func TestMonitorStateCheckedAt(t *testing.T) {
	p := &fakeProvider{results: []fakeResult{
		{status: Status{Idle: true}},
		{err: errors.New("down")},
	}}
	m := NewMonitor(p, time.Second, discardLogger(), nil)
	ctx := context.Background()

	m.poll(ctx)
	first := m.State()
	if first.CheckedAt.IsZero() {
		t.Fatal("CheckedAt not set after successful poll")
	}

	m.poll(ctx)
	if got := m.State().CheckedAt; !got.Equal(first.CheckedAt) {
		t.Errorf("CheckedAt advanced on failed poll: %v -> %v", first.CheckedAt, got)
	}
}

func TestParseShowSession(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    Status
		wantErr bool
	}{
		{
			name:   "active unlocked",
			output: "IdleHint=no\nLockedHint=no\n",
			want:   Status{},
		},
		{
			name:   "idle",
			output: "IdleHint=yes\nLockedHint=no\n",
			want:   Status{Idle: true},
		},
		{
			name:   "locked",
			output: "IdleHint=no\nLockedHint=yes\n",
			want:   Status{Locked: true},
		},
		{
			name:   "extra properties ignored",
			output: "Id=3\nIdleHint=yes\nLockedHint=yes\nName=hugo\n",
			want:   Status{Idle: true, Locked: true},
		},
		{
			name:   "surrounding whitespace",
			output: "  IdleHint=no  \n  LockedHint=no  \n",
			want:   Status{},
		},
		{
			name:    "no hints at all",
			output:  "Id=3\nName=hugo\n",
			wantErr: true,
		},
		{
			name:    "empty output",
			output:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseShowSession([]byte(tt.output))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseShowSession: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseShowSession = %+v, want %+v", got, tt.want)
			}
		})
	}
}
