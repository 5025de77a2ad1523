package throttle

import (
	"testing"
	"time"

	"focusbeat/internal/models"
)

func TestGateFirstEventSends(t *testing.T) {
	g := New(120 * time.Second)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	d := g.Decide("nvim", now)
	if !d.Send {
		t.Fatal("first event should send")
	}
	if d.Reason != ReasonFocusChange {
		t.Errorf("Reason = %v, want %v", d.Reason, ReasonFocusChange)
	}

	entity, sentAt, ok := g.Last()
	if !ok {
		t.Fatal("Last() not recorded after send")
	}
	if entity != "nvim" {
		t.Errorf("last entity = %q, want %q", entity, "nvim")
	}
	if !sentAt.Equal(now) {
		t.Errorf("last sent at = %v, want %v", sentAt, now)
	}
}

func TestGateResendRules(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	steps := []struct {
		name       string
		at         time.Duration
		entity     models.Entity
		wantSend   bool
		wantReason Reason
	}{
		{"initial focus", 0, "nvim", true, ReasonFocusChange},
		{"same entity too soon", 60 * time.Second, "nvim", false, 0},
		{"same entity after interval", 121 * time.Second, "nvim", true, ReasonIntervalElapsed},
		{"focus change overrides cooldown", 125 * time.Second, "firefox", true, ReasonFocusChange},
		{"new entity too soon again", 126 * time.Second, "firefox", false, 0},
		{"switch back is still a focus change", 127 * time.Second, "nvim", true, ReasonFocusChange},
	}

	g := New(120 * time.Second)
	for _, step := range steps {
		d := g.Decide(step.entity, base.Add(step.at))
		if d.Send != step.wantSend {
			t.Fatalf("%s: Send = %v, want %v", step.name, d.Send, step.wantSend)
		}
		if d.Send && d.Reason != step.wantReason {
			t.Errorf("%s: Reason = %v, want %v", step.name, d.Reason, step.wantReason)
		}
	}
}

func TestGateAtMostOneSendUnderInterval(t *testing.T) {
	g := New(120 * time.Second)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	sends := 0
	// Same entity every 10s for just under the resend interval.
	for i := 0; i < 12; i++ {
		if g.Decide("nvim", base.Add(time.Duration(i)*10*time.Second)).Send {
			sends++
		}
	}
	if sends != 1 {
		t.Errorf("sends = %d, want 1 for same-entity events inside the interval", sends)
	}
}

func TestGateSuppressionLeavesStateUntouched(t *testing.T) {
	g := New(120 * time.Second)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	g.Decide("nvim", base)
	_, sentAt, _ := g.Last()

	if d := g.Decide("nvim", base.Add(30*time.Second)); d.Send {
		t.Fatal("event inside the interval should be suppressed")
	}

	entity, after, ok := g.Last()
	if !ok || entity != "nvim" || !after.Equal(sentAt) {
		t.Errorf("state changed on suppression: entity=%q sentAt=%v, want nvim %v", entity, after, sentAt)
	}
}

func TestGateConfiguredInterval(t *testing.T) {
	tests := []struct {
		name      string
		minResend time.Duration
		gap       time.Duration
		wantSend  bool
	}{
		{"just under", 30 * time.Second, 29 * time.Second, false},
		{"exactly at", 30 * time.Second, 30 * time.Second, true},
		{"just over", 30 * time.Second, 31 * time.Second, true},
		{"zero interval resends every event", 0, 0, true},
	}

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.minResend)
			g.Decide("kitty", base)
			d := g.Decide("kitty", base.Add(tt.gap))
			if d.Send != tt.wantSend {
				t.Errorf("Send = %v, want %v", d.Send, tt.wantSend)
			}
		})
	}
}

func TestGateLastSentAtMonotonic(t *testing.T) {
	g := New(time.Second)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	g.Decide("nvim", base)
	// A focus change with a stepped-back clock still sends but must not
	// move lastSentAt backwards.
	d := g.Decide("firefox", base.Add(-5*time.Second))
	if !d.Send {
		t.Fatal("focus change should send regardless of clock")
	}
	_, sentAt, _ := g.Last()
	if sentAt.Before(base) {
		t.Errorf("lastSentAt moved backwards to %v", sentAt)
	}
}

func TestReasonString(t *testing.T) {
	tests := []struct {
		reason Reason
		want   string
	}{
		{ReasonFocusChange, "focus-change"},
		{ReasonIntervalElapsed, "interval-elapsed"},
		{Reason(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("Reason(%d).String() = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func BenchmarkGateDecide(b *testing.B) {
	g := New(120 * time.Second)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Decide("nvim", base.Add(time.Duration(i)*time.Second))
	}
}
