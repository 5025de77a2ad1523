// Package throttle decides when a focus event becomes a heartbeat. It is
// a pure state machine over entities and wall-clock time; idle gating and
// dispatch live elsewhere.
package throttle

import (
	"time"

	"focusbeat/internal/models"
)

// Reason says which rule let a heartbeat through. The two triggers are
// observable behavior: a focus change always sends, an unchanged focus
// resends only after the resend interval.
type Reason int

const (
	ReasonFocusChange Reason = iota
	ReasonIntervalElapsed
)

func (r Reason) String() string {
	switch r {
	case ReasonFocusChange:
		return "focus-change"
	case ReasonIntervalElapsed:
		return "interval-elapsed"
	default:
		return "unknown"
	}
}

// Decision is the outcome for one event. Reason is meaningful only when
// Send is true.
type Decision struct {
	Send   bool
	Reason Reason
}

// Gate holds the throttle state: the last entity a heartbeat was sent for
// and when. It has a single owner (the pipeline goroutine) and needs no
// locking.
type Gate struct {
	minResend time.Duration

	lastEntity models.Entity
	lastSentAt time.Time
	hasSent    bool
}

// New returns a gate that lets an unchanged entity resend only after
// minResend has elapsed.
func New(minResend time.Duration) *Gate {
	return &Gate{minResend: minResend}
}

// Decide applies the throttle rules to an entity observed at now and
// updates the gate state when the answer is send. Suppressed events leave
// the state untouched.
//
// Rules, in order: nothing sent yet or the entity changed sends
// immediately; the same entity sends again once minResend has elapsed;
// anything else is suppressed.
func (g *Gate) Decide(entity models.Entity, now time.Time) Decision {
	if !g.hasSent || entity != g.lastEntity {
		g.markSent(entity, now)
		return Decision{Send: true, Reason: ReasonFocusChange}
	}

	if now.Sub(g.lastSentAt) >= g.minResend {
		g.markSent(entity, now)
		return Decision{Send: true, Reason: ReasonIntervalElapsed}
	}

	return Decision{}
}

func (g *Gate) markSent(entity models.Entity, now time.Time) {
	g.lastEntity = entity
	// The wall clock can step backwards; lastSentAt must not.
	if !g.hasSent || now.After(g.lastSentAt) {
		g.lastSentAt = now
	}
	g.hasSent = true
}

// Last reports the most recent send, for status output. ok is false until
// the first heartbeat goes out.
func (g *Gate) Last() (entity models.Entity, sentAt time.Time, ok bool) {
	return g.lastEntity, g.lastSentAt, g.hasSent
}
