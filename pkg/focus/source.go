package focus

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"focusbeat/internal/models"
)

// ErrClosed is returned by Next after the source has been closed.
var ErrClosed = errors.New("focus source closed")

// Source is the interface every focus backend implements. A backend turns
// its native notification protocol into normalized FocusEvents; everything
// downstream (throttling, policy, dispatch) is backend-agnostic.
type Source interface {
	// Next blocks until the backend reports the next focus change, the
	// context is cancelled, or the connection fails. Connection failures
	// are terminal: callers must not retry Next after a non-nil error
	// other than context cancellation.
	Next(ctx context.Context) (*models.FocusEvent, error)

	// Name identifies the backend ("hyprland", "x11").
	Name() string

	// IsAvailable checks if this backend can run on the current system.
	IsAvailable() bool

	// Close releases the backend connection. Next unblocks with ErrClosed.
	Close() error
}

// SplitEventLine splits one line-oriented notification of the form
// "EVENTNAME>>payload". The payload keeps any later ">>" verbatim.
func SplitEventLine(line string) (name, payload string, ok bool) {
	name, payload, ok = strings.Cut(line, ">>")
	if !ok || name == "" {
		return "", "", false
	}
	return name, payload, true
}
