// Package backends selects and constructs concrete focus sources. It is
// the only package that knows every backend; the pipeline itself depends
// on the focus.Source interface alone.
package backends

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"focusbeat/pkg/focus"
	"focusbeat/pkg/focus/hyprland"
	"focusbeat/pkg/focus/x11"
)

// Options carries the backend-specific knobs from configuration.
type Options struct {
	X11PollInterval time.Duration
}

// New builds the focus source named by backend. "auto" picks from the
// session environment: a Hyprland instance signature wins, then the
// session type. A backend that cannot connect is an error, not a
// fallback; the daemon would rather die loudly than silently track
// nothing.
func New(backend string, logger *slog.Logger, opts Options) (focus.Source, error) {
	switch backend {
	case focus.BackendHyprland:
		return hyprland.New(logger)
	case focus.BackendX11:
		return x11.New(logger, opts.X11PollInterval)
	case focus.BackendAuto, "":
		return autoSource(logger, opts)
	default:
		return nil, errors.Errorf("unknown focus backend: %q", backend)
	}
}

func autoSource(logger *slog.Logger, opts Options) (focus.Source, error) {
	if hyprland.Available() {
		return hyprland.New(logger)
	}

	switch focus.DetectDisplayServer() {
	case "wayland":
		// The only wayland compositor with a supported event channel.
		return hyprland.New(logger)
	case "x11":
		return x11.New(logger, opts.X11PollInterval)
	}
	return nil, errors.New("could not detect a display server (no XDG_SESSION_TYPE, WAYLAND_DISPLAY or DISPLAY)")
}
