package hyprland

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"focusbeat/internal/models"
	"focusbeat/pkg/focus"
)

const (
	eventActiveWindow   = "activewindow"
	eventActiveWindowV2 = "activewindowv2"
)

// Source streams focus changes from Hyprland's event socket (socket2).
// The socket speaks a line protocol, one "EVENT>>payload" per line, pushed
// by the compositor as things happen; no polling is involved.
type Source struct {
	logger *slog.Logger
	conn   net.Conn

	events  chan models.FocusEvent
	done    chan struct{}
	readErr error

	closeOnce sync.Once
}

// SocketPath resolves the event socket for the running Hyprland instance.
// It prefers HYPRLAND_INSTANCE_SIGNATURE and falls back to globbing the
// runtime directory when the signature is not exported (e.g. when running
// from a systemd user unit without the compositor's environment).
func SocketPath() (string, error) {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}

	if sig := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE"); sig != "" {
		return filepath.Join(runtimeDir, "hypr", sig, ".socket2.sock"), nil
	}

	pattern := filepath.Join(runtimeDir, "hypr", "*", ".socket2.sock")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", errors.Wrap(err, "globbing for hyprland socket")
	}
	if len(matches) == 0 {
		return "", errors.Errorf("no hyprland instance found under %s", filepath.Join(runtimeDir, "hypr"))
	}

	// Multiple instances: take the most recently started one.
	best := matches[0]
	var bestTime time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.ModTime().After(bestTime) {
			best = m
			bestTime = info.ModTime()
		}
	}
	return best, nil
}

// New connects to the Hyprland event socket and starts reading. A failed
// connection is returned as an error; reconnect policy belongs to whoever
// supervises the daemon, not here.
func New(logger *slog.Logger) (*Source, error) {
	path, err := SocketPath()
	if err != nil {
		return nil, errors.Wrap(err, "resolving hyprland socket")
	}

	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to hyprland socket %s", path)
	}

	s := &Source{
		logger: logger,
		conn:   conn,
		events: make(chan models.FocusEvent, 32),
		done:   make(chan struct{}),
	}

	logger.Info("connected to hyprland event socket", "path", path)
	go s.readLoop()
	return s, nil
}

func (s *Source) Name() string {
	return "hyprland"
}

// IsAvailable reports whether a Hyprland event socket exists on this system.
func (s *Source) IsAvailable() bool {
	return Available()
}

// Available checks for a reachable Hyprland event socket without connecting.
func Available() bool {
	path, err := SocketPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Next returns the next normalized focus event. It returns ErrClosed after
// Close, and a terminal error if the compositor hangs up or the read fails.
func (s *Source) Next(ctx context.Context) (*models.FocusEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			if s.readErr != nil {
				return nil, s.readErr
			}
			return nil, focus.ErrClosed
		}
		return &ev, nil
	}
}

func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *Source) readLoop() {
	defer close(s.events)

	p := &parser{logger: s.logger}
	scanner := bufio.NewScanner(s.conn)
	// Window titles can get long; the default 64K token limit is fine but
	// start with a roomier initial buffer than bufio's 4K.
	scanner.Buffer(make([]byte, 0, 16*1024), 256*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ev, ok := p.parse(line, time.Now())
		if !ok {
			continue
		}
		select {
		case s.events <- *ev:
		case <-s.done:
			return
		}
	}

	select {
	case <-s.done:
		return
	default:
	}

	if err := scanner.Err(); err != nil {
		s.readErr = errors.Wrap(err, "reading hyprland socket")
	} else {
		s.readErr = errors.New("hyprland socket closed by compositor")
	}
}

// parser turns socket2 lines into focus events. It carries the last window
// address seen on activewindowv2 so events can be correlated with the
// compositor's own window identity.
type parser struct {
	logger   *slog.Logger
	lastAddr string
}

func (p *parser) parse(line string, now time.Time) (*models.FocusEvent, bool) {
	name, payload, ok := focus.SplitEventLine(line)
	if !ok {
		p.logger.Warn("dropping malformed focus event line", "line", line)
		return nil, false
	}

	switch name {
	case eventActiveWindowV2:
		p.lastAddr = payload
		return nil, false
	case eventActiveWindow:
		class, title := splitActiveWindow(payload)
		return &models.FocusEvent{
			WindowClass: class,
			Title:       title,
			WindowID:    p.lastAddr,
			ObservedAt:  now,
		}, true
	default:
		// Workspace changes, monitor events and the rest are not ours.
		return nil, false
	}
}

// splitActiveWindow splits an activewindow payload "class,title" on the
// first comma only. The title is the remainder of the line verbatim, so
// commas inside titles survive.
func splitActiveWindow(payload string) (class, title string) {
	class, title, found := strings.Cut(payload, ",")
	if !found {
		return payload, ""
	}
	return class, title
}
