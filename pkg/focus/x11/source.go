package x11

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"focusbeat/internal/models"
	"focusbeat/pkg/focus"
)

// Source reports focus changes on X11 by polling _NET_ACTIVE_WINDOW over
// a raw X connection. X11 has no push channel equivalent to Hyprland's
// event socket without subscribing to property events on every window, so
// a short poll interval is the pragmatic route.
type Source struct {
	logger   *slog.Logger
	conn     *xgb.Conn
	root     xproto.Window
	atoms    map[string]xproto.Atom
	interval time.Duration

	lastID    xproto.Window
	lastClass string
	lastTitle string
	primed    bool

	closed    chan struct{}
	closeOnce sync.Once
}

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// New connects to the X server and interns the atoms the poll loop needs.
func New(logger *slog.Logger, pollInterval time.Duration) (*Source, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "connecting to X server")
	}

	setup := xproto.Setup(conn)
	root := setup.DefaultScreen(conn).Root

	atoms := make(map[string]xproto.Atom, len(atomNames))
	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "interning atom %s", name)
		}
		atoms[name] = reply.Atom
	}

	if pollInterval <= 0 {
		pollInterval = 800 * time.Millisecond
	}

	s := &Source{
		logger:   logger,
		conn:     conn,
		root:     root,
		atoms:    atoms,
		interval: pollInterval,
		closed:   make(chan struct{}),
	}

	logger.Info("connected to X server", "poll_interval", pollInterval)
	return s, nil
}

func (s *Source) Name() string {
	return "x11"
}

func (s *Source) IsAvailable() bool {
	return Available()
}

// Available reports whether an X display is reachable from this process.
func Available() bool {
	return os.Getenv("DISPLAY") != ""
}

// Next polls until the focused window differs from the last observation.
// The first poll always produces an event so the pipeline learns the
// initial focus.
func (s *Source) Next(ctx context.Context) (*models.FocusEvent, error) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, focus.ErrClosed
		default:
		}

		ev, err := s.poll(time.Now())
		if err != nil {
			return nil, err
		}
		if ev != nil {
			return ev, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, focus.ErrClosed
		case <-ticker.C:
		}
	}
}

func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
	return nil
}

// poll reads the current focus and returns a FocusEvent when it changed,
// nil when it did not. A failure on the root window query means the X
// connection itself is gone and is returned as a terminal error; failures
// on the focused window's own properties are races with closing windows
// and are skipped.
func (s *Source) poll(now time.Time) (*models.FocusEvent, error) {
	id, err := s.activeWindow()
	if err != nil {
		return nil, errors.Wrap(err, "querying active window")
	}

	var class, title string
	if id != 0 {
		class = s.windowClass(id)
		title = s.windowTitle(id)
	}

	if s.primed && id == s.lastID && class == s.lastClass && title == s.lastTitle {
		return nil, nil
	}

	s.primed = true
	s.lastID = id
	s.lastClass = class
	s.lastTitle = title

	ev := &models.FocusEvent{
		WindowClass: class,
		Title:       title,
		ObservedAt:  now,
	}
	if id != 0 {
		ev.WindowID = fmt.Sprintf("0x%x", uint32(id))
	}
	return ev, nil
}

func (s *Source) activeWindow() (xproto.Window, error) {
	reply, err := xproto.GetProperty(s.conn, false, s.root,
		s.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 0, 1).Reply()
	if err != nil {
		return 0, err
	}
	if len(reply.Value) < 4 {
		return 0, nil
	}
	return xproto.Window(binary.LittleEndian.Uint32(reply.Value)), nil
}

func (s *Source) windowTitle(window xproto.Window) string {
	data, err := s.getProperty(window, s.atoms["_NET_WM_NAME"], s.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	data, err = s.getProperty(window, s.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	return ""
}

func (s *Source) windowClass(window xproto.Window) string {
	data, err := s.getProperty(window, s.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil {
		return ""
	}
	return classFromProperty(data)
}

// classFromProperty returns the class half of a WM_CLASS property
// (instance\0class\0), falling back to the instance when the class part
// is missing.
func classFromProperty(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	return parts[0]
}

func (s *Source) getProperty(window xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(s.conn, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}
