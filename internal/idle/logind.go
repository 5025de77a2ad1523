package idle

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// lockers are screen-lock processes checked alongside logind's LockedHint;
// some compositor lockers never report through the session manager.
var lockers = []string{
	"swaylock",
	"waylock",
	"gtklock",
	"hyprlock",
	"gnome-screensaver-dialog",
}

// LogindProvider reads IdleHint and LockedHint from systemd-logind through
// loginctl. It is the default provider on anything systemd-based, which in
// practice means everywhere Hyprland runs.
type LogindProvider struct {
	sessionID string
}

// NewLogindProvider locates loginctl and a queryable session, trying the
// session from the environment first and logind's special names after.
func NewLogindProvider(ctx context.Context) (*LogindProvider, error) {
	if _, err := exec.LookPath("loginctl"); err != nil {
		return nil, errors.Wrap(err, "loginctl not found")
	}

	candidates := []string{os.Getenv("XDG_SESSION_ID"), "self", "auto"}
	var lastErr error
	for _, id := range candidates {
		if id == "" {
			continue
		}
		p := &LogindProvider{sessionID: id}
		if _, err := p.query(ctx); err == nil {
			return p, nil
		} else {
			lastErr = err
		}
	}
	return nil, errors.Wrap(lastErr, "no queryable logind session")
}

func (p *LogindProvider) Name() string {
	return "logind"
}

// Poll asks logind for both hints, then checks for running locker
// processes as a second lock signal. loginctl is queried first because its
// failure is what the monitor's hold-last-known handling keys on.
func (p *LogindProvider) Poll(ctx context.Context) (Status, error) {
	st, err := p.query(ctx)
	if err != nil {
		return Status{}, err
	}
	if !st.Locked && lockerRunning(ctx) {
		st.Locked = true
	}
	return st, nil
}

func (p *LogindProvider) query(ctx context.Context) (Status, error) {
	out, err := exec.CommandContext(ctx, "loginctl", "show-session", p.sessionID,
		"--property=IdleHint", "--property=LockedHint").Output()
	if err != nil {
		return Status{}, errors.Wrapf(err, "loginctl show-session %s", p.sessionID)
	}
	return parseShowSession(out)
}

func parseShowSession(out []byte) (Status, error) {
	var st Status
	seen := false
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "IdleHint":
			st.Idle = value == "yes"
			seen = true
		case "LockedHint":
			st.Locked = value == "yes"
			seen = true
		}
	}
	if !seen {
		return Status{}, errors.New("loginctl output carried no IdleHint or LockedHint")
	}
	return st, nil
}

func lockerRunning(ctx context.Context) bool {
	for _, locker := range lockers {
		if err := exec.CommandContext(ctx, "pgrep", "-x", locker).Run(); err == nil {
			return true
		}
	}
	return false
}
