// Package dispatch invokes wakatime-cli, one attempt per emitted
// heartbeat.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"focusbeat/internal/config"
	"focusbeat/internal/journal"
	"focusbeat/internal/models"
	"focusbeat/internal/version"
)

// escalateEvery is the consecutive-failure count at which the dispatcher
// raises a repeated-failures warning on top of the per-failure log.
const escalateEvery = 10

// Dispatcher runs wakatime-cli for each heartbeat handed to it. It never
// retries; throttling decides when the next attempt happens. Not safe
// for concurrent use, the tracker owns it on a single goroutine.
type Dispatcher struct {
	logger  *slog.Logger
	journal *journal.Journal

	cliPath    string
	configPath string
	dryRun     bool

	failures int
}

// New resolves the wakatime-cli binary and returns a ready dispatcher.
// Discovery runs even under dry-run so a broken install surfaces early.
func New(cfg *config.Config, logger *slog.Logger, jrnl *journal.Journal) (*Dispatcher, error) {
	cliPath, err := findCLI(cfg.WakaTime.CLIPath)
	if err != nil {
		return nil, err
	}
	logger.Info("using wakatime-cli", "path", cliPath)

	return &Dispatcher{
		logger:     logger,
		journal:    jrnl,
		cliPath:    cliPath,
		configPath: cfg.WakaTime.ConfigPath,
		dryRun:     cfg.WakaTime.DryRun,
	}, nil
}

// Dispatch sends one heartbeat. A non-nil error means this invocation
// failed; the failure accounting has already happened here and the
// caller moves on to the next event either way.
func (d *Dispatcher) Dispatch(ctx context.Context, hb *models.Heartbeat) error {
	args := d.buildArgs(hb)

	if d.dryRun {
		d.logger.Info("dry run, would execute",
			"command", d.cliPath+" "+strings.Join(args, " "))
		return nil
	}

	d.logger.Debug("sending heartbeat", "entity", hb.Entity, "category", hb.Category)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.cliPath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		d.recordFailure(err, strings.TrimSpace(stderr.String()))
		return errors.Wrap(err, "wakatime-cli invocation")
	}

	d.failures = 0
	return nil
}

// Failures returns the current consecutive-failure count.
func (d *Dispatcher) Failures() int {
	return d.failures
}

func (d *Dispatcher) buildArgs(hb *models.Heartbeat) []string {
	args := []string{
		"--entity-type", "app",
		"--entity", string(hb.Entity),
		"--category", string(hb.Category),
		"--time", strconv.FormatInt(hb.Time.Unix(), 10),
		"--plugin", version.Plugin(),
	}
	if d.configPath != "" {
		args = append(args, "--config", d.configPath)
	}
	if hb.Project != "" {
		args = append(args, "--project", hb.Project)
	}
	return args
}

// recordFailure counts spawn failures and non-zero exits alike so the
// escalation threshold is reachable no matter how the tool fails.
func (d *Dispatcher) recordFailure(err error, stderr string) {
	d.failures++
	d.logger.Error("wakatime-cli failed",
		"error", err, "stderr", stderr, "consecutive", d.failures)

	if d.failures%escalateEvery != 0 {
		return
	}
	d.logger.Warn("wakatime-cli keeps failing, check credentials and network",
		"consecutive", d.failures)
	detail := stderr
	if detail == "" {
		detail = err.Error()
	}
	d.journal.Record(models.ComponentDispatch,
		fmt.Sprintf("%d consecutive wakatime-cli failures", d.failures), detail)
}

// findCLI resolves the wakatime-cli binary: explicit path, then $PATH,
// then the ~/.wakatime directory the official installer drops its
// platform-suffixed binaries into.
func findCLI(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", errors.Wrapf(err, "configured wakatime-cli path %s", configured)
		}
		return configured, nil
	}

	if path, err := exec.LookPath("wakatime-cli"); err == nil {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("wakatime-cli not in PATH and home directory unknown")
	}
	dir := filepath.Join(home, ".wakatime")

	exact := filepath.Join(dir, "wakatime-cli")
	if info, err := os.Stat(exact); err == nil && info.Mode().IsRegular() {
		return exact, nil
	}

	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasPrefix(name, "wakatime-cli") || strings.HasSuffix(name, ".zip") {
				continue
			}
			if entry.Type().IsRegular() {
				return filepath.Join(dir, name), nil
			}
		}
	}

	return "", errors.New("wakatime-cli not found, install it or set wakatime.cli_path")
}
