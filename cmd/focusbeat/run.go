package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"focusbeat/internal/config"
	"focusbeat/internal/daemon"
	"focusbeat/internal/dispatch"
	"focusbeat/internal/idle"
	"focusbeat/internal/journal"
	"focusbeat/internal/tracker"
	"focusbeat/internal/version"
	"focusbeat/internal/web"
	"focusbeat/pkg/focus/backends"
)

// daemonChildEnv marks the forked child so the run command knows it is
// the detached process rather than the parent about to fork.
const daemonChildEnv = "FOCUSBEAT_DAEMON_CHILD"

func runCmd() *cobra.Command {
	var (
		detach       bool
		dryRun       bool
		printEvents  bool
		oneshot      bool
		oneshotCount int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the focus tracker",
		Long: `Runs the tracking pipeline in the foreground, or detached with -d.
--oneshot processes a fixed number of focus events and exits, which is
the quickest way to verify a setup end to end (combine with --dry-run
to keep wakatime-cli out of it).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.WakaTime.DryRun = dryRun
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if oneshot && detach {
				return errors.New("--oneshot runs in the foreground, drop -d")
			}

			dm := daemon.New(cfg.Daemon.PIDFile)
			if !oneshot {
				running, pid, err := dm.IsRunning()
				if err != nil {
					return err
				}
				if running {
					return errors.Errorf("focusbeat is already running (PID %d)", pid)
				}
			}

			if detach && os.Getenv(daemonChildEnv) != "1" {
				return daemonize()
			}

			opts := tracker.Options{
				RunID:        newRunID(),
				PrintEvents:  printEvents,
				Oneshot:      oneshot,
				OneshotCount: oneshotCount,
			}
			return runTracker(cfg, dm, opts, os.Getenv(daemonChildEnv) == "1")
		},
	}
	cmd.Flags().BoolVarP(&detach, "daemon", "d", false, "detach and run in the background")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log heartbeats instead of invoking wakatime-cli")
	cmd.Flags().BoolVar(&printEvents, "print-events", false, "print every focus event to stdout")
	cmd.Flags().BoolVar(&oneshot, "oneshot", false, "process a fixed number of events, then exit")
	cmd.Flags().IntVar(&oneshotCount, "oneshot-count", 5, "events to process with --oneshot")
	return cmd
}

func runTracker(cfg *config.Config, dm *daemon.Daemon, opts tracker.Options, daemonized bool) error {
	logOut := io.Writer(os.Stderr)
	if daemonized {
		f, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, "opening log file")
		}
		defer f.Close()
		logOut = f
	}
	// Every log line from one daemon lifetime carries its run ID.
	logger := setupLogger(cfg.Daemon.LogLevel, logOut).With("run_id", opts.RunID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jrnl, err := journal.Open(cfg.Daemon.JournalPath, opts.RunID, logger)
	if err != nil {
		logger.Warn("journal disabled", "error", err)
		jrnl = nil
	} else {
		defer jrnl.Close()
	}

	src, err := backends.New(cfg.Source.Backend, logger, backends.Options{
		X11PollInterval: cfg.Source.X11PollInterval,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	var provider idle.Provider
	if p, err := idle.NewLogindProvider(ctx); err != nil {
		logger.Warn("idle detection unavailable", "error", err)
	} else {
		provider = p
	}
	monitor := idle.NewMonitor(provider, cfg.Idle.CheckInterval, logger, jrnl)

	dispatcher, err := dispatch.New(cfg, logger, jrnl)
	if err != nil {
		return err
	}

	svc := tracker.New(cfg, logger, src, monitor, dispatcher, jrnl, opts)

	var srv *web.Server
	if cfg.Daemon.StatusAddr != "" {
		srv = web.NewServer(cfg.Daemon.StatusAddr, svc, jrnl, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
	}

	if !opts.Oneshot {
		if err := dm.WritePID(); err != nil {
			return err
		}
		defer dm.RemovePID()
	}

	logger.Info("focusbeat starting",
		"version", version.Version,
		"backend", src.Name(),
		"interval", cfg.Heartbeat.Interval,
		"dry_run", cfg.WakaTime.DryRun)

	err = svc.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown", "error", err)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("focusbeat exited", "error", err)
		return err
	}
	logger.Info("focusbeat stopped")
	return nil
}

// daemonize re-executes the current binary detached from the terminal.
// The child sees daemonChildEnv set and falls through into runTracker.
func daemonize() error {
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "resolving executable path")
	}

	env := append(os.Environ(), daemonChildEnv+"=1")
	proc, err := os.StartProcess(exe, os.Args, &os.ProcAttr{
		Env: env,
		// stdin, stdout and stderr all to /dev/null; the child logs to a file
		Files: []*os.File{nil, nil, nil},
		Sys: &syscall.SysProcAttr{
			Setsid: true,
		},
	})
	if err != nil {
		return errors.Wrap(err, "forking daemon process")
	}

	fmt.Printf("focusbeat started (PID %d)\n", proc.Pid)
	fmt.Printf("logs: %s\n", logFilePath())
	return nil
}

func logFilePath() string {
	return filepath.Join(os.TempDir(), "focusbeat.log")
}

// newRunID mints the ULID that tags every log line and journal entry
// from one daemon lifetime.
func newRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
