package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"focusbeat/internal/config"
	"focusbeat/internal/daemon"
	"focusbeat/internal/journal"
	"focusbeat/internal/tracker"
	"focusbeat/internal/version"
	"focusbeat/pkg/utils"
)

var (
	commit = "unknown"
	date   = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "focusbeat",
	Short: "WakaTime heartbeats from window focus",
	Long: `Focusbeat turns window focus changes into WakaTime heartbeats. It
listens to the compositor (Hyprland events or X11 polling), filters and
throttles what it sees, and reports the focused application through
wakatime-cli.

Run it in the foreground with 'focusbeat run', or detached with
'focusbeat run -d'. 'focusbeat status' shows what a running daemon is
doing; 'focusbeat errors' lists recorded failures.`,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	defaultConfig := filepath.Join(config.DefaultDir(), "config.toml")
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default "+defaultConfig+")")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(errorsCmd())
	rootCmd.AddCommand(versionCmd())
}

// loadConfig reads the config file named by --config (or the default
// location) and lays persistent flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Daemon.LogLevel = viper.GetString("log-level")
	}
	return cfg, nil
}

// setupLogger builds the process-wide JSON logger. The run command hands
// it a log file when daemonized; every other path logs to stderr so
// command output stays clean on stdout.
func setupLogger(level string, out io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state",
		Long:  "Shows whether the daemon is running and, when the status API is enabled, its live counters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dm := daemon.New(cfg.Daemon.PIDFile)
			running, pid, err := dm.IsRunning()
			if err != nil {
				return err
			}

			if !running {
				if viper.GetBool("json") {
					return printJSON(map[string]any{"running": false})
				}
				fmt.Println("focusbeat is not running")
				return nil
			}

			var snap *tracker.Snapshot
			if cfg.Daemon.StatusAddr != "" {
				snap, err = fetchSnapshot(cfg.Daemon.StatusAddr)
				if err != nil {
					fmt.Fprintf(os.Stderr, "status API unreachable: %v\n", err)
				}
			}

			if viper.GetBool("json") {
				out := map[string]any{"running": true, "pid": pid}
				if snap != nil {
					out["snapshot"] = snap
				}
				return printJSON(out)
			}

			fmt.Printf("Status: running (PID %d)\n", pid)
			if snap == nil {
				fmt.Printf("Backend: %s (configured)\n", cfg.Source.Backend)
				fmt.Printf("Interval: %s\n", cfg.Heartbeat.Interval)
				return nil
			}

			fmt.Printf("Run: %s\n", snap.RunID)
			fmt.Printf("Backend: %s\n", snap.Backend)
			fmt.Printf("Uptime: %s\n", utils.FormatRoundedUnit(int64(time.Since(snap.StartedAt).Seconds())))
			fmt.Printf("Events: %d seen, %d dropped, %d suppressed\n",
				snap.EventsSeen, snap.EventsDropped, snap.Suppressed)
			fmt.Printf("Heartbeats: %d sent, %d dispatch errors\n",
				snap.HeartbeatsSent, snap.DispatchErrors)
			if snap.LastEntity != "" && snap.LastSentAt != nil {
				fmt.Printf("Last heartbeat: %s (%s ago)\n", snap.LastEntity,
					utils.FormatRoundedUnit(int64(time.Since(*snap.LastSentAt).Seconds())))
			}
			if snap.IdleGate {
				fmt.Printf("Idle: %v\n", snap.Idle)
			} else {
				fmt.Println("Idle: detection disabled")
			}
			if snap.DryRun {
				fmt.Println("Dry run: heartbeats are logged, not sent")
			}
			return nil
		},
	}
	return cmd
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a detached daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dm := daemon.New(cfg.Daemon.PIDFile)
			running, pid, err := dm.IsRunning()
			if err != nil {
				return err
			}
			if !running {
				fmt.Println("focusbeat is not running")
				return nil
			}

			fmt.Printf("stopping focusbeat (PID %d)\n", pid)
			return dm.Stop()
		},
	}
}

func errorsCmd() *cobra.Command {
	var (
		limit int
		clear bool
		prune time.Duration
	)
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show recorded pipeline failures",
		Long:  "Lists failures the daemon persisted to its journal: dispatch escalations, idle provider outages, fatal source errors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := setupLogger(cfg.Daemon.LogLevel, os.Stderr)
			jrnl, err := journal.Open(cfg.Daemon.JournalPath, "", logger)
			if err != nil {
				return err
			}
			defer jrnl.Close()

			if clear {
				if err := jrnl.Clear(); err != nil {
					return err
				}
				fmt.Println("journal cleared")
				return nil
			}
			if prune > 0 {
				n, err := jrnl.Prune(prune)
				if err != nil {
					return err
				}
				fmt.Printf("pruned %d entries\n", n)
				return nil
			}

			entries, err := jrnl.Recent(limit)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Println("no recorded errors")
				return nil
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Time", "Component", "Run", "Message"})
			for _, e := range entries {
				tw.AppendRow(table.Row{
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					e.Component,
					shortRunID(e.RunID),
					e.Message,
				})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	cmd.Flags().BoolVar(&clear, "clear", false, "delete all recorded errors")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete entries older than this age (e.g. 720h)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("focusbeat version %s\n", version.Version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

// fetchSnapshot asks a running daemon's status API for its live view.
func fetchSnapshot(addr string) (*tracker.Snapshot, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/v0/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("status API returned %s", resp.Status)
	}
	var snap tracker.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, errors.Wrap(err, "decoding status response")
	}
	return &snap, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// shortRunID trims a ULID down to something that fits a table column.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
