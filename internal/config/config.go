package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"focusbeat/internal/models"
)

// Title strategies accepted in TitlesConfig.Strategy.
const (
	TitleStrategyIgnore = "ignore"
	TitleStrategyAppend = "append"
)

// Config holds all daemon configuration.
type Config struct {
	// Heartbeat timing and identity
	Heartbeat HeartbeatConfig

	// Window title handling
	Titles TitlesConfig

	// Category mapping
	Categories CategoriesConfig

	// Application allow/deny filtering
	Filter FilterConfig

	// Idle detection
	Idle IdleConfig

	// wakatime-cli invocation
	WakaTime WakaTimeConfig

	// Focus backend selection
	Source SourceConfig

	// Daemon process management
	Daemon DaemonConfig
}

// HeartbeatConfig holds the throttle timing knobs.
type HeartbeatConfig struct {
	Interval        time.Duration // keep-alive resend cadence for an unchanged focus
	MinEntityResend time.Duration // minimum silence before the same entity resends
	Project         string        // optional project passed through to wakatime-cli
}

// TitlesConfig controls whether and how window titles reach the entity.
type TitlesConfig struct {
	Track    bool
	Strategy string // "ignore" or "append"
}

// CategoryRule maps a window-class regex to a category. Rules apply in
// order; the first match wins.
type CategoryRule struct {
	Pattern  string
	Category string
}

// CategoriesConfig holds the category mapping policy.
type CategoriesConfig struct {
	Default string
	Rules   []CategoryRule
}

// FilterConfig holds allow/deny lists matched against the window class,
// case-insensitively. A non-empty allowlist admits only its members; the
// denylist always wins.
type FilterConfig struct {
	AppAllowlist []string
	AppDenylist  []string
}

// IdleConfig holds idle detection behavior.
type IdleConfig struct {
	CheckInterval time.Duration
}

// WakaTimeConfig holds the transmission tool invocation settings.
type WakaTimeConfig struct {
	CLIPath    string // explicit wakatime-cli path; discovered when empty
	ConfigPath string // passed as --config when set
	DryRun     bool   // log the command instead of running it
}

// SourceConfig selects and tunes the focus backend.
type SourceConfig struct {
	Backend         string // "auto", "hyprland" or "x11"
	X11PollInterval time.Duration
}

// DaemonConfig holds daemon process configuration.
type DaemonConfig struct {
	PIDFile     string
	JournalPath string // empty means the default under the user data dir
	StatusAddr  string // e.g. "127.0.0.1:7313"; empty disables the status API
	LogLevel    string // debug, info, warn, error
}

// Default returns a Config with the stock values.
func Default() *Config {
	return &Config{
		Heartbeat: HeartbeatConfig{
			Interval:        120 * time.Second,
			MinEntityResend: 120 * time.Second,
		},
		Titles: TitlesConfig{
			Track:    false,
			Strategy: TitleStrategyIgnore,
		},
		Categories: CategoriesConfig{
			Default: string(models.CategoryCoding),
		},
		Idle: IdleConfig{
			CheckInterval: 10 * time.Second,
		},
		Source: SourceConfig{
			Backend:         "auto",
			X11PollInterval: 800 * time.Millisecond,
		},
		Daemon: DaemonConfig{
			PIDFile:  defaultPIDFile(),
			LogLevel: "info",
		},
	}
}

func defaultPIDFile() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "focusbeat.pid")
	}
	return fmt.Sprintf("/tmp/focusbeat-%d.pid", os.Getuid())
}

// DefaultDir returns the configuration directory, ~/.config/focusbeat.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/focusbeat"
	}
	return filepath.Join(home, ".config", "focusbeat")
}

// Validate checks the configuration for values the pipeline cannot run
// with. Invalid rule regexes are not checked here; they are skipped with
// a warning when the rules are compiled.
func (c *Config) Validate() error {
	if c.Heartbeat.Interval < time.Second {
		return fmt.Errorf("heartbeat interval must be at least 1s, got %v", c.Heartbeat.Interval)
	}
	if c.Heartbeat.MinEntityResend < 0 {
		return fmt.Errorf("min entity resend cannot be negative, got %v", c.Heartbeat.MinEntityResend)
	}

	switch c.Titles.Strategy {
	case TitleStrategyIgnore, TitleStrategyAppend:
	default:
		return fmt.Errorf("title strategy must be %q or %q, got %q",
			TitleStrategyIgnore, TitleStrategyAppend, c.Titles.Strategy)
	}

	if _, err := models.ParseCategory(c.Categories.Default); err != nil {
		return fmt.Errorf("default category: %w", err)
	}
	for _, rule := range c.Categories.Rules {
		if rule.Pattern == "" {
			return fmt.Errorf("category rule with empty pattern")
		}
		if _, err := models.ParseCategory(rule.Category); err != nil {
			return fmt.Errorf("category rule %q: %w", rule.Pattern, err)
		}
	}

	if c.Idle.CheckInterval < time.Second {
		return fmt.Errorf("idle check interval must be at least 1s, got %v", c.Idle.CheckInterval)
	}

	switch c.Source.Backend {
	case "auto", "hyprland", "x11":
	default:
		return fmt.Errorf("unknown source backend %q (valid: auto, hyprland, x11)", c.Source.Backend)
	}
	if c.Source.X11PollInterval < 100*time.Millisecond {
		return fmt.Errorf("x11 poll interval must be at least 100ms, got %v", c.Source.X11PollInterval)
	}

	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}
	switch c.Daemon.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", c.Daemon.LogLevel)
	}

	return nil
}

// String returns a loggable summary of the config.
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Heartbeat:
    Interval: %v
    Min Entity Resend: %v
    Project: %s
  Titles:
    Track: %v
    Strategy: %s
  Categories:
    Default: %s
    Rules: %d
  Filter:
    Allowlist: %d entries
    Denylist: %d entries
  Idle:
    Check Interval: %v
  WakaTime:
    CLI Path: %s
    Config Path: %s
    Dry Run: %v
  Source:
    Backend: %s
  Daemon:
    PID File: %s
    Status Addr: %s
    Log Level: %s`,
		c.Heartbeat.Interval,
		c.Heartbeat.MinEntityResend,
		orUnset(c.Heartbeat.Project),
		c.Titles.Track,
		c.Titles.Strategy,
		c.Categories.Default,
		len(c.Categories.Rules),
		len(c.Filter.AppAllowlist),
		len(c.Filter.AppDenylist),
		c.Idle.CheckInterval,
		orUnset(c.WakaTime.CLIPath),
		orUnset(c.WakaTime.ConfigPath),
		c.WakaTime.DryRun,
		c.Source.Backend,
		c.Daemon.PIDFile,
		orUnset(c.Daemon.StatusAddr),
		c.Daemon.LogLevel,
	)
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
