package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Load reads configuration from path, falling back to config.toml under
// DefaultDir, and applies FOCUSBEAT_* environment overrides on top of the
// defaults. A missing default file is fine; a missing explicit path is an
// error. Load does not validate; callers run Validate once flags have
// been merged in.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultDir())
	}

	v.SetEnvPrefix("FOCUSBEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	cfg := Default()
	cfg.Heartbeat.Interval = time.Duration(v.GetInt("heartbeat.interval_seconds")) * time.Second
	cfg.Heartbeat.MinEntityResend = time.Duration(v.GetInt("heartbeat.min_entity_resend_seconds")) * time.Second
	cfg.Heartbeat.Project = v.GetString("heartbeat.project")

	cfg.Titles.Track = v.GetBool("titles.track_titles")
	cfg.Titles.Strategy = v.GetString("titles.title_strategy")

	cfg.Categories.Default = v.GetString("categories.default")
	rules, err := decodeRules(v.Get("categories.rules"))
	if err != nil {
		return nil, err
	}
	cfg.Categories.Rules = rules

	cfg.Filter.AppAllowlist = v.GetStringSlice("filter.app_allowlist")
	cfg.Filter.AppDenylist = v.GetStringSlice("filter.app_denylist")

	cfg.Idle.CheckInterval = time.Duration(v.GetInt("idle.check_interval_seconds")) * time.Second

	cfg.WakaTime.CLIPath = v.GetString("wakatime.cli_path")
	cfg.WakaTime.ConfigPath = v.GetString("wakatime.config_path")
	cfg.WakaTime.DryRun = v.GetBool("wakatime.dry_run")

	cfg.Source.Backend = v.GetString("source.backend")
	cfg.Source.X11PollInterval = time.Duration(v.GetInt("source.x11_poll_interval_ms")) * time.Millisecond

	cfg.Daemon.PIDFile = v.GetString("daemon.pid_file")
	cfg.Daemon.JournalPath = v.GetString("daemon.journal_path")
	cfg.Daemon.StatusAddr = v.GetString("daemon.status_addr")
	cfg.Daemon.LogLevel = v.GetString("daemon.log_level")

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("heartbeat.interval_seconds", int(d.Heartbeat.Interval/time.Second))
	v.SetDefault("heartbeat.min_entity_resend_seconds", int(d.Heartbeat.MinEntityResend/time.Second))
	v.SetDefault("heartbeat.project", d.Heartbeat.Project)
	v.SetDefault("titles.track_titles", d.Titles.Track)
	v.SetDefault("titles.title_strategy", d.Titles.Strategy)
	v.SetDefault("categories.default", d.Categories.Default)
	v.SetDefault("filter.app_allowlist", []string{})
	v.SetDefault("filter.app_denylist", []string{})
	v.SetDefault("idle.check_interval_seconds", int(d.Idle.CheckInterval/time.Second))
	v.SetDefault("wakatime.cli_path", d.WakaTime.CLIPath)
	v.SetDefault("wakatime.config_path", d.WakaTime.ConfigPath)
	v.SetDefault("wakatime.dry_run", d.WakaTime.DryRun)
	v.SetDefault("source.backend", d.Source.Backend)
	v.SetDefault("source.x11_poll_interval_ms", int(d.Source.X11PollInterval/time.Millisecond))
	v.SetDefault("daemon.pid_file", d.Daemon.PIDFile)
	v.SetDefault("daemon.journal_path", d.Daemon.JournalPath)
	v.SetDefault("daemon.status_addr", d.Daemon.StatusAddr)
	v.SetDefault("daemon.log_level", d.Daemon.LogLevel)
}

// decodeRules turns the raw TOML array of {pattern, category} tables into
// typed rules, preserving order.
func decodeRules(raw interface{}) ([]CategoryRule, error) {
	if raw == nil {
		return nil, nil
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, errors.Errorf("categories.rules must be an array of tables, got %T", raw)
	}

	rules := make([]CategoryRule, 0, len(items))
	for i, item := range items {
		table, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("categories.rules[%d] must be a table with pattern and category, got %T", i, item)
		}
		pattern, _ := table["pattern"].(string)
		category, _ := table["category"].(string)
		if pattern == "" || category == "" {
			return nil, errors.Errorf("categories.rules[%d] needs both pattern and category", i)
		}
		rules = append(rules, CategoryRule{Pattern: pattern, Category: category})
	}
	return rules, nil
}
