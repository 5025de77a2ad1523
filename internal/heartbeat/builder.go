// Package heartbeat turns gated focus events into heartbeats under the
// configured policy: allow/deny filtering, title strategy and category
// mapping.
package heartbeat

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"focusbeat/internal/config"
	"focusbeat/internal/models"
)

// entitySeparator joins class and title in append mode. wakatime-cli
// treats the joined string as one opaque entity.
const entitySeparator = " — "

type compiledRule struct {
	re       *regexp.Regexp
	category models.Category
}

// Builder holds the compiled policy. Build it once at startup; it is
// read-only afterwards.
type Builder struct {
	logger *slog.Logger

	allowlist map[string]struct{}
	denylist  map[string]struct{}

	appendTitles bool

	rules           []compiledRule
	defaultCategory models.Category
	project         string
}

// NewBuilder compiles the policy out of cfg. Rules with patterns that do
// not compile are skipped with a warning rather than failing startup;
// order of the surviving rules is preserved.
func NewBuilder(cfg *config.Config, logger *slog.Logger) *Builder {
	b := &Builder{
		logger:          logger,
		allowlist:       lowerSet(cfg.Filter.AppAllowlist),
		denylist:        lowerSet(cfg.Filter.AppDenylist),
		appendTitles:    cfg.Titles.Track && cfg.Titles.Strategy == config.TitleStrategyAppend,
		defaultCategory: models.Category(cfg.Categories.Default),
		project:         cfg.Heartbeat.Project,
	}

	for _, rule := range cfg.Categories.Rules {
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			logger.Warn("skipping category rule with invalid pattern",
				"pattern", rule.Pattern, "error", err)
			continue
		}
		b.rules = append(b.rules, compiledRule{re: re, category: models.Category(rule.Category)})
	}
	if len(cfg.Categories.Rules) > 0 {
		logger.Debug("category rules compiled",
			"active", len(b.rules), "skipped", len(cfg.Categories.Rules)-len(b.rules))
	}

	return b
}

// Allowed applies the deny and allow lists to a window class. The
// denylist wins over everything; a non-empty allowlist admits only its
// members. Matching is case-insensitive.
func (b *Builder) Allowed(class string) bool {
	lowered := strings.ToLower(class)
	if _, denied := b.denylist[lowered]; denied {
		b.logger.Debug("focus event denied by denylist", "class", class)
		return false
	}
	if len(b.allowlist) > 0 {
		if _, ok := b.allowlist[lowered]; !ok {
			b.logger.Debug("focus event not on allowlist", "class", class)
			return false
		}
	}
	return true
}

// Entity derives the tracked identity for an event. Titles only reach
// the entity in append mode and only when present.
func (b *Builder) Entity(ev models.FocusEvent) models.Entity {
	if b.appendTitles && ev.Title != "" {
		return models.Entity(ev.WindowClass + entitySeparator + ev.Title)
	}
	return models.Entity(ev.WindowClass)
}

// Categorize maps a window class to a category: first matching rule
// wins, no match falls back to the default.
func (b *Builder) Categorize(class string) models.Category {
	for _, rule := range b.rules {
		if rule.re.MatchString(class) {
			return rule.category
		}
	}
	return b.defaultCategory
}

// Build produces the heartbeat for an event that passed filtering, idle
// gating and throttling. The category is decided by the window class
// before any title merge, so title noise never changes categorization.
func (b *Builder) Build(ev models.FocusEvent, entity models.Entity, now time.Time) *models.Heartbeat {
	return &models.Heartbeat{
		Entity:   entity,
		Category: b.Categorize(ev.WindowClass),
		Project:  b.project,
		Time:     now,
	}
}

func lowerSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
