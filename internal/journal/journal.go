// Package journal persists operational failures (dispatch errors, idle
// provider outages, fatal source errors) so they can be inspected after
// the fact with the errors command. Heartbeats themselves are never
// stored.
package journal

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"focusbeat/internal/models"
)

const (
	defaultDBName = "journal.db"
	defaultDBDir  = ".local/share/focusbeat"
)

// Journal is a small SQLite-backed error log. All methods are safe on a
// nil receiver so callers can wire it unconditionally and leave it
// disabled.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	runID  string
}

// DefaultPath returns the journal location under the user data dir,
// creating the directory on the way.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}

	dir := filepath.Join(homeDir, defaultDBDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating journal directory")
	}

	return filepath.Join(dir, defaultDBName), nil
}

// Open opens (or creates) the journal at path and migrates its schema.
// An empty path means the default location. Entries recorded through the
// returned journal carry runID.
func Open(path, runID string, log *slog.Logger) (*Journal, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating journal directory")
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening journal database")
	}

	if err := db.AutoMigrate(&models.ErrorLog{}); err != nil {
		return nil, errors.Wrap(err, "migrating journal schema")
	}

	return &Journal{db: db, logger: log, runID: runID}, nil
}

// Record stores one failure. It is best-effort: a journal write must
// never take the pipeline down, so storage errors are only logged.
func (j *Journal) Record(component, message, detail string) {
	if j == nil {
		return
	}

	entry := models.ErrorLog{
		RunID:     j.runID,
		Component: component,
		Message:   message,
		Detail:    detail,
	}
	if err := j.db.Create(&entry).Error; err != nil {
		j.logger.Debug("journal write failed", "error", err)
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]models.ErrorLog, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	var entries []models.ErrorLog
	result := j.db.Order("created_at DESC").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "querying journal entries")
	}
	return entries, nil
}

// Prune hard-deletes entries older than age and returns how many went.
func (j *Journal) Prune(age time.Duration) (int64, error) {
	if j == nil {
		return 0, nil
	}

	cutoff := time.Now().Add(-age)
	result := j.db.Unscoped().Where("created_at < ?", cutoff).Delete(&models.ErrorLog{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "pruning journal")
	}
	return result.RowsAffected, nil
}

// Clear removes every entry.
func (j *Journal) Clear() error {
	if j == nil {
		return nil
	}

	result := j.db.Unscoped().Where("1 = 1").Delete(&models.ErrorLog{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "clearing journal")
	}
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}

	sqlDB, err := j.db.DB()
	if err != nil {
		return errors.Wrap(err, "getting underlying sql.DB")
	}
	return sqlDB.Close()
}
