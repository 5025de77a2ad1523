package models

import (
	"time"

	"gorm.io/gorm"
)

// ErrorLog is one recorded operational failure (dispatch, idle provider,
// parse). The journal keeps failures, never heartbeats.
type ErrorLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RunID     string         `gorm:"not null;index" json:"run_id"`
	Component string         `gorm:"not null;index" json:"component"`
	Message   string         `gorm:"not null" json:"message"`
	Detail    string         `json:"detail,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Journal component names used in ErrorLog.Component.
const (
	ComponentDispatch = "dispatch"
	ComponentIdle     = "idle"
	ComponentSource   = "source"
)
