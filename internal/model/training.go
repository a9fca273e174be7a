package model

import (
	"time"

	"gorm.io/datatypes"

	"workshop-access-backend/internal/watch"
)

// TrainingModule is a safety video whose duration is authoritative on the server.
type TrainingModule struct {
	ID                   int64     `gorm:"primaryKey" json:"id"`
	Title                string    `gorm:"size:256;not null" json:"title"`
	VideoURL             string    `gorm:"size:1024" json:"videoUrl"`
	VideoDurationSeconds float64   `gorm:"not null" json:"videoDurationSeconds"`
	CompletionPercent    float64   `gorm:"not null;default:100" json:"completionPercent"`
	Lifecycle            Lifecycle `gorm:"size:16;not null;default:active" json:"lifecycle"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// CompletionThreshold is the watched percent at which progress is stamped completed.
func (m TrainingModule) CompletionThreshold() float64 {
	if m.CompletionPercent <= 0 || m.CompletionPercent > 100 {
		return 100
	}
	return m.CompletionPercent
}

// MachineRequirement gates a machine behind a training module.
type MachineRequirement struct {
	ID                   int64   `gorm:"primaryKey" json:"id"`
	MachineID            int64   `gorm:"not null;uniqueIndex:idx_requirement_machine_module" json:"machineId"`
	ModuleID             int64   `gorm:"not null;uniqueIndex:idx_requirement_machine_module" json:"moduleId"`
	RequiredWatchPercent float64 `gorm:"not null" json:"requiredWatchPercent"`

	// Associations
	Module TrainingModule `gorm:"foreignKey:ModuleID" json:"module"`
}

// TrainingProgress is the per (user, module) watch state.
type TrainingProgress struct {
	ID            int64                            `gorm:"primaryKey" json:"id"`
	UserID        int64                            `gorm:"not null;uniqueIndex:idx_progress_user_module" json:"userId"`
	ModuleID      int64                            `gorm:"not null;uniqueIndex:idx_progress_user_module" json:"moduleId"`
	WatchedRanges datatypes.JSONSlice[watch.Range] `gorm:"not null" json:"watchedRanges"`
	LastPosition  float64                          `gorm:"not null;default:0" json:"lastPosition"`
	CompletedAt   *time.Time                       `json:"completedAt"`
	CreatedAt     time.Time                        `json:"createdAt"`
	UpdatedAt     time.Time                        `json:"updatedAt"`
}

// WatchedSeconds is the unique coverage of the stored ranges.
func (p TrainingProgress) WatchedSeconds() float64 {
	return watch.TotalSeconds(p.WatchedRanges)
}
