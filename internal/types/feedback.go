package types

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is the user's persisted commentary on one stage iteration.
// The blob itself lives in object storage; this row only locates it.
type Feedback struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID       uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	ProjectID       uuid.UUID `gorm:"type:uuid;not null" json:"project_id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	StageSlug       string    `gorm:"column:stage_slug;not null" json:"stage_slug"`
	IterationNumber int       `gorm:"column:iteration_number;not null" json:"iteration_number"`
	StorageBucket   string    `gorm:"column:storage_bucket;not null" json:"storage_bucket"`
	StoragePath     string    `gorm:"column:storage_path;not null" json:"storage_path"`
	FileName        string    `gorm:"column:file_name;not null" json:"file_name"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Feedback) TableName() string { return "dialectic_feedback" }
