package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Contribution is one persisted unit of AI output. A generation that was
// continued across multiple model calls is stored as several rows linked
// through DocumentRelationships; Stage is the direct stage identity and
// must be present on roots (reconstruction rejects rows without it).
// DocumentRelationships is write-once at creation.
type Contribution struct {
	ID                    uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
	UserID                uuid.UUID      `gorm:"type:uuid;not null" json:"user_id"`
	Stage                 string         `gorm:"column:stage;not null;index" json:"stage"`
	IterationNumber       int            `gorm:"column:iteration_number;not null" json:"iteration_number"`
	ModelID               *uuid.UUID     `gorm:"type:uuid;column:model_id" json:"model_id,omitempty"`
	ModelName             string         `gorm:"column:model_name" json:"model_name"`
	ContributionType      string         `gorm:"column:contribution_type" json:"contribution_type"`
	EditVersion           int            `gorm:"column:edit_version;not null;default:1" json:"edit_version"`
	IsLatestEdit          bool           `gorm:"column:is_latest_edit;not null;default:true" json:"is_latest_edit"`
	StorageBucket         string         `gorm:"column:storage_bucket" json:"storage_bucket"`
	StoragePath           string         `gorm:"column:storage_path" json:"storage_path"`
	FileName              string         `gorm:"column:file_name" json:"file_name"`
	MimeType              string         `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes             int64          `gorm:"column:size_bytes" json:"size_bytes"`
	DocumentRelationships datatypes.JSON `gorm:"column:document_relationships;type:jsonb" json:"document_relationships"`
	CreatedAt             time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Contribution) TableName() string { return "dialectic_contribution" }
