package types

import (
	"time"

	"github.com/google/uuid"
)

// ProjectResource records one persisted assembled prompt. Writing this
// row (plus the blob it points at) is the single side effect of an
// assembly call.
type ProjectResource struct {
	ID                   uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	SessionID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"session_id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`
	StageSlug            string     `gorm:"column:stage_slug;not null" json:"stage_slug"`
	IterationNumber      int        `gorm:"column:iteration_number;not null" json:"iteration_number"`
	ResourceType         string     `gorm:"column:resource_type;not null" json:"resource_type"`
	ResourceDescription  string     `gorm:"column:resource_description" json:"resource_description"`
	StorageBucket        string     `gorm:"column:storage_bucket;not null" json:"storage_bucket"`
	StoragePath          string     `gorm:"column:storage_path;not null" json:"storage_path"`
	FileName             string     `gorm:"column:file_name;not null" json:"file_name"`
	MimeType             string     `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes            int64      `gorm:"column:size_bytes" json:"size_bytes"`
	StepName             string     `gorm:"column:step_name" json:"step_name"`
	BranchKey            *string    `gorm:"column:branch_key" json:"branch_key,omitempty"`
	ParallelGroup        *string    `gorm:"column:parallel_group" json:"parallel_group,omitempty"`
	SourceContributionID *uuid.UUID `gorm:"type:uuid;column:source_contribution_id" json:"source_contribution_id,omitempty"`
	CreatedAt            time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (ProjectResource) TableName() string { return "dialectic_project_resource" }
