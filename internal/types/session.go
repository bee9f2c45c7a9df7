package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Session is one execution of the pipeline against a Project. The
// selected model set must be non-empty before any assembly runs; that
// invariant is enforced at the assembler entry points.
type Session struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Project          *Project       `gorm:"foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	SelectedModelIDs datatypes.JSON `gorm:"column:selected_model_ids;type:jsonb" json:"selected_model_ids"`
	IterationCount   int            `gorm:"column:iteration_count;not null;default:1" json:"iteration_count"`
	CurrentStageSlug string         `gorm:"column:current_stage_slug" json:"current_stage_slug"`
	Status           string         `gorm:"column:status;not null;default:'active'" json:"status"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Session) TableName() string { return "dialectic_session" }
