package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RecipeStep declares one unit of work: which prior artifacts it needs
// (InputsRequired), what it must produce (OutputsRequired), which prompt
// template renders it, and how its jobs group. Immutable once a run has
// started.
type RecipeStep struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StepName           string         `gorm:"column:step_name;not null" json:"step_name"`
	StepSlug           string         `gorm:"column:step_slug;not null" json:"step_slug"`
	JobType            string         `gorm:"column:job_type;not null" json:"job_type"`
	PromptTemplateID   *uuid.UUID     `gorm:"type:uuid;column:prompt_template_id" json:"prompt_template_id,omitempty"`
	InputsRequired     datatypes.JSON `gorm:"column:inputs_required;type:jsonb" json:"inputs_required"`
	OutputsRequired    datatypes.JSON `gorm:"column:outputs_required;type:jsonb" json:"outputs_required"`
	ProcessingStrategy string         `gorm:"column:processing_strategy" json:"processing_strategy"`
	BranchKey          *string        `gorm:"column:branch_key" json:"branch_key,omitempty"`
	ParallelGroup      *string        `gorm:"column:parallel_group" json:"parallel_group,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (RecipeStep) TableName() string { return "dialectic_recipe_step" }
