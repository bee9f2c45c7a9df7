package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Stage is a named pipeline phase ("thesis", "antithesis", ...).
// InputArtifactRules holds the declarative source rules the assembler
// parses at gather time; ExpectedOutputArtifacts feeds the renderer's
// expected_output_artifacts_json overlay value.
type Stage struct {
	ID                      uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Slug                    string         `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	DisplayName             string         `gorm:"column:display_name;not null" json:"display_name"`
	Description             string         `gorm:"column:description" json:"description"`
	DefaultPromptTemplateID *uuid.UUID     `gorm:"type:uuid;column:default_prompt_template_id" json:"default_prompt_template_id,omitempty"`
	InputArtifactRules      datatypes.JSON `gorm:"column:input_artifact_rules;type:jsonb" json:"input_artifact_rules"`
	ExpectedOutputArtifacts datatypes.JSON `gorm:"column:expected_output_artifacts;type:jsonb" json:"expected_output_artifacts"`
	CreatedAt               time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt               time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Stage) TableName() string { return "dialectic_stage" }

// StageOverlay is one stage-level configuration overlay. Overlays are
// merged onto the project overlay in Position order, last writer wins.
type StageOverlay struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StageID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"stage_id"`
	DomainID      uuid.UUID      `gorm:"type:uuid;column:domain_id" json:"domain_id"`
	Position      int            `gorm:"column:position;not null;default:0" json:"position"`
	OverlayValues datatypes.JSON `gorm:"column:overlay_values;type:jsonb" json:"overlay_values"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (StageOverlay) TableName() string { return "dialectic_stage_overlay" }
