package types

import (
	"time"

	"github.com/google/uuid"
)

// ModelProvider is one selectable AI model. The assembler only reads the
// display name and slug for attribution and file naming.
type ModelProvider struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Provider  string    `gorm:"column:provider" json:"provider"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ModelProvider) TableName() string { return "dialectic_model_provider" }
