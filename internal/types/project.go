package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Project is the stable identity for one unit of dialectic work. The
// objective and domain are set at creation; only the user's overlay
// values change afterwards.
type Project struct {
	ID                      uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID                  uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	ProjectName             string         `gorm:"column:project_name;not null" json:"project_name"`
	InitialUserPrompt       string         `gorm:"column:initial_user_prompt;type:text" json:"initial_user_prompt"`
	DomainName              string         `gorm:"column:domain_name;not null" json:"domain_name"`
	SelectedDomainID        uuid.UUID      `gorm:"type:uuid;column:selected_domain_id" json:"selected_domain_id"`
	UserDomainOverlayValues datatypes.JSON `gorm:"column:user_domain_overlay_values;type:jsonb" json:"user_domain_overlay_values"`
	CreatedAt               time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt               time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Project) TableName() string { return "dialectic_project" }
