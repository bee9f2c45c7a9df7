package types

import (
	"time"

	"github.com/google/uuid"
)

// PromptTemplate is a system prompt row. Either PromptText is inlined or
// DocumentTemplateID points at a storage-backed template; both null is
// an error surfaced at resolution time.
type PromptTemplate struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name               string     `gorm:"column:name" json:"name"`
	PromptText         *string    `gorm:"column:prompt_text;type:text" json:"prompt_text,omitempty"`
	DocumentTemplateID *uuid.UUID `gorm:"type:uuid;column:document_template_id" json:"document_template_id,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (PromptTemplate) TableName() string { return "dialectic_prompt_template" }

// DocumentTemplate locates a storage-backed template body, scoped to a
// domain. Only active rows resolve.
type DocumentTemplate struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DomainID      uuid.UUID `gorm:"type:uuid;column:domain_id;not null;index" json:"domain_id"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	StorageBucket string    `gorm:"column:storage_bucket;not null" json:"storage_bucket"`
	StoragePath   string    `gorm:"column:storage_path;not null" json:"storage_path"`
	FileName      string    `gorm:"column:file_name;not null" json:"file_name"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (DocumentTemplate) TableName() string { return "dialectic_document_template" }
