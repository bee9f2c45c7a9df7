package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// TemplateRepo resolves prompt templates by exact primary key and their
// storage-backed document templates. Lookups never pattern-match on
// names.
type TemplateRepo interface {
	GetPromptTemplate(ctx context.Context, id uuid.UUID) (*types.PromptTemplate, error)
	GetActiveDocumentTemplate(ctx context.Context, id uuid.UUID, domainID uuid.UUID) (*types.DocumentTemplate, error)
}

type templateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTemplateRepo(db *gorm.DB, log *logger.Logger) TemplateRepo {
	return &templateRepo{db: db, log: log.With("repo", "TemplateRepo")}
}

func (r *templateRepo) GetPromptTemplate(ctx context.Context, id uuid.UUID) (*types.PromptTemplate, error) {
	var t types.PromptTemplate
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to get prompt template: %w", err)
	}
	return &t, nil
}

func (r *templateRepo) GetActiveDocumentTemplate(ctx context.Context, id uuid.UUID, domainID uuid.UUID) (*types.DocumentTemplate, error) {
	var t types.DocumentTemplate
	err := r.db.WithContext(ctx).
		Where("id = ? AND domain_id = ? AND is_active = ?", id, domainID, true).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to get document template: %w", err)
	}
	return &t, nil
}
