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

// ModelProviderRepo reads model provider rows.
type ModelProviderRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.ModelProvider, error)
}

type modelProviderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModelProviderRepo(db *gorm.DB, log *logger.Logger) ModelProviderRepo {
	return &modelProviderRepo{db: db, log: log.With("repo", "ModelProviderRepo")}
}

func (r *modelProviderRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.ModelProvider, error) {
	var m types.ModelProvider
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to get model provider: %w", err)
	}
	return &m, nil
}
