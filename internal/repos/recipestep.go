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

// RecipeStepRepo reads recipe step rows.
type RecipeStepRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.RecipeStep, error)
}

type recipeStepRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecipeStepRepo(db *gorm.DB, log *logger.Logger) RecipeStepRepo {
	return &recipeStepRepo{db: db, log: log.With("repo", "RecipeStepRepo")}
}

func (r *recipeStepRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.RecipeStep, error) {
	var s types.RecipeStep
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to get recipe step: %w", err)
	}
	return &s, nil
}
