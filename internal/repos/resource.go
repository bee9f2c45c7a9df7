package repos

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// ProjectResourceRepo writes the resource rows that register persisted
// prompts. This is the only repo the assembly path writes through.
type ProjectResourceRepo interface {
	Create(ctx context.Context, resource *types.ProjectResource) error
}

type projectResourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectResourceRepo(db *gorm.DB, log *logger.Logger) ProjectResourceRepo {
	return &projectResourceRepo{db: db, log: log.With("repo", "ProjectResourceRepo")}
}

func (r *projectResourceRepo) Create(ctx context.Context, resource *types.ProjectResource) error {
	if err := r.db.WithContext(ctx).Create(resource).Error; err != nil {
		return fmt.Errorf("Failed to create project resource: %w", err)
	}
	return nil
}
