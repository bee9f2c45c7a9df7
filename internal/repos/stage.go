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

// StageRepo reads stage definitions and their overlays.
type StageRepo interface {
	GetBySlug(ctx context.Context, slug string) (*types.Stage, error)
	DisplayNames(ctx context.Context, slugs []string) (map[string]string, error)
	ListOverlays(ctx context.Context, stageID uuid.UUID) ([]*types.StageOverlay, error)
}

type stageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageRepo(db *gorm.DB, log *logger.Logger) StageRepo {
	return &stageRepo{db: db, log: log.With("repo", "StageRepo")}
}

func (r *stageRepo) GetBySlug(ctx context.Context, slug string) (*types.Stage, error) {
	var s types.Stage
	if err := r.db.WithContext(ctx).First(&s, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to get stage by slug: %w", err)
	}
	return &s, nil
}

// DisplayNames resolves slugs to display names in one query. Slugs with
// no stage row are simply absent from the map.
func (r *stageRepo) DisplayNames(ctx context.Context, slugs []string) (map[string]string, error) {
	if len(slugs) == 0 {
		return map[string]string{}, nil
	}
	var rows []types.Stage
	err := r.db.WithContext(ctx).
		Select("slug", "display_name").
		Where("slug IN ?", slugs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to resolve stage display names: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Slug] = row.DisplayName
	}
	return out, nil
}

// ListOverlays returns a stage's overlays in Position order, which is
// also merge order.
func (r *stageRepo) ListOverlays(ctx context.Context, stageID uuid.UUID) ([]*types.StageOverlay, error) {
	var out []*types.StageOverlay
	err := r.db.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Order("position ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to list stage overlays: %w", err)
	}
	return out, nil
}
