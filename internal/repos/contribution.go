package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// ContributionRepo reads contribution rows for assembly and
// reconstruction. Absent rows read as nil, not as errors; callers
// decide whether absence is fatal.
type ContributionRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.Contribution, error)
	ListLatestForStage(ctx context.Context, sessionID uuid.UUID, iteration int, stageSlug string) ([]*types.Contribution, error)
	ListByRoot(ctx context.Context, stageSlug string, rootID uuid.UUID) ([]*types.Contribution, error)
}

type contributionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContributionRepo(db *gorm.DB, log *logger.Logger) ContributionRepo {
	return &contributionRepo{db: db, log: log.With("repo", "ContributionRepo")}
}

func (r *contributionRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Contribution, error) {
	var c types.Contribution
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to get contribution by id: %w", err)
	}
	return &c, nil
}

func (r *contributionRepo) ListLatestForStage(ctx context.Context, sessionID uuid.UUID, iteration int, stageSlug string) ([]*types.Contribution, error) {
	var out []*types.Contribution
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND iteration_number = ? AND stage = ? AND is_latest_edit = ?", sessionID, iteration, stageSlug, true).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to list contributions for stage: %w", err)
	}
	return out, nil
}

// ListByRoot matches rows whose document_relationships record the given
// root id under the stage slug, i.e. every chunk of one generation
// lineage.
func (r *contributionRepo) ListByRoot(ctx context.Context, stageSlug string, rootID uuid.UUID) ([]*types.Contribution, error) {
	var out []*types.Contribution
	err := r.db.WithContext(ctx).
		Where(datatypes.JSONQuery("document_relationships").Equals(rootID.String(), stageSlug)).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to list contributions by root: %w", err)
	}
	return out, nil
}
