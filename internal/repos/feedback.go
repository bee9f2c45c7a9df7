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

// FeedbackRepo reads stage feedback. At most one row exists per
// (session, stage, iteration, user); absence reads as nil.
type FeedbackRepo interface {
	GetForIteration(ctx context.Context, sessionID uuid.UUID, stageSlug string, iteration int, userID uuid.UUID) (*types.Feedback, error)
}

type feedbackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeedbackRepo(db *gorm.DB, log *logger.Logger) FeedbackRepo {
	return &feedbackRepo{db: db, log: log.With("repo", "FeedbackRepo")}
}

func (r *feedbackRepo) GetForIteration(ctx context.Context, sessionID uuid.UUID, stageSlug string, iteration int, userID uuid.UUID) (*types.Feedback, error) {
	var fb types.Feedback
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND stage_slug = ? AND iteration_number = ? AND user_id = ?", sessionID, stageSlug, iteration, userID).
		Order("created_at DESC").
		First(&fb).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to get feedback for stage iteration: %w", err)
	}
	return &fb, nil
}
