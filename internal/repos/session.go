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

// SessionRepo reads session rows, optionally with the owning project
// preloaded.
type SessionRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.Session, error)
	GetWithProject(ctx context.Context, id uuid.UUID) (*types.Session, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: log.With("repo", "SessionRepo")}
}

func (r *sessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	var s types.Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to get session: %w", err)
	}
	return &s, nil
}

func (r *sessionRepo) GetWithProject(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	var s types.Session
	err := r.db.WithContext(ctx).Preload("Project").First(&s, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to get session with project: %w", err)
	}
	return &s, nil
}
