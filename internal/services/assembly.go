package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dialecticlabs/dialectic-backend/internal/assembler"
	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/repos"
	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// SeedRequest names the stage iteration a seed prompt is assembled for.
// Iteration zero means "the session's current iteration".
type SeedRequest struct {
	SessionID uuid.UUID `json:"session_id" binding:"required"`
	StageSlug string    `json:"stage_slug" binding:"required"`
	Iteration int       `json:"iteration"`
}

// JobRequest carries one planner or turn job.
type JobRequest struct {
	SessionID    uuid.UUID      `json:"session_id" binding:"required"`
	StageSlug    string         `json:"stage_slug" binding:"required"`
	RecipeStepID uuid.UUID      `json:"recipe_step_id" binding:"required"`
	JobID        uuid.UUID      `json:"job_id"`
	AttemptCount int            `json:"attempt_count"`
	Payload      map[string]any `json:"payload"`
}

// AssemblyService is the API-facing façade: it loads the row bundles
// the assembler needs and delegates. No assembly logic lives here.
type AssemblyService interface {
	AssembleSeed(ctx context.Context, userID uuid.UUID, req SeedRequest) (*assembler.AssembledPrompt, error)
	AssemblePlanner(ctx context.Context, userID uuid.UUID, req JobRequest) (*assembler.AssembledPrompt, error)
	AssembleTurn(ctx context.Context, userID uuid.UUID, req JobRequest) (*assembler.AssembledPrompt, error)
	ReconstructConversation(ctx context.Context, userID uuid.UUID, rootID uuid.UUID) ([]assembler.Message, error)
}

type assemblyService struct {
	sessions  repos.SessionRepo
	stages    repos.StageRepo
	steps     repos.RecipeStepRepo
	templates repos.TemplateRepo
	asm       *assembler.Assembler
	log       *logger.Logger
}

func NewAssemblyService(
	sessions repos.SessionRepo,
	stages repos.StageRepo,
	steps repos.RecipeStepRepo,
	templates repos.TemplateRepo,
	asm *assembler.Assembler,
	log *logger.Logger,
) AssemblyService {
	return &assemblyService{
		sessions:  sessions,
		stages:    stages,
		steps:     steps,
		templates: templates,
		asm:       asm,
		log:       log.With("service", "AssemblyService"),
	}
}

func (s *assemblyService) AssembleSeed(ctx context.Context, userID uuid.UUID, req SeedRequest) (*assembler.AssembledPrompt, error) {
	session, project, err := s.loadSession(ctx, userID, req.SessionID)
	if err != nil {
		return nil, err
	}
	stage, err := s.loadStageContext(ctx, req.StageSlug, nil)
	if err != nil {
		return nil, err
	}
	iteration := req.Iteration
	if iteration <= 0 {
		iteration = session.IterationCount
	}
	return s.asm.AssembleSeedPrompt(ctx, project, session, stage, iteration)
}

func (s *assemblyService) AssemblePlanner(ctx context.Context, userID uuid.UUID, req JobRequest) (*assembler.AssembledPrompt, error) {
	session, project, stage, job, err := s.loadJob(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return s.asm.AssemblePlannerPrompt(ctx, project, session, stage, job)
}

func (s *assemblyService) AssembleTurn(ctx context.Context, userID uuid.UUID, req JobRequest) (*assembler.AssembledPrompt, error) {
	session, project, stage, job, err := s.loadJob(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return s.asm.AssembleTurnPrompt(ctx, project, session, stage, job)
}

func (s *assemblyService) ReconstructConversation(ctx context.Context, userID uuid.UUID, rootID uuid.UUID) ([]assembler.Message, error) {
	return s.asm.ReconstructConversation(ctx, rootID)
}

func (s *assemblyService) loadJob(ctx context.Context, userID uuid.UUID, req JobRequest) (*types.Session, *types.Project, *assembler.StageContext, *assembler.Job, error) {
	session, project, err := s.loadSession(ctx, userID, req.SessionID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	step, err := s.steps.GetByID(ctx, req.RecipeStepID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if step == nil {
		return nil, nil, nil, nil, fmt.Errorf("Recipe step %s not found", req.RecipeStepID)
	}
	stage, err := s.loadStageContext(ctx, req.StageSlug, step)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	job := &assembler.Job{
		ID:           req.JobID,
		JobType:      step.JobType,
		AttemptCount: req.AttemptCount,
		Payload:      req.Payload,
	}
	return session, project, stage, job, nil
}

func (s *assemblyService) loadSession(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) (*types.Session, *types.Project, error) {
	session, err := s.sessions.GetWithProject(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil || session.Project == nil {
		return nil, nil, fmt.Errorf("Session %s not found", sessionID)
	}
	if session.Project.UserID != userID {
		return nil, nil, fmt.Errorf("Session %s does not belong to the requesting user", sessionID)
	}
	return session, session.Project, nil
}

// loadStageContext bundles the stage row, its Position-ordered overlays
// and the stage's default template text for the assembler.
func (s *assemblyService) loadStageContext(ctx context.Context, stageSlug string, step *types.RecipeStep) (*assembler.StageContext, error) {
	stage, err := s.stages.GetBySlug(ctx, stageSlug)
	if err != nil {
		return nil, err
	}
	if stage == nil {
		return nil, fmt.Errorf("Stage '%s' not found", stageSlug)
	}
	overlays, err := s.stages.ListOverlays(ctx, stage.ID)
	if err != nil {
		return nil, err
	}
	promptText := ""
	if stage.DefaultPromptTemplateID != nil {
		tmpl, err := s.templates.GetPromptTemplate(ctx, *stage.DefaultPromptTemplateID)
		if err != nil {
			return nil, err
		}
		if tmpl != nil && tmpl.PromptText != nil {
			promptText = *tmpl.PromptText
		}
	}
	return &assembler.StageContext{
		Stage:      stage,
		Overlays:   overlays,
		PromptText: promptText,
		RecipeStep: step,
	}, nil
}
