// Package assembler is the recipe-driven prompt-assembly core. It
// gathers prior stage artifacts according to a recipe step's source
// rules, renders them through the template language, reconstructs
// chunked conversation histories, and persists assembled prompts.
package assembler

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// DocumentType classifies a gathered source document.
type DocumentType string

const (
	DocumentTypeDocument DocumentType = "document"
	DocumentTypeFeedback DocumentType = "feedback"
)

// SourceDocumentMetadata labels a gathered document for rendering.
// Header and DocumentKey together form the dot-notation template
// variable name; ModelName attributes multi-model concatenation.
type SourceDocumentMetadata struct {
	DisplayName string
	Header      string
	ModelName   string
	DocumentKey string
}

// SourceDocument is one gathered unit of prior output. Constructed
// fresh on every gather call, never persisted.
type SourceDocument struct {
	ID       string
	Type     DocumentType
	Content  string
	Metadata SourceDocumentMetadata
}

// Role is a conversation message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a reconstructed conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	ID      string `json:"id,omitempty"`
}

// ContinuePrompt is the synthetic user turn inserted between assistant
// chunks of a continued generation.
const ContinuePrompt = "Please continue."

// AssembledPrompt is the result of an orchestrator call: the rendered
// text plus the persisted resource holding it.
type AssembledPrompt struct {
	PromptContent          string    `json:"promptContent"`
	SourcePromptResourceID uuid.UUID `json:"source_prompt_resource_id"`
}

// StageContext bundles everything the assembler needs to know about the
// stage being assembled: the stage row, its ordered overlays, the
// stage's default template text, and the recipe step driving this run.
type StageContext struct {
	Stage      *types.Stage
	Overlays   []*types.StageOverlay
	PromptText string
	RecipeStep *types.RecipeStep
}

// ContributionStore reads contribution rows. ListLatestForStage returns
// only latest-edit rows; ListByRoot matches rows whose relationships
// contain rootID under stageSlug.
type ContributionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.Contribution, error)
	ListLatestForStage(ctx context.Context, sessionID uuid.UUID, iteration int, stageSlug string) ([]*types.Contribution, error)
	ListByRoot(ctx context.Context, stageSlug string, rootID uuid.UUID) ([]*types.Contribution, error)
}

// FeedbackStore reads the single feedback row for a stage iteration.
type FeedbackStore interface {
	GetForIteration(ctx context.Context, sessionID uuid.UUID, stageSlug string, iteration int, userID uuid.UUID) (*types.Feedback, error)
}

// StageStore resolves display names for stage slugs.
type StageStore interface {
	DisplayNames(ctx context.Context, slugs []string) (map[string]string, error)
}

// TemplateStore resolves prompt templates by exact id and their
// storage-backed document templates, domain-scoped and active-only.
type TemplateStore interface {
	GetPromptTemplate(ctx context.Context, id uuid.UUID) (*types.PromptTemplate, error)
	GetActiveDocumentTemplate(ctx context.Context, id uuid.UUID, domainID uuid.UUID) (*types.DocumentTemplate, error)
}

// ModelStore reads model provider rows for attribution.
type ModelStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.ModelProvider, error)
}

// ObjectStore downloads blob content. Content is always UTF-8 text in
// this core.
type ObjectStore interface {
	Download(ctx context.Context, bucket, path string) ([]byte, error)
}

// UploadInput carries the path context and content for one persisted
// prompt artifact.
type UploadInput struct {
	ProjectID            uuid.UUID
	SessionID            uuid.UUID
	UserID               uuid.UUID
	Iteration            int
	StageSlug            string
	ResourceType         string
	ModelSlug            string
	AttemptCount         int
	DocumentKey          string
	StepName             string
	BranchKey            *string
	ParallelGroup        *string
	SourceContributionID *uuid.UUID
	Content              string
	MimeType             string
	Description          string
}

// ArtifactStore persists an assembled prompt and registers its record.
type ArtifactStore interface {
	Upload(ctx context.Context, in UploadInput) (*types.ProjectResource, error)
}

// Deps are the narrow collaborator interfaces the assembler depends on,
// injected once at construction.
type Deps struct {
	Contributions ContributionStore
	Feedback      FeedbackStore
	Stages        StageStore
	Templates     TemplateStore
	Models        ModelStore
	Objects       ObjectStore
	Artifacts     ArtifactStore
}

type Assembler struct {
	log    *logger.Logger
	tracer trace.Tracer
	deps   Deps
}

func New(log *logger.Logger, deps Deps) *Assembler {
	return &Assembler{
		log:    log.With("component", "Assembler"),
		tracer: otel.Tracer("assembler"),
		deps:   deps,
	}
}

// parseOverlay decodes a jsonb overlay column into a map. Nil, empty
// and malformed input all yield an empty map; overlays are permissive.
func parseOverlay(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
