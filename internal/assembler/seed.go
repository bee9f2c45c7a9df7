package assembler

import (
	"context"
	"fmt"

	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// AssembleSeedPrompt builds and persists the opening prompt for a stage
// iteration: the stage's default template rendered against the dynamic
// context. The seed is shared by every selected model, so no model
// identity is attached. Persistence is the final step; on any failure
// before it, nothing has been written.
func (a *Assembler) AssembleSeedPrompt(ctx context.Context, project *types.Project, session *types.Session, stage *StageContext, iteration int) (*AssembledPrompt, error) {
	ctx, span := a.tracer.Start(ctx, "assembler.AssembleSeedPrompt")
	defer span.End()

	if len(selectedModelIDs(session)) == 0 {
		return nil, fmt.Errorf("PRECONDITION_FAILED: Session must have at least one selected model.")
	}

	dc, err := a.BuildContext(ctx, project, session, stage, project.InitialUserPrompt, iteration)
	if err != nil {
		return nil, err
	}
	vars := dc.Vars()
	docVars, err := DocumentVars(dc.SourceDocuments)
	if err != nil {
		return nil, fmt.Errorf("Failed to render prompt: %w", err)
	}
	for k, v := range docVars {
		vars[k] = v
	}

	rendered, err := a.render(stage, stage.PromptText, vars, parseOverlay(project.UserDomainOverlayValues))
	if err != nil {
		return nil, err
	}

	in := UploadInput{
		ProjectID:    project.ID,
		SessionID:    session.ID,
		UserID:       project.UserID,
		Iteration:    iteration,
		StageSlug:    stage.Stage.Slug,
		ResourceType: "seed_prompt",
		Content:      rendered,
		MimeType:     "text/markdown",
		Description:  fmt.Sprintf("Seed prompt for stage: %s", stage.Stage.Slug),
	}
	if stage.RecipeStep != nil {
		in.StepName = stage.RecipeStep.StepName
		in.BranchKey = stage.RecipeStep.BranchKey
		in.ParallelGroup = stage.RecipeStep.ParallelGroup
	}
	resource, err := a.deps.Artifacts.Upload(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("Failed to save seed prompt: %w", err)
	}
	a.log.Info("Assembled seed prompt",
		"session_id", session.ID.String(),
		"stage_slug", stage.Stage.Slug,
		"iteration", iteration,
		"resource_id", resource.ID.String(),
	)
	return &AssembledPrompt{PromptContent: rendered, SourcePromptResourceID: resource.ID}, nil
}
