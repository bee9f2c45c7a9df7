package assembler

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// plannerContextInstructions is the editable guidance embedded in the
// context_for_documents payload a PLAN prompt renders.
const plannerContextInstructions = "For each document below, fill content_to_include using only material drawn from the provided source documents. Leave no key empty; write 'none' where the sources offer nothing."

// AssemblePlannerPrompt builds and persists the prompt for a PLAN job:
// the step's template rendered with the gathered inputs flattened into
// dot-notation variables and the step's context_for_documents contract
// embedded for the model to fill. Fails closed before any persistence.
func (a *Assembler) AssemblePlannerPrompt(ctx context.Context, project *types.Project, session *types.Session, stage *StageContext, job *Job) (*AssembledPrompt, error) {
	ctx, span := a.tracer.Start(ctx, "assembler.AssemblePlannerPrompt")
	defer span.End()

	if len(selectedModelIDs(session)) == 0 {
		return nil, fmt.Errorf("PRECONDITION_FAILED: Session must have at least one selected model.")
	}
	modelID, modelSlug, err := requireModelIdentity(job.Payload)
	if err != nil {
		return nil, err
	}
	step := stage.RecipeStep
	if step == nil {
		return nil, fmt.Errorf("PRECONDITION_FAILED: Stage context is missing recipe_step.")
	}

	outputs, err := ParseOutputContract(step.OutputsRequired)
	if err != nil {
		return nil, err
	}
	if len(outputs.ContextForDocuments) == 0 {
		return nil, fmt.Errorf("PRECONDITION_FAILED: PLAN job requires context_for_documents in recipe_step.outputs_required")
	}

	model, err := a.deps.Models.GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch model details for id %s: %w", modelID, err)
	}
	if model == nil {
		return nil, fmt.Errorf("Failed to fetch model details for id %s: not found", modelID)
	}

	templateText, err := a.resolvePlannerTemplate(ctx, project, step)
	if err != nil {
		return nil, err
	}

	dc, err := a.BuildContext(ctx, project, session, stage, project.InitialUserPrompt, session.IterationCount)
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
	vars["context_for_documents"] = map[string]any{
		"_instructions": plannerContextInstructions,
		"documents":     outputs.ContextForDocuments,
	}
	vars["model_name"] = model.Name

	rendered, err := a.render(stage, templateText, vars, parseOverlay(project.UserDomainOverlayValues))
	if err != nil {
		return nil, err
	}

	var sourceContributionID *uuid.UUID
	if id, ok := payloadUUID(job.Payload, "target_contribution_id"); ok {
		sourceContributionID = &id
	}
	resource, err := a.deps.Artifacts.Upload(ctx, UploadInput{
		ProjectID:            project.ID,
		SessionID:            session.ID,
		UserID:               project.UserID,
		Iteration:            session.IterationCount,
		StageSlug:            stage.Stage.Slug,
		ResourceType:         "planner_prompt",
		ModelSlug:            modelSlug,
		AttemptCount:         job.AttemptCount,
		StepName:             step.StepName,
		BranchKey:            step.BranchKey,
		ParallelGroup:        step.ParallelGroup,
		SourceContributionID: sourceContributionID,
		Content:              rendered,
		MimeType:             "text/markdown",
		Description:          fmt.Sprintf("Planner prompt for step: %s", step.StepName),
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to save planner prompt: %w", err)
	}
	a.log.Info("Assembled planner prompt",
		"session_id", session.ID.String(),
		"step_slug", step.StepSlug,
		"model_slug", modelSlug,
		"resource_id", resource.ID.String(),
	)
	return &AssembledPrompt{PromptContent: rendered, SourcePromptResourceID: resource.ID}, nil
}

// resolvePlannerTemplate loads the step's template by its exact
// prompt_template_id. Inline prompt_text wins; otherwise the linked
// document template is downloaded. There is no name- or pattern-based
// fallback.
func (a *Assembler) resolvePlannerTemplate(ctx context.Context, project *types.Project, step *types.RecipeStep) (string, error) {
	if step.PromptTemplateID == nil {
		return "", fmt.Errorf("PRECONDITION_FAILED: Recipe step '%s' has no prompt_template_id.", step.StepSlug)
	}
	tmpl, err := a.deps.Templates.GetPromptTemplate(ctx, *step.PromptTemplateID)
	if err != nil {
		return "", fmt.Errorf("Failed to fetch prompt template %s: %w", *step.PromptTemplateID, err)
	}
	if tmpl == nil {
		return "", fmt.Errorf("Failed to find planner prompt template with ID %s", *step.PromptTemplateID)
	}
	if tmpl.PromptText != nil && strings.TrimSpace(*tmpl.PromptText) != "" {
		return *tmpl.PromptText, nil
	}
	if tmpl.DocumentTemplateID == nil {
		return "", fmt.Errorf("Prompt template %s has neither prompt_text nor document_template_id", tmpl.ID)
	}
	return a.downloadDocumentTemplate(ctx, project, *tmpl.DocumentTemplateID)
}

// downloadDocumentTemplate resolves a storage-backed template body,
// scoped to the project's selected domain and restricted to active
// rows.
func (a *Assembler) downloadDocumentTemplate(ctx context.Context, project *types.Project, documentTemplateID uuid.UUID) (string, error) {
	if project.SelectedDomainID == uuid.Nil {
		return "", fmt.Errorf("Project %s has no selected domain for template resolution", project.ID)
	}
	doc, err := a.deps.Templates.GetActiveDocumentTemplate(ctx, documentTemplateID, project.SelectedDomainID)
	if err != nil {
		return "", fmt.Errorf("Failed to fetch document template %s: %w", documentTemplateID, err)
	}
	if doc == nil {
		return "", fmt.Errorf("Failed to find active document template %s for domain %s", documentTemplateID, project.SelectedDomainID)
	}
	content, err := a.deps.Objects.Download(ctx, doc.StorageBucket, objectPath(doc.StoragePath, doc.FileName))
	if err != nil {
		return "", fmt.Errorf("Failed to download template from storage: %w", err)
	}
	return string(content), nil
}
