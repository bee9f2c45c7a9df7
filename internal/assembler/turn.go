package assembler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// HeaderContext is the planner's persisted output: per-document context
// the turn prompts consume. Stored as a header_context contribution.
type HeaderContext struct {
	SystemMaterials     map[string]any       `json:"system_materials,omitempty"`
	ContextForDocuments []ContextForDocument `json:"context_for_documents"`
}

// AssembleTurnPrompt builds and persists the prompt for one EXECUTE
// turn: a single document named by the payload's document_key, rendered
// from the step's document template with the planner's header context
// merged in. Header-context validation checks key presence against the
// recipe contract, never value types. Persistence is last.
func (a *Assembler) AssembleTurnPrompt(ctx context.Context, project *types.Project, session *types.Session, stage *StageContext, job *Job) (*AssembledPrompt, error) {
	ctx, span := a.tracer.Start(ctx, "assembler.AssembleTurnPrompt")
	defer span.End()

	if len(selectedModelIDs(session)) == 0 {
		return nil, fmt.Errorf("PRECONDITION_FAILED: Session must have at least one selected model.")
	}
	_, modelSlug, err := requireModelIdentity(job.Payload)
	if err != nil {
		return nil, err
	}
	step := stage.RecipeStep
	if step == nil {
		return nil, fmt.Errorf("PRECONDITION_FAILED: Stage context is missing recipe_step.")
	}
	documentKey, ok := payloadString(job.Payload, "document_key")
	if !ok {
		return nil, fmt.Errorf("PRECONDITION_FAILED: Job payload is missing 'document_key'.")
	}

	outputs, err := ParseOutputContract(step.OutputsRequired)
	if err != nil {
		return nil, err
	}
	if _, ok := outputs.FileFor(documentKey); !ok {
		return nil, fmt.Errorf("No files_to_generate entry found with from_document_key '%s' in recipe step.", documentKey)
	}

	var headerCtx *HeaderContext
	var contentToInclude map[string]any
	if stepNeedsHeaderContext(step.InputsRequired, stage.Stage.Slug) {
		headerCtx, err = a.loadHeaderContext(ctx, job.Payload)
		if err != nil {
			return nil, err
		}
		entry, ok := findContextEntry(headerCtx.ContextForDocuments, documentKey)
		if !ok {
			return nil, fmt.Errorf("No context_for_documents entry found with document_key '%s' in header_context.", documentKey)
		}
		if len(entry.ContentToInclude) == 0 {
			return nil, fmt.Errorf("content_to_include not filled in for document_key '%s' in header_context.", documentKey)
		}
		if contract, ok := outputs.ContextFor(documentKey); ok {
			if missing := missingKeys(contract.ContentToInclude, entry.ContentToInclude); len(missing) > 0 {
				return nil, fmt.Errorf("content_to_include for document_key '%s' is missing required keys from recipe step: %s", documentKey, strings.Join(missing, ", "))
			}
		}
		contentToInclude = entry.ContentToInclude
	}

	templateText, err := a.resolveTurnTemplate(ctx, project, step)
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
	if specific, ok := job.Payload["document_specific_data"].(map[string]any); ok {
		for k, v := range specific {
			vars[k] = v
		}
	}
	for k, v := range contentToInclude {
		vars[k] = v
	}
	if headerCtx != nil {
		vars["header_context"] = headerCtx
	}
	vars["document_key"] = documentKey

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
		ResourceType:         "turn_prompt",
		ModelSlug:            modelSlug,
		AttemptCount:         job.AttemptCount,
		DocumentKey:          documentKey,
		StepName:             step.StepName,
		BranchKey:            step.BranchKey,
		ParallelGroup:        step.ParallelGroup,
		SourceContributionID: sourceContributionID,
		Content:              rendered,
		MimeType:             "text/markdown",
		Description:          fmt.Sprintf("Turn prompt for document: %s", documentKey),
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to save turn prompt: %w", err)
	}
	a.log.Info("Assembled turn prompt",
		"session_id", session.ID.String(),
		"step_slug", step.StepSlug,
		"document_key", documentKey,
		"model_slug", modelSlug,
		"resource_id", resource.ID.String(),
	)
	return &AssembledPrompt{PromptContent: rendered, SourcePromptResourceID: resource.ID}, nil
}

// stepNeedsHeaderContext reports whether the step declares a
// header_context input rule.
func stepNeedsHeaderContext(inputsRequired []byte, stageSlug string) bool {
	for _, rule := range ParseSourceRules(inputsRequired, stageSlug) {
		if rule.Kind == RuleKindHeaderContext {
			return true
		}
	}
	return false
}

// loadHeaderContext fetches, downloads and parses the header_context
// contribution named by the payload's inputs.header_context_id.
func (a *Assembler) loadHeaderContext(ctx context.Context, payload map[string]any) (*HeaderContext, error) {
	inputs, _ := payload["inputs"].(map[string]any)
	headerID, ok := payloadUUID(inputs, "header_context_id")
	if !ok {
		return nil, fmt.Errorf("PRECONDITION_FAILED: Job payload is missing 'inputs.header_context_id'.")
	}
	contrib, err := a.deps.Contributions.GetByID(ctx, headerID)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch header_context contribution %s: %w", headerID, err)
	}
	if contrib == nil {
		return nil, fmt.Errorf("Failed to fetch header_context contribution %s: not found", headerID)
	}
	if contrib.ContributionType != "header_context" {
		return nil, fmt.Errorf("Contribution %s is not a header_context (got '%s')", headerID, contrib.ContributionType)
	}
	if contrib.StorageBucket == "" || contrib.FileName == "" {
		return nil, fmt.Errorf("Contribution %s has no stored header_context content", headerID)
	}
	raw, err := a.deps.Objects.Download(ctx, contrib.StorageBucket, objectPath(contrib.StoragePath, contrib.FileName))
	if err != nil {
		return nil, fmt.Errorf("Failed to download header_context content for contribution %s: %w", headerID, err)
	}
	var hc HeaderContext
	if err := json.Unmarshal(raw, &hc); err != nil {
		return nil, fmt.Errorf("Failed to parse header_context JSON for contribution %s: %w", headerID, err)
	}
	return &hc, nil
}

func findContextEntry(entries []ContextForDocument, documentKey string) (ContextForDocument, bool) {
	for _, e := range entries {
		if e.DocumentKey == documentKey {
			return e, true
		}
	}
	return ContextForDocument{}, false
}

// missingKeys returns the contract keys absent from got, sorted for a
// stable error message. Presence is all that is checked.
func missingKeys(contract map[string]any, got map[string]any) []string {
	var missing []string
	for k := range contract {
		if _, ok := got[k]; !ok {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

// resolveTurnTemplate loads the step's document template. Turn prompts
// must resolve through a document template; inline prompt_text is a
// planner-only convenience.
func (a *Assembler) resolveTurnTemplate(ctx context.Context, project *types.Project, step *types.RecipeStep) (string, error) {
	if step.PromptTemplateID == nil {
		return "", fmt.Errorf("PRECONDITION_FAILED: Recipe step '%s' has no prompt_template_id.", step.StepSlug)
	}
	tmpl, err := a.deps.Templates.GetPromptTemplate(ctx, *step.PromptTemplateID)
	if err != nil {
		return "", fmt.Errorf("Failed to fetch prompt template %s: %w", *step.PromptTemplateID, err)
	}
	if tmpl == nil {
		return "", fmt.Errorf("Failed to find turn prompt template with ID %s", *step.PromptTemplateID)
	}
	if tmpl.DocumentTemplateID == nil {
		return "", fmt.Errorf("Turn prompts must resolve templates via document_template_id (prompt template %s)", tmpl.ID)
	}
	return a.downloadDocumentTemplate(ctx, project, *tmpl.DocumentTemplateID)
}
