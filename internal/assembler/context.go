package assembler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// DynamicContext is the per-call bundle of everything the renderer may
// substitute into a template. Built fresh for every assembly; never
// cached or persisted.
type DynamicContext struct {
	UserObjective       string
	Domain              string
	AgentCount          int
	ContextDescription  string
	OriginalUserRequest string
	SourceDocuments     []SourceDocument
	RecipeStep          *types.RecipeStep

	// Promoted overlay values. Only these five keys cross from the
	// merged overlays into the context proper; everything else stays
	// overlay-only for the renderer's fallback lookup.
	DeploymentContext         string
	ReferenceDocuments        string
	ConstraintBoundaries      string
	StakeholderConsiderations string
	DeliverableFormat         string
}

// overlayWhitelist is the closed set of overlay keys promoted into the
// dynamic context.
var overlayWhitelist = []string{
	"deployment_context",
	"reference_documents",
	"constraint_boundaries",
	"stakeholder_considerations",
	"deliverable_format",
}

// MergeOverlays merges the project-level overlay with the stage
// overlays, in that order, last writer wins per key. Stage overlays
// must already be in Position order; the stage repo guarantees that.
func MergeOverlays(projectOverlay map[string]any, stageOverlays []*types.StageOverlay) map[string]any {
	merged := make(map[string]any, len(projectOverlay))
	for k, v := range projectOverlay {
		merged[k] = v
	}
	for _, ov := range stageOverlays {
		for k, v := range parseOverlay(ov.OverlayValues) {
			merged[k] = v
		}
	}
	return merged
}

// multiStageStrategies are the processing strategies whose prompts
// restate the original user request alongside prior stage output.
func isMultiStageStrategy(strategy string) bool {
	switch strategy {
	case "task_isolation", "multi_stage", "all_to_one":
		return true
	default:
		return false
	}
}

// BuildContext gathers the step's declared inputs and assembles the
// dynamic context for rendering. Gather failures are wrapped once and
// logged with the owning ids; no partial context escapes.
func (a *Assembler) BuildContext(ctx context.Context, project *types.Project, session *types.Session, stage *StageContext, initialPrompt string, iteration int) (*DynamicContext, error) {
	rules := a.rulesFor(stage)
	docs, err := a.Gather(ctx, rules, session.ID, iteration, project.UserID)
	if err != nil {
		a.log.Error("Failed to gather inputs for prompt assembly",
			"project_id", project.ID.String(),
			"session_id", session.ID.String(),
			"stage_slug", stage.Stage.Slug,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("Failed to gather inputs for prompt assembly: %w", err)
	}

	// The project name is the objective; the initial prompt is the
	// longer context description behind it.
	dc := &DynamicContext{
		UserObjective:      project.ProjectName,
		Domain:             project.DomainName,
		AgentCount:         len(selectedModelIDs(session)),
		ContextDescription: initialPrompt,
		SourceDocuments:    docs,
		RecipeStep:         stage.RecipeStep,
	}
	if stage.RecipeStep != nil && isMultiStageStrategy(stage.RecipeStep.ProcessingStrategy) {
		dc.OriginalUserRequest = initialPrompt
	}

	merged := MergeOverlays(parseOverlay(project.UserDomainOverlayValues), stage.Overlays)
	promote := func(key string, dst *string) {
		if v, ok := merged[key]; ok {
			if s, ok := v.(string); ok {
				*dst = s
			}
		}
	}
	promote("deployment_context", &dc.DeploymentContext)
	promote("reference_documents", &dc.ReferenceDocuments)
	promote("constraint_boundaries", &dc.ConstraintBoundaries)
	promote("stakeholder_considerations", &dc.StakeholderConsiderations)
	promote("deliverable_format", &dc.DeliverableFormat)
	if dc.DeliverableFormat == "" {
		dc.DeliverableFormat = DefaultDeliverableFormat
	}
	return dc, nil
}

// DefaultDeliverableFormat applies when no overlay supplies a
// deliverable_format value.
const DefaultDeliverableFormat = "Standard markdown format."

// rulesFor combines the stage's artifact rules with the recipe step's
// inputs. Step-level declarations win when both exist; the stage rules
// are the fallback for recipe-less stages.
func (a *Assembler) rulesFor(stage *StageContext) []SourceRule {
	if stage.RecipeStep != nil && len(stage.RecipeStep.InputsRequired) > 0 {
		if rules := ParseSourceRules(stage.RecipeStep.InputsRequired, stage.Stage.Slug); len(rules) > 0 {
			return rules
		}
	}
	return ParseSourceRules(stage.Stage.InputArtifactRules, stage.Stage.Slug)
}

// selectedModelIDs decodes the session's selected model list. Malformed
// columns read as empty; the precondition check reports that as "no
// models selected" rather than a parse error.
func selectedModelIDs(session *types.Session) []string {
	if session == nil || len(session.SelectedModelIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(session.SelectedModelIDs, &ids); err != nil {
		return nil
	}
	out := ids[:0]
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Vars flattens the context into the renderer's lookup map. Prior stage
// output is exposed two ways: the aggregate prior_stage_ai_outputs /
// prior_stage_user_feedback blocks used by seed templates, and the
// per-document dot-notation keys added separately by DocumentVars.
// Optional values with no content are omitted entirely, so lines
// referencing them fall to the renderer's line-drop policy instead of
// surviving as dangling labels.
func (dc *DynamicContext) Vars() map[string]any {
	vars := map[string]any{
		"user_objective":      dc.UserObjective,
		"domain":              dc.Domain,
		"agent_count":         dc.AgentCount,
		"context_description": dc.ContextDescription,
	}
	setIfPresent := func(key, val string) {
		if val != "" {
			vars[key] = val
		}
	}
	setIfPresent("original_user_request", dc.OriginalUserRequest)
	setIfPresent("deployment_context", dc.DeploymentContext)
	setIfPresent("reference_documents", dc.ReferenceDocuments)
	setIfPresent("constraint_boundaries", dc.ConstraintBoundaries)
	setIfPresent("stakeholder_considerations", dc.StakeholderConsiderations)
	setIfPresent("deliverable_format", dc.DeliverableFormat)
	setIfPresent("prior_stage_ai_outputs", dc.renderDocumentsBlock(DocumentTypeDocument))
	setIfPresent("prior_stage_user_feedback", dc.renderDocumentsBlock(DocumentTypeFeedback))
	return vars
}

// renderDocumentsBlock concatenates gathered documents of one type into
// a markdown block, grouped under their section headers in gather
// order, with per-model attribution headings.
func (dc *DynamicContext) renderDocumentsBlock(kind DocumentType) string {
	var b strings.Builder
	lastHeader := ""
	for _, doc := range dc.SourceDocuments {
		if doc.Type != kind {
			continue
		}
		header := doc.Metadata.Header
		if header != "" && header != lastHeader {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString("### " + header + "\n\n")
			lastHeader = header
		}
		if kind == DocumentTypeDocument && doc.Metadata.ModelName != "" {
			b.WriteString("#### Contribution from " + doc.Metadata.ModelName + "\n")
		}
		b.WriteString(doc.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
