package assembler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

func overlayRow(position int, values string) *types.StageOverlay {
	return &types.StageOverlay{Position: position, OverlayValues: datatypes.JSON([]byte(values))}
}

func TestMergeOverlays_LastWriterWins(t *testing.T) {
	merged := MergeOverlays(
		map[string]any{"deployment_context": "project", "only_project": "p"},
		[]*types.StageOverlay{
			overlayRow(0, `{"deployment_context": "stage-0", "only_stage": "s0"}`),
			overlayRow(1, `{"deployment_context": "stage-1"}`),
		},
	)
	assert.Equal(t, "stage-1", merged["deployment_context"])
	assert.Equal(t, "p", merged["only_project"])
	assert.Equal(t, "s0", merged["only_stage"])
}

func TestMergeOverlays_MalformedOverlayIsIgnored(t *testing.T) {
	merged := MergeOverlays(
		map[string]any{"a": "project"},
		[]*types.StageOverlay{overlayRow(0, `{broken`)},
	)
	assert.Equal(t, map[string]any{"a": "project"}, merged)
}

func testProject() *types.Project {
	return &types.Project{
		ID:                uuid.New(),
		UserID:            uuid.New(),
		ProjectName:       "Deterministic assembly",
		InitialUserPrompt: "Build the thing",
		DomainName:        "Software Engineering",
		SelectedDomainID:  uuid.New(),
	}
}

func testSession(projectID uuid.UUID, models int) *types.Session {
	ids := "["
	for i := 0; i < models; i++ {
		if i > 0 {
			ids += ","
		}
		ids += `"` + uuid.NewString() + `"`
	}
	ids += "]"
	return &types.Session{
		ID:               uuid.New(),
		ProjectID:        projectID,
		SelectedModelIDs: datatypes.JSON([]byte(ids)),
		IterationCount:   1,
	}
}

func TestBuildContext_PromotesWhitelistedOverlayKeys(t *testing.T) {
	d := newTestDeps()
	a := newTestAssembler(t, d)
	project := testProject()
	project.UserDomainOverlayValues = datatypes.JSON([]byte(`{
		"deployment_context": "on-prem",
		"reference_documents": "RFC 1",
		"not_whitelisted": "should stay overlay-only"
	}`))
	session := testSession(project.ID, 2)
	stage := &StageContext{
		Stage: &types.Stage{ID: uuid.New(), Slug: "thesis"},
		Overlays: []*types.StageOverlay{
			overlayRow(0, `{"constraint_boundaries": "none", "deployment_context": "cloud"}`),
		},
	}

	dc, err := a.BuildContext(context.Background(), project, session, stage, project.InitialUserPrompt, 1)
	require.NoError(t, err)
	assert.Equal(t, "cloud", dc.DeploymentContext, "stage overlay overrides project value")
	assert.Equal(t, "RFC 1", dc.ReferenceDocuments)
	assert.Equal(t, "none", dc.ConstraintBoundaries)
	assert.Equal(t, "Software Engineering", dc.Domain)
	assert.Equal(t, 2, dc.AgentCount)

	vars := dc.Vars()
	assert.NotContains(t, vars, "not_whitelisted")
}

func TestBuildContext_ObjectiveIsProjectNameNotInitialPrompt(t *testing.T) {
	d := newTestDeps()
	a := newTestAssembler(t, d)
	project := testProject()
	project.ProjectName = "Test Project Objective"
	project.InitialUserPrompt = "This is the initial user prompt content."
	session := testSession(project.ID, 1)
	stage := &StageContext{Stage: &types.Stage{ID: uuid.New(), Slug: "thesis"}}

	dc, err := a.BuildContext(context.Background(), project, session, stage, project.InitialUserPrompt, 1)
	require.NoError(t, err)
	assert.Equal(t, "Test Project Objective", dc.UserObjective)
	assert.Equal(t, "This is the initial user prompt content.", dc.ContextDescription)

	vars := dc.Vars()
	assert.Equal(t, "Test Project Objective", vars["user_objective"])
	assert.Equal(t, "This is the initial user prompt content.", vars["context_description"])
}

func TestBuildContext_DeliverableFormatDefault(t *testing.T) {
	d := newTestDeps()
	a := newTestAssembler(t, d)
	project := testProject()
	session := testSession(project.ID, 1)

	bare := &StageContext{Stage: &types.Stage{ID: uuid.New(), Slug: "thesis"}}
	dc, err := a.BuildContext(context.Background(), project, session, bare, project.InitialUserPrompt, 1)
	require.NoError(t, err)
	assert.Equal(t, DefaultDeliverableFormat, dc.DeliverableFormat)
	assert.Equal(t, DefaultDeliverableFormat, dc.Vars()["deliverable_format"])

	overlaid := &StageContext{
		Stage:    &types.Stage{ID: uuid.New(), Slug: "thesis"},
		Overlays: []*types.StageOverlay{overlayRow(0, `{"deliverable_format": "LaTeX"}`)},
	}
	dc, err = a.BuildContext(context.Background(), project, session, overlaid, project.InitialUserPrompt, 1)
	require.NoError(t, err)
	assert.Equal(t, "LaTeX", dc.DeliverableFormat)
}

func TestDynamicContextVars_OmitsAbsentOptionalValues(t *testing.T) {
	dc := &DynamicContext{
		UserObjective:      "Test Project",
		Domain:             "Software Engineering",
		AgentCount:         1,
		ContextDescription: "the long version",
	}
	vars := dc.Vars()
	assert.NotContains(t, vars, "deployment_context")
	assert.NotContains(t, vars, "original_user_request")
	assert.NotContains(t, vars, "prior_stage_ai_outputs")
	assert.NotContains(t, vars, "prior_stage_user_feedback")

	out, err := RenderPrompt(
		"Objective: {{user_objective}}\nDeployment: {{deployment_context}}\nRequest: {{original_user_request}}",
		vars, nil, nil,
	)
	require.NoError(t, err)
	assert.Equal(t, "Objective: Test Project", out, "lines naming absent values are dropped, not left as bare labels")
}

func TestBuildContext_OriginalUserRequestOnlyForMultiStageStrategies(t *testing.T) {
	d := newTestDeps()
	a := newTestAssembler(t, d)
	project := testProject()
	session := testSession(project.ID, 1)

	single := &StageContext{
		Stage:      &types.Stage{ID: uuid.New(), Slug: "thesis"},
		RecipeStep: &types.RecipeStep{ProcessingStrategy: "single_pass"},
	}
	dc, err := a.BuildContext(context.Background(), project, session, single, project.InitialUserPrompt, 1)
	require.NoError(t, err)
	assert.Empty(t, dc.OriginalUserRequest)

	multi := &StageContext{
		Stage:      &types.Stage{ID: uuid.New(), Slug: "thesis"},
		RecipeStep: &types.RecipeStep{ProcessingStrategy: "task_isolation"},
	}
	dc, err = a.BuildContext(context.Background(), project, session, multi, project.InitialUserPrompt, 1)
	require.NoError(t, err)
	assert.Equal(t, "Build the thing", dc.OriginalUserRequest)
}

func TestBuildContext_WrapsGatherFailures(t *testing.T) {
	d := newTestDeps()
	d.stages.names["thesis"] = "Thesis"
	a := newTestAssembler(t, d)
	project := testProject()
	session := testSession(project.ID, 1)
	stage := &StageContext{
		Stage: &types.Stage{
			ID:                 uuid.New(),
			Slug:               "antithesis",
			InputArtifactRules: datatypes.JSON([]byte(`[{"type": "contribution", "stage_slug": "thesis"}]`)),
		},
	}

	_, err := a.BuildContext(context.Background(), project, session, stage, project.InitialUserPrompt, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to gather inputs for prompt assembly: ")
	assert.Contains(t, err.Error(), "Required contributions for stage 'Thesis' were not found.")
}

func TestDynamicContextVars_PriorStageBlocks(t *testing.T) {
	dc := &DynamicContext{
		SourceDocuments: []SourceDocument{
			{Type: DocumentTypeDocument, Content: "take one", Metadata: SourceDocumentMetadata{Header: "Thesis Documents", ModelName: "Model A", DocumentKey: "business_case"}},
			{Type: DocumentTypeDocument, Content: "take two", Metadata: SourceDocumentMetadata{Header: "Thesis Documents", ModelName: "Model B", DocumentKey: "business_case"}},
			{Type: DocumentTypeFeedback, Content: "do better", Metadata: SourceDocumentMetadata{Header: "Thesis Feedback", DocumentKey: "user_feedback"}},
		},
	}
	vars := dc.Vars()

	outputs, ok := vars["prior_stage_ai_outputs"].(string)
	require.True(t, ok)
	assert.Contains(t, outputs, "### Thesis Documents")
	assert.Contains(t, outputs, "#### Contribution from Model A")
	assert.Contains(t, outputs, "take one")
	assert.Contains(t, outputs, "#### Contribution from Model B")
	assert.NotContains(t, outputs, "do better")

	feedback, ok := vars["prior_stage_user_feedback"].(string)
	require.True(t, ok)
	assert.Contains(t, feedback, "### Thesis Feedback")
	assert.Contains(t, feedback, "do better")
	assert.NotContains(t, feedback, "take one")
}

func TestSelectedModelIDs(t *testing.T) {
	assert.Nil(t, selectedModelIDs(nil))
	assert.Nil(t, selectedModelIDs(&types.Session{}))
	assert.Nil(t, selectedModelIDs(&types.Session{SelectedModelIDs: datatypes.JSON([]byte(`{broken`))}))
	assert.Nil(t, selectedModelIDs(&types.Session{SelectedModelIDs: datatypes.JSON([]byte(`[]`))}))
	assert.Len(t, selectedModelIDs(&types.Session{SelectedModelIDs: datatypes.JSON([]byte(`["a", "b"]`))}), 2)
	assert.Len(t, selectedModelIDs(&types.Session{SelectedModelIDs: datatypes.JSON([]byte(`["a", " "]`))}), 1)
}
