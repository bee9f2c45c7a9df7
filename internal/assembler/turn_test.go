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

const executeOutputs = `{
	"files_to_generate": [{"from_document_key": "prd", "filename": "prd.md"}],
	"context_for_documents": [{"document_key": "prd", "content_to_include": {"summary": "", "risks": ""}}]
}`

const headerContextBody = `{
	"context_for_documents": [{"document_key": "prd", "content_to_include": {"summary": "short version", "risks": "few"}}]
}`

func turnFixture(t *testing.T) (*testDeps, *Assembler, *types.Project, *types.Session, *StageContext, *Job) {
	t.Helper()
	d := newTestDeps()
	project := testProject()
	session := testSession(project.ID, 1)

	promptID := uuid.New()
	docID := uuid.New()
	d.templates.prompts[promptID] = &types.PromptTemplate{ID: promptID, DocumentTemplateID: &docID}
	d.templates.docs[docID] = &types.DocumentTemplate{ID: docID, DomainID: project.SelectedDomainID, IsActive: true, StorageBucket: "templates", StoragePath: "t", FileName: "turn.md"}
	d.objects.blobs[blobKey("templates", "t/turn.md")] = []byte("Write {{document_key}}.\nSummary hint: {{summary}}\nRisks: {{risks}}")

	header := &types.Contribution{
		ID:               uuid.New(),
		Stage:            "antithesis",
		ContributionType: "header_context",
		StorageBucket:    "artifacts",
		StoragePath:      "p/header",
		FileName:         "header.json",
	}
	d.contributions.byID[header.ID] = header
	d.objects.blobs[blobKey("artifacts", "p/header/header.json")] = []byte(headerContextBody)

	step := &types.RecipeStep{
		ID:               uuid.New(),
		StepName:         "Generate Documents",
		StepSlug:         "generate-documents",
		JobType:          "EXECUTE",
		PromptTemplateID: &promptID,
		InputsRequired:   datatypes.JSON([]byte(`[{"type": "header_context"}]`)),
		OutputsRequired:  datatypes.JSON([]byte(executeOutputs)),
	}
	stage := &StageContext{
		Stage:      &types.Stage{ID: uuid.New(), Slug: "antithesis"},
		RecipeStep: step,
	}
	modelID := uuid.New()
	job := &Job{
		ID:           uuid.New(),
		JobType:      "EXECUTE",
		AttemptCount: 1,
		Payload: map[string]any{
			"model_id":     modelID.String(),
			"model_slug":   "claude",
			"document_key": "prd",
			"inputs":       map[string]any{"header_context_id": header.ID.String()},
		},
	}
	return d, newTestAssembler(t, d), project, session, stage, job
}

func TestAssembleTurnPrompt_HappyPath(t *testing.T) {
	d, a, project, session, stage, job := turnFixture(t)

	result, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
	require.NoError(t, err)
	assert.Contains(t, result.PromptContent, "Write prd.")
	assert.Contains(t, result.PromptContent, "Summary hint: short version")
	assert.Contains(t, result.PromptContent, "Risks: few")

	require.Len(t, d.artifacts.uploads, 1)
	up := d.artifacts.uploads[0]
	assert.Equal(t, "turn_prompt", up.ResourceType)
	assert.Equal(t, "prd", up.DocumentKey)
	assert.Equal(t, "claude", up.ModelSlug)
	assert.Equal(t, "Generate Documents", up.StepName)
}

func TestAssembleTurnPrompt_Preconditions(t *testing.T) {
	t.Run("missing document_key", func(t *testing.T) {
		d, a, project, session, stage, job := turnFixture(t)
		delete(job.Payload, "document_key")
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		assert.EqualError(t, err, "PRECONDITION_FAILED: Job payload is missing 'document_key'.")
		assert.Empty(t, d.artifacts.uploads)
	})

	t.Run("legacy step_info rejected", func(t *testing.T) {
		_, a, project, session, stage, job := turnFixture(t)
		job.Payload["step_info"] = map[string]any{}
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		assert.EqualError(t, err, "PRECONDITION_FAILED: Legacy 'step_info' object found in job payload. This field is deprecated.")
	})

	t.Run("missing recipe step", func(t *testing.T) {
		_, a, project, session, stage, job := turnFixture(t)
		stage.RecipeStep = nil
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		assert.EqualError(t, err, "PRECONDITION_FAILED: Stage context is missing recipe_step.")
	})

	t.Run("document_key not in files_to_generate", func(t *testing.T) {
		_, a, project, session, stage, job := turnFixture(t)
		job.Payload["document_key"] = "unknown_doc"
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		assert.EqualError(t, err, "No files_to_generate entry found with from_document_key 'unknown_doc' in recipe step.")
	})
}

func TestAssembleTurnPrompt_HeaderContextValidation(t *testing.T) {
	t.Run("missing header_context_id", func(t *testing.T) {
		_, a, project, session, stage, job := turnFixture(t)
		delete(job.Payload, "inputs")
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		assert.EqualError(t, err, "PRECONDITION_FAILED: Job payload is missing 'inputs.header_context_id'.")
	})

	t.Run("wrong contribution type", func(t *testing.T) {
		d, a, project, session, stage, job := turnFixture(t)
		headerID := uuid.MustParse(job.Payload["inputs"].(map[string]any)["header_context_id"].(string))
		d.contributions.byID[headerID].ContributionType = "document"
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a header_context")
	})

	t.Run("entry missing names the document key", func(t *testing.T) {
		d, a, project, session, stage, job := turnFixture(t)
		d.objects.blobs[blobKey("artifacts", "p/header/header.json")] = []byte(`{"context_for_documents": [{"document_key": "other", "content_to_include": {"x": 1}}]}`)
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		assert.EqualError(t, err, "No context_for_documents entry found with document_key 'prd' in header_context.")
	})

	t.Run("empty content_to_include", func(t *testing.T) {
		d, a, project, session, stage, job := turnFixture(t)
		d.objects.blobs[blobKey("artifacts", "p/header/header.json")] = []byte(`{"context_for_documents": [{"document_key": "prd", "content_to_include": {}}]}`)
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		assert.EqualError(t, err, "content_to_include not filled in for document_key 'prd' in header_context.")
	})

	t.Run("missing contract keys are named", func(t *testing.T) {
		d, a, project, session, stage, job := turnFixture(t)
		d.objects.blobs[blobKey("artifacts", "p/header/header.json")] = []byte(`{"context_for_documents": [{"document_key": "prd", "content_to_include": {"summary": "only this"}}]}`)
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		assert.EqualError(t, err, "content_to_include for document_key 'prd' is missing required keys from recipe step: risks")
	})

	t.Run("value types are not checked", func(t *testing.T) {
		d, a, project, session, stage, job := turnFixture(t)
		d.objects.blobs[blobKey("artifacts", "p/header/header.json")] = []byte(`{"context_for_documents": [{"document_key": "prd", "content_to_include": {"summary": 42, "risks": ["a", "b"]}}]}`)
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		assert.NoError(t, err)
	})

	t.Run("malformed header json", func(t *testing.T) {
		d, a, project, session, stage, job := turnFixture(t)
		d.objects.blobs[blobKey("artifacts", "p/header/header.json")] = []byte(`{broken`)
		_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Failed to parse header_context JSON")
	})
}

func TestAssembleTurnPrompt_TemplateMustBeStorageBacked(t *testing.T) {
	d, a, project, session, stage, job := turnFixture(t)
	promptID := *stage.RecipeStep.PromptTemplateID
	text := "inline text"
	d.templates.prompts[promptID] = &types.PromptTemplate{ID: promptID, PromptText: &text}

	_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Turn prompts must resolve templates via document_template_id")
}

func TestAssembleTurnPrompt_DocumentSpecificDataMergesIntoVars(t *testing.T) {
	d, a, project, session, stage, job := turnFixture(t)
	d.objects.blobs[blobKey("templates", "t/turn.md")] = []byte("Chapter: {{chapter_title}}")
	job.Payload["document_specific_data"] = map[string]any{"chapter_title": "The Plan"}

	result, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
	require.NoError(t, err)
	assert.Equal(t, "Chapter: The Plan", result.PromptContent)
}

func TestAssembleTurnPrompt_PersistenceFailureIsWrapped(t *testing.T) {
	d, a, project, session, stage, job := turnFixture(t)
	d.artifacts.err = assert.AnError

	_, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to save turn prompt: ")
}

func TestAssembleTurnPrompt_StepWithoutHeaderRuleSkipsHeaderLoading(t *testing.T) {
	d, a, project, session, stage, job := turnFixture(t)
	stage.RecipeStep.InputsRequired = nil
	delete(job.Payload, "inputs")
	d.objects.blobs[blobKey("templates", "t/turn.md")] = []byte("Write {{document_key}}.")

	result, err := a.AssembleTurnPrompt(context.Background(), project, session, stage, job)
	require.NoError(t, err)
	assert.Equal(t, "Write prd.", result.PromptContent)
}
