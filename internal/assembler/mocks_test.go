package assembler

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

type fakeContributions struct {
	byID        map[uuid.UUID]*types.Contribution
	latest      map[string][]*types.Contribution
	byRoot      map[string][]*types.Contribution
	latestCalls int
	listErr     error
}

func (f *fakeContributions) GetByID(_ context.Context, id uuid.UUID) (*types.Contribution, error) {
	return f.byID[id], nil
}

func (f *fakeContributions) ListLatestForStage(_ context.Context, _ uuid.UUID, _ int, stageSlug string) ([]*types.Contribution, error) {
	f.latestCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.latest[stageSlug], nil
}

func (f *fakeContributions) ListByRoot(_ context.Context, stageSlug string, rootID uuid.UUID) ([]*types.Contribution, error) {
	return f.byRoot[stageSlug+"|"+rootID.String()], nil
}

type fakeFeedback struct {
	rows  map[string]*types.Feedback
	calls int
}

func feedbackKey(stageSlug string, iteration int) string {
	return fmt.Sprintf("%s|%d", stageSlug, iteration)
}

func (f *fakeFeedback) GetForIteration(_ context.Context, _ uuid.UUID, stageSlug string, iteration int, _ uuid.UUID) (*types.Feedback, error) {
	f.calls++
	return f.rows[feedbackKey(stageSlug, iteration)], nil
}

type fakeStages struct {
	names map[string]string
	calls int
}

func (f *fakeStages) DisplayNames(_ context.Context, slugs []string) (map[string]string, error) {
	f.calls++
	out := map[string]string{}
	for _, slug := range slugs {
		if name, ok := f.names[slug]; ok {
			out[slug] = name
		}
	}
	return out, nil
}

type fakeTemplates struct {
	prompts map[uuid.UUID]*types.PromptTemplate
	docs    map[uuid.UUID]*types.DocumentTemplate
}

func (f *fakeTemplates) GetPromptTemplate(_ context.Context, id uuid.UUID) (*types.PromptTemplate, error) {
	return f.prompts[id], nil
}

func (f *fakeTemplates) GetActiveDocumentTemplate(_ context.Context, id uuid.UUID, _ uuid.UUID) (*types.DocumentTemplate, error) {
	return f.docs[id], nil
}

type fakeModels struct {
	models map[uuid.UUID]*types.ModelProvider
}

func (f *fakeModels) GetByID(_ context.Context, id uuid.UUID) (*types.ModelProvider, error) {
	return f.models[id], nil
}

type fakeObjects struct {
	blobs     map[string][]byte
	failures  map[string]error
	downloads []string
}

func blobKey(bucket, path string) string { return bucket + "/" + path }

func (f *fakeObjects) Download(_ context.Context, bucket, path string) ([]byte, error) {
	key := blobKey(bucket, path)
	f.downloads = append(f.downloads, key)
	if err, ok := f.failures[key]; ok {
		return nil, err
	}
	if data, ok := f.blobs[key]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("object not found: %s", key)
}

type fakeArtifacts struct {
	uploads []UploadInput
	err     error
	lastID  uuid.UUID
}

func (f *fakeArtifacts) Upload(_ context.Context, in UploadInput) (*types.ProjectResource, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, in)
	f.lastID = uuid.New()
	return &types.ProjectResource{
		ID:              f.lastID,
		ProjectID:       in.ProjectID,
		SessionID:       in.SessionID,
		StageSlug:       in.StageSlug,
		IterationNumber: in.Iteration,
		ResourceType:    in.ResourceType,
	}, nil
}

type testDeps struct {
	contributions *fakeContributions
	feedback      *fakeFeedback
	stages        *fakeStages
	templates     *fakeTemplates
	models        *fakeModels
	objects       *fakeObjects
	artifacts     *fakeArtifacts
}

func newTestDeps() *testDeps {
	return &testDeps{
		contributions: &fakeContributions{
			byID:   map[uuid.UUID]*types.Contribution{},
			latest: map[string][]*types.Contribution{},
			byRoot: map[string][]*types.Contribution{},
		},
		feedback:  &fakeFeedback{rows: map[string]*types.Feedback{}},
		stages:    &fakeStages{names: map[string]string{}},
		templates: &fakeTemplates{prompts: map[uuid.UUID]*types.PromptTemplate{}, docs: map[uuid.UUID]*types.DocumentTemplate{}},
		models:    &fakeModels{models: map[uuid.UUID]*types.ModelProvider{}},
		objects:   &fakeObjects{blobs: map[string][]byte{}, failures: map[string]error{}},
		artifacts: &fakeArtifacts{},
	}
}

func newTestAssembler(t *testing.T, d *testDeps) *Assembler {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return New(log, Deps{
		Contributions: d.contributions,
		Feedback:      d.feedback,
		Stages:        d.stages,
		Templates:     d.templates,
		Models:        d.models,
		Objects:       d.objects,
		Artifacts:     d.artifacts,
	})
}
