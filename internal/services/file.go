package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dialecticlabs/dialectic-backend/internal/assembler"
	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/repos"
	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// FileService persists assembled prompts: one blob upload plus one
// resource row. The layout is stage-scoped so the continuation
// reconstructor can find seed_prompt.md from any contribution path in
// the same iteration.
type FileService struct {
	bucket    string
	store     BucketService
	resources repos.ProjectResourceRepo
	log       *logger.Logger
}

func NewFileService(bucket string, store BucketService, resources repos.ProjectResourceRepo, log *logger.Logger) *FileService {
	return &FileService{
		bucket:    bucket,
		store:     store,
		resources: resources,
		log:       log.With("service", "FileService"),
	}
}

// Upload implements assembler.ArtifactStore.
func (s *FileService) Upload(ctx context.Context, in assembler.UploadInput) (*types.ProjectResource, error) {
	storagePath := fmt.Sprintf("projects/%s/sessions/%s/iteration_%d/%s",
		in.ProjectID, in.SessionID, in.Iteration, in.StageSlug)
	fileName := fileNameFor(in)

	if err := s.store.Upload(ctx, s.bucket, storagePath+"/"+fileName, []byte(in.Content), in.MimeType); err != nil {
		return nil, fmt.Errorf("Failed to upload prompt blob: %w", err)
	}

	resource := &types.ProjectResource{
		ProjectID:            in.ProjectID,
		SessionID:            in.SessionID,
		UserID:               in.UserID,
		StageSlug:            in.StageSlug,
		IterationNumber:      in.Iteration,
		ResourceType:         in.ResourceType,
		ResourceDescription:  in.Description,
		StorageBucket:        s.bucket,
		StoragePath:          storagePath,
		FileName:             fileName,
		MimeType:             in.MimeType,
		SizeBytes:            int64(len(in.Content)),
		StepName:             in.StepName,
		BranchKey:            in.BranchKey,
		ParallelGroup:        in.ParallelGroup,
		SourceContributionID: in.SourceContributionID,
	}
	if err := s.resources.Create(ctx, resource); err != nil {
		return nil, err
	}
	s.log.Info("Persisted prompt artifact",
		"resource_type", in.ResourceType,
		"storage_path", storagePath,
		"file_name", fileName,
	)
	return resource, nil
}

// fileNameFor derives a deterministic blob name. The seed prompt keeps
// its fixed name; model-scoped prompts encode model, attempt and
// document so retries never collide.
func fileNameFor(in assembler.UploadInput) string {
	if in.ResourceType == "seed_prompt" {
		return "seed_prompt.md"
	}
	parts := []string{in.ModelSlug, strconv.Itoa(in.AttemptCount)}
	if in.DocumentKey != "" {
		parts = append(parts, in.DocumentKey)
	}
	parts = append(parts, in.ResourceType)
	return strings.Join(parts, "_") + ".md"
}
