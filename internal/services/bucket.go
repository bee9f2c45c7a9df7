package services

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/dialecticlabs/dialectic-backend/internal/logger"
)

// BucketService is the object-storage boundary. All prompt and artifact
// blobs move through it; content is UTF-8 text throughout.
type BucketService interface {
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	Close() error
}

type bucketService struct {
	client *storage.Client
	log    *logger.Logger
}

// NewBucketService builds a GCS-backed store. credentialsFile may be
// empty, in which case ambient credentials apply.
func NewBucketService(ctx context.Context, credentialsFile string, log *logger.Logger) (BucketService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Failed to create storage client: %w", err)
	}
	return &bucketService{client: client, log: log.With("service", "BucketService")}, nil
}

func (s *bucketService) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Failed to open object %s/%s: %w", bucket, path, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("Failed to read object %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

func (s *bucketService) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	writer := s.client.Bucket(bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("Failed to write object %s/%s: %w", bucket, path, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("Failed to finalize object %s/%s: %w", bucket, path, err)
	}
	return nil
}

func (s *bucketService) Close() error {
	return s.client.Close()
}
