package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dialecticlabs/dialectic-backend/internal/logger"
)

// CachedBucketService fronts a BucketService with a redis read cache.
// Assembly blobs are written once and never mutated in place, so a
// positive cache hit is always current; the TTL only bounds memory.
type CachedBucketService struct {
	inner BucketService
	rdb   *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedBucketService(inner BucketService, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *CachedBucketService {
	return &CachedBucketService{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With("service", "CachedBucketService"),
	}
}

func cacheKey(bucket, path string) string {
	return "blob:" + bucket + "/" + path
}

func (s *CachedBucketService) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	key := cacheKey(bucket, path)
	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		return data, nil
	} else if err != redis.Nil {
		s.log.Warn("Cache read failed, falling through to storage", "key", key, "error", err.Error())
	}
	data, err := s.inner.Download(ctx, bucket, path)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.log.Warn("Cache write failed", "key", key, "error", err.Error())
	}
	return data, nil
}

// Upload writes through and primes the cache.
func (s *CachedBucketService) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if err := s.inner.Upload(ctx, bucket, path, data, contentType); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, cacheKey(bucket, path), data, s.ttl).Err(); err != nil {
		s.log.Warn("Cache prime failed", "bucket", bucket, "path", path, "error", err.Error())
	}
	return nil
}

func (s *CachedBucketService) Close() error {
	return s.inner.Close()
}
