// Package redis backs the duration predictor's rolling samples so estimates
// survive restarts. The service runs fine without it.
package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type SampleStore struct {
	client *redis.Client
}

// NewSampleStore connects to the Redis at addr, or returns nil when addr is
// empty so callers can pass the store straight through.
func NewSampleStore(addr string) *SampleStore {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &SampleStore{client: client}
}

// Append pushes one serialized sample and trims the list to keep entries.
func (s *SampleStore) Append(ctx context.Context, metric string, payload string, keep int64) error {
	key := "predictor:" + metric
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, keep-1)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns up to limit serialized samples, most recent first.
func (s *SampleStore) List(ctx context.Context, metric string, limit int64) ([]string, error) {
	return s.client.LRange(ctx, "predictor:"+metric, 0, limit-1).Result()
}

// Ping reports connectivity for health checks.
func (s *SampleStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
