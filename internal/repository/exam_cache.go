package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-engine/internal/config"
	"github.com/stemsi/exstem-engine/internal/model"
)

// ExamCache keeps full exam definitions, answer key included, in Redis.
// It is never exposed to clients directly.
type ExamCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewExamCache creates a new ExamCache.
func NewExamCache(rdb *redis.Client, ttl time.Duration) *ExamCache {
	return &ExamCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached exam, or nil on a cache miss.
func (c *ExamCache) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.ExamDefinitionKey(id.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached exam: %w", err)
	}

	var e model.Exam
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode cached exam: %w", err)
	}
	return &e, nil
}

// Set stores e.
func (c *ExamCache) Set(ctx context.Context, e *model.Exam) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, config.CacheKey.ExamDefinitionKey(e.ID.String()), raw, c.ttl).Err()
}

// Invalidate drops the cached definition of an exam.
func (c *ExamCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.ExamDefinitionKey(id.String())).Err()
}
