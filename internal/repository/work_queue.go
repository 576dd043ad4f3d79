package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// WorkQueue is a Redis list consumed from the head by background workers.
type WorkQueue struct {
	rdb *redis.Client
	key string
}

// NewWorkQueue creates a WorkQueue over the list at key.
func NewWorkQueue(rdb *redis.Client, key string) *WorkQueue {
	return &WorkQueue{rdb: rdb, key: key}
}

// Pop blocks for up to timeout. ok is false when nothing arrived in time.
func (q *WorkQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	result, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if len(result) < 2 {
		return "", false, nil
	}
	return result[1], true, nil
}

// TryPop takes the head item without blocking.
func (q *WorkQueue) TryPop(ctx context.Context) (string, bool, error) {
	item, err := q.rdb.LPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return item, true, nil
}

// Push appends items to the tail in one round trip.
func (q *WorkQueue) Push(ctx context.Context, items ...string) error {
	if len(items) == 0 {
		return nil
	}
	pipe := q.rdb.Pipeline()
	for _, it := range items {
		pipe.RPush(ctx, q.key, it)
	}
	_, err := pipe.Exec(ctx)
	return err
}
