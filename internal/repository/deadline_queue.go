package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-engine/internal/config"
)

// DeadlineQueue is a Redis sorted set of in-progress attempts scored by
// their deadline in unix seconds, millisecond precision.
type DeadlineQueue struct {
	rdb *redis.Client
}

// NewDeadlineQueue creates a new DeadlineQueue.
func NewDeadlineQueue(rdb *redis.Client) *DeadlineQueue {
	return &DeadlineQueue{rdb: rdb}
}

// Schedule registers (or moves) the deadline of an attempt.
func (q *DeadlineQueue) Schedule(ctx context.Context, attemptID uuid.UUID, deadline time.Time) error {
	return q.rdb.ZAdd(ctx, config.CacheKey.AttemptDeadlinesKey(), redis.Z{
		Score:  unixSeconds(deadline),
		Member: attemptID.String(),
	}).Err()
}

// Cancel removes an attempt from the queue.
func (q *DeadlineQueue) Cancel(ctx context.Context, attemptID uuid.UUID) error {
	return q.rdb.ZRem(ctx, config.CacheKey.AttemptDeadlinesKey(), attemptID.String()).Err()
}

// ClaimDue returns up to limit attempts whose deadline is at or before now.
// An attempt is returned only to the caller whose ZREM removed it, so
// several instances may poll the same queue.
func (q *DeadlineQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	key := config.CacheKey.AttemptDeadlinesKey()
	members, err := q.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(unixSeconds(now), 'f', 3, 64),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range due deadlines: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := q.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.ZRem(ctx, key, m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("claim due deadlines: %w", err)
	}

	claimed := make([]uuid.UUID, 0, len(members))
	for i, cmd := range cmds {
		if cmd.Val() != 1 {
			continue
		}
		id, err := uuid.Parse(members[i])
		if err != nil {
			continue
		}
		claimed = append(claimed, id)
	}
	return claimed, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}
