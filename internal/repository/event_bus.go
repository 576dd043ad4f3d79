package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-engine/internal/config"
	"github.com/stemsi/exstem-engine/internal/model"
)

// EventBus fans attempt events out to the persistence queue and to the
// exam's monitor channel.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates a new EventBus.
func NewEventBus(rdb *redis.Client) *EventBus {
	return &EventBus{rdb: rdb}
}

// Publish queues ev for persistence and broadcasts it to monitors.
func (b *EventBus) Publish(ctx context.Context, ev model.AttemptEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := b.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistEventsQueue, raw)
	pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(ev.ExamID.String()), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe opens a Pub/Sub subscription on the exam's monitor channel.
// The caller must Close it.
func (b *EventBus) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return b.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}
