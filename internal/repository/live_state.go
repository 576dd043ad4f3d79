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

// LiveStateStore is the Redis fast lane of an attempt: its cached status and
// the buffer of autosaved answers waiting to be persisted.
type LiveStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLiveStateStore creates a new LiveStateStore. ttl bounds how long a cached
// status may be served before it is re-read from Postgres.
func NewLiveStateStore(rdb *redis.Client, ttl time.Duration) *LiveStateStore {
	return &LiveStateStore{rdb: rdb, ttl: ttl}
}

// GetState returns the cached state, or nil on a cache miss.
func (s *LiveStateStore) GetState(ctx context.Context, attemptID uuid.UUID) (*model.AttemptState, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptStateKey(attemptID.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt state: %w", err)
	}

	var st model.AttemptState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode attempt state: %w", err)
	}
	return &st, nil
}

// PutState caches st.
func (s *LiveStateStore) PutState(ctx context.Context, st model.AttemptState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, config.CacheKey.AttemptStateKey(st.AttemptID.String()), raw, s.ttl).Err()
}

// DropState deletes the cached state of an attempt.
func (s *LiveStateStore) DropState(ctx context.Context, attemptID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.AttemptStateKey(attemptID.String())).Err()
}

// SaveAnswer writes entry into the attempt's answer hash and queues it for
// the autosave worker in a single round trip. The hash expires at expireAt.
func (s *LiveStateStore) SaveAnswer(ctx context.Context, entry model.AutosaveEntry, expireAt time.Time) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := config.CacheKey.AttemptAnswersKey(entry.AttemptID.String())

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, entry.QuestionID.String(), raw)
	pipe.ExpireAt(ctx, key, expireAt)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("buffer answer: %w", err)
	}
	return nil
}

// Answers returns the buffered answers of an attempt keyed by question id.
func (s *LiveStateStore) Answers(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]model.AutosaveEntry, error) {
	fields, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get buffered answers: %w", err)
	}

	out := make(map[uuid.UUID]model.AutosaveEntry, len(fields))
	for field, raw := range fields {
		qid, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		var entry model.AutosaveEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		out[qid] = entry
	}
	return out, nil
}

// Clear drops the answer buffer of a sealed attempt.
func (s *LiveStateStore) Clear(ctx context.Context, attemptID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Err()
}
