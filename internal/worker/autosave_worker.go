package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// Queue is the Redis list a worker consumes.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, bool, error)
	TryPop(ctx context.Context) (string, bool, error)
	Push(ctx context.Context, items ...string) error
}

// AnswerWriter persists autosaved answers. It returns how many were applied;
// answers of attempts that are no longer in progress are skipped.
type AnswerWriter interface {
	UpsertAnswers(ctx context.Context, entries []model.AutosaveEntry) (int, error)
}

// AutosaveWorker consumes persist_answers_queue and UPSERTs answers to PostgreSQL.
type AutosaveWorker struct {
	queue  Queue
	writer AnswerWriter
	log    zerolog.Logger

	retryDelay time.Duration
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(queue Queue, writer AnswerWriter, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		queue:      queue,
		writer:     writer,
		log:        log.With().Str("component", "autosave_worker").Logger(),
		retryDelay: 5 * time.Second,
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]string, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.shutdown(buffer)
			w.log.Info().Msg("Worker stopped")
			return
		default:
		}

		item, ok, err := w.queue.Pop(ctx, PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleepCtx(ctx, 3*time.Second)
			continue
		}
		if ok {
			buffer = append(buffer, item)
		}
	}
}

// flush decodes and persists raw queue items. On a database error every
// decodable item goes back on the queue.
func (w *AutosaveWorker) flush(ctx context.Context, raw []string) bool {
	entries := make([]model.AutosaveEntry, 0, len(raw))
	kept := make([]string, 0, len(raw))
	for _, item := range raw {
		var e model.AutosaveEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			// Malformed JSON can never succeed. Log and discard.
			w.log.Error().Err(err).Str("data", item).Msg("Discarding malformed answer")
			continue
		}
		entries = append(entries, e)
		kept = append(kept, item)
	}
	if len(entries) == 0 {
		return true
	}

	applied, err := w.writer.UpsertAnswers(ctx, entries)
	if err != nil {
		w.log.Error().Err(err).Int("count", len(entries)).Msg("Persist error, requeueing")
		if err := w.queue.Push(context.WithoutCancel(ctx), kept...); err != nil {
			w.log.Error().Err(err).Int("count", len(kept)).Msg("CRITICAL: Failed to requeue answers. Data loss occurred.")
		}
		sleepCtx(ctx, w.retryDelay)
		return false
	}

	if skipped := len(entries) - applied; skipped > 0 {
		w.log.Debug().Int("skipped", skipped).Msg("Skipped answers of sealed or superseded attempts")
	}
	return true
}

// shutdown persists the in-memory buffer and whatever is left on the queue.
func (w *AutosaveWorker) shutdown(buffer []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 && !w.flush(ctx, buffer) {
		return
	}

	drained := 0
	batch := make([]string, 0, BatchSize)
	for {
		item, ok, err := w.queue.TryPop(ctx)
		if err != nil || !ok {
			break
		}
		batch = append(batch, item)
		if len(batch) == BatchSize {
			if !w.flush(ctx, batch) {
				return
			}
			drained += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 && w.flush(ctx, batch) {
		drained += len(batch)
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
