package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/model"
)

// EventWriter appends attempt events to the durable log.
type EventWriter interface {
	InsertBatch(ctx context.Context, events []model.AttemptEvent) error
	Insert(ctx context.Context, ev model.AttemptEvent) error
}

// EventWorker moves attempt events from persist_attempt_events_queue into
// Postgres in batches.
type EventWorker struct {
	queue  Queue
	writer EventWriter
	log    zerolog.Logger

	requeueDelay time.Duration
}

func NewEventWorker(queue Queue, writer EventWriter, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		queue:        queue,
		writer:       writer,
		log:          log.With().Str("component", "event_worker").Logger(),
		requeueDelay: 2 * time.Second,
	}
}

func (w *EventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("EventWorker started")

	buffer := make([]model.AttemptEvent, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlushTime = time.Now()
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch
		item, ok, err := w.queue.Pop(ctx, PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleepCtx(ctx, 3*time.Second)
			continue
		}
		if !ok {
			continue
		}

		// 4. Decode
		var ev model.AttemptEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			w.log.Error().Err(err).Str("data", item).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, ev)
	}
}

// flushSafe attempts a COPY, then row inserts, then requeues what still failed.
func (w *EventWorker) flushSafe(ctx context.Context, batch []model.AttemptEvent) {
	if err := w.writer.InsertBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *EventWorker) fallbackInsert(ctx context.Context, batch []model.AttemptEvent) {
	var requeue []model.AttemptEvent
	for _, ev := range batch {
		if err := w.writer.Insert(ctx, ev); err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", ev.AttemptID.String()).
				Str("event", string(ev.Type)).
				Msg("Insert failed, requeueing")
			requeue = append(requeue, ev)
		}
	}
	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *EventWorker) requeue(ctx context.Context, events []model.AttemptEvent) {
	items := make([]string, 0, len(events))
	for _, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		items = append(items, string(raw))
	}

	if err := w.queue.Push(context.WithoutCancel(ctx), items...); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Back off if the database is down hard.
	sleepCtx(ctx, w.requeueDelay)
}

func (w *EventWorker) shutdown(buffer []model.AttemptEvent) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
