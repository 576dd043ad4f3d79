package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/model"
	"github.com/stemsi/exstem-engine/internal/service"
)

// retryAfter is how far a failed force-submit is pushed back.
const retryAfter = 5 * time.Second

// DeadlineClaimer hands out attempts whose deadline has passed. A claimed
// attempt is handed to exactly one caller.
type DeadlineClaimer interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	Schedule(ctx context.Context, attemptID uuid.UUID, deadline time.Time) error
}

// ForceSubmitter seals an attempt whose time has run out.
type ForceSubmitter interface {
	ForceSubmit(ctx context.Context, attemptID uuid.UUID) (*model.SubmitResult, error)
}

// ExpiryWorker polls the deadline queue and force-submits attempts whose
// time is up.
type ExpiryWorker struct {
	deadlines DeadlineClaimer
	sessions  ForceSubmitter
	interval  time.Duration
	batchSize int
	log       zerolog.Logger

	now func() time.Time
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(deadlines DeadlineClaimer, sessions ForceSubmitter, interval time.Duration, batchSize int, log zerolog.Logger) *ExpiryWorker {
	if batchSize <= 0 {
		batchSize = BatchSize
	}
	return &ExpiryWorker{
		deadlines: deadlines,
		sessions:  sessions,
		interval:  interval,
		batchSize: batchSize,
		log:       log.With().Str("component", "expiry_worker").Logger(),
		now:       time.Now,
	}
}

// Start polls until ctx is cancelled. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopped")
			return
		case <-ticker.C:
			for w.Tick(ctx) == w.batchSize && ctx.Err() == nil {
				// A full batch means more may be due.
			}
		}
	}
}

// Tick claims one batch of due attempts and force-submits them
// concurrently. It returns how many were claimed.
func (w *ExpiryWorker) Tick(ctx context.Context) int {
	ids, err := w.deadlines.ClaimDue(ctx, w.now(), w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Failed to claim due attempts")
		}
		return 0
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			w.expire(ctx, id)
		}(id)
	}
	wg.Wait()
	return len(ids)
}

func (w *ExpiryWorker) expire(ctx context.Context, id uuid.UUID) {
	res, err := w.sessions.ForceSubmit(ctx, id)
	switch {
	case err == nil:
		w.log.Debug().
			Str("attempt_id", id.String()).
			Float64("total_score", res.TotalScore).
			Msg("Expired attempt sealed")
	case errors.Is(err, service.ErrAttemptNotActive), errors.Is(err, service.ErrAttemptNotFound):
		// Already sealed by the student, or gone.
	case errors.Is(err, service.ErrAttemptNotDue):
		// Claimed early through clock skew between instances.
		at := w.now().Add(retryAfter)
		var notDue *service.NotDueError
		if errors.As(err, &notDue) {
			at = notDue.DeadlineAt
		}
		w.reschedule(ctx, id, at)
	default:
		w.log.Error().Err(err).Str("attempt_id", id.String()).Msg("Force submit failed, rescheduling")
		w.reschedule(ctx, id, w.now().Add(retryAfter))
	}
}

func (w *ExpiryWorker) reschedule(ctx context.Context, id uuid.UUID, at time.Time) {
	if err := w.deadlines.Schedule(context.WithoutCancel(ctx), id, at); err != nil {
		w.log.Error().Err(err).Str("attempt_id", id.String()).Msg("CRITICAL: Failed to reschedule expired attempt")
	}
}
