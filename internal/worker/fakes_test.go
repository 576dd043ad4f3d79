package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-engine/internal/model"
)

var errDatabaseDown = errors.New("dial tcp: connection refused")

type memoryQueue struct {
	mu    sync.Mutex
	items []string
}

func (q *memoryQueue) Pop(ctx context.Context, _ time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	item, ok, err := q.TryPop(ctx)
	if !ok {
		// Stand in for BLPop's blocking wait.
		time.Sleep(time.Millisecond)
	}
	return item, ok, err
}

func (q *memoryQueue) TryPop(_ context.Context) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false, nil
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true, nil
}

func (q *memoryQueue) Push(_ context.Context, items ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	return nil
}

func (q *memoryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type recordingAnswers struct {
	mu      sync.Mutex
	batches [][]model.AutosaveEntry
	fail    bool
}

func (r *recordingAnswers) UpsertAnswers(_ context.Context, entries []model.AutosaveEntry) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return 0, errDatabaseDown
	}
	r.batches = append(r.batches, append([]model.AutosaveEntry(nil), entries...))
	return len(entries), nil
}

func (r *recordingAnswers) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

type recordingEvents struct {
	mu        sync.Mutex
	failBatch bool
	failRow   func(ev model.AttemptEvent) bool
	stored    []model.AttemptEvent
	batches   int
}

func (r *recordingEvents) InsertBatch(_ context.Context, events []model.AttemptEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failBatch {
		return errDatabaseDown
	}
	r.batches++
	r.stored = append(r.stored, events...)
	return nil
}

func (r *recordingEvents) Insert(_ context.Context, ev model.AttemptEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRow != nil && r.failRow(ev) {
		return errDatabaseDown
	}
	r.stored = append(r.stored, ev)
	return nil
}

type memoryDeadlines struct {
	mu        sync.Mutex
	due       []uuid.UUID
	scheduled map[uuid.UUID]time.Time
}

func newMemoryDeadlines(due ...uuid.UUID) *memoryDeadlines {
	return &memoryDeadlines{due: due, scheduled: make(map[uuid.UUID]time.Time)}
}

func (d *memoryDeadlines) ClaimDue(_ context.Context, _ time.Time, limit int) ([]uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := min(limit, len(d.due))
	claimed := d.due[:n]
	d.due = d.due[n:]
	return claimed, nil
}

func (d *memoryDeadlines) Schedule(_ context.Context, id uuid.UUID, deadline time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduled[id] = deadline
	return nil
}

type scriptedSubmitter struct {
	mu     sync.Mutex
	errs   map[uuid.UUID]error
	called map[uuid.UUID]int
}

func (s *scriptedSubmitter) ForceSubmit(_ context.Context, id uuid.UUID) (*model.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.called[id]++
	if err := s.errs[id]; err != nil {
		return nil, err
	}
	return &model.SubmitResult{AttemptID: id, Status: model.AttemptStatusGraded}, nil
}
