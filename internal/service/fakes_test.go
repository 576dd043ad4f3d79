package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-engine/internal/model"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memoryExams serves both as ExamStore and ExamProvider.
type memoryExams struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*model.Exam
}

func newMemoryExams(exams ...*model.Exam) *memoryExams {
	m := &memoryExams{exams: make(map[uuid.UUID]*model.Exam)}
	for _, e := range exams {
		m.exams[e.ID] = e
	}
	return m
}

func (m *memoryExams) GetExam(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, ErrExamNotFound
	}
	return e, nil
}

func (m *memoryExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	cp.Questions = append([]model.Question(nil), e.Questions...)
	return &cp, nil
}

func (m *memoryExams) Create(_ context.Context, e *model.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	for i := range e.Questions {
		e.Questions[i].ExamID = e.ID
		if e.Questions[i].ID == uuid.Nil {
			e.Questions[i].ID = uuid.New()
		}
	}
	e.RecomputeTotalPoints()
	m.exams[e.ID] = e
	return nil
}

func (m *memoryExams) AddQuestion(_ context.Context, examID uuid.UUID, q *model.Question) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	q.ExamID = examID
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	e.Questions = append(e.Questions, *q)
	return e.RecomputeTotalPoints(), nil
}

func (m *memoryExams) ReplaceQuestions(_ context.Context, examID uuid.UUID, questions []model.Question) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	e.Questions = append([]model.Question(nil), questions...)
	return e.RecomputeTotalPoints(), nil
}

type memoryExamCache struct {
	mu          sync.Mutex
	exams       map[uuid.UUID]*model.Exam
	invalidated []uuid.UUID
}

func newMemoryExamCache() *memoryExamCache {
	return &memoryExamCache{exams: make(map[uuid.UUID]*model.Exam)}
}

func (c *memoryExamCache) Get(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exams[id], nil
}

func (c *memoryExamCache) Set(_ context.Context, e *model.Exam) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exams[e.ID] = e
	return nil
}

func (c *memoryExamCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.exams, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

// memoryAttempts guards Open and Update with one mutex, standing in for the
// advisory lock and row lock of the Postgres store.
type memoryAttempts struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
}

func newMemoryAttempts() *memoryAttempts {
	return &memoryAttempts{attempts: make(map[uuid.UUID]*model.Attempt)}
}

func cloneAttempt(a *model.Attempt) *model.Attempt {
	cp := *a
	cp.Answers = make(map[uuid.UUID]model.Answer, len(a.Answers))
	for k, v := range a.Answers {
		cp.Answers[k] = v
	}
	return &cp
}

func (m *memoryAttempts) Open(_ context.Context, candidate *model.Attempt, maxAttempts int) (model.OpenOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out model.OpenOutcome
	for _, a := range m.attempts {
		if a.ExamID != candidate.ExamID || a.StudentID != candidate.StudentID {
			continue
		}
		if a.InProgress() {
			out.Attempt = cloneAttempt(a)
			return out, nil
		}
		out.Finished++
	}
	if out.Finished >= maxAttempts {
		return out, nil
	}

	candidate.ID = uuid.New()
	candidate.AttemptNumber = out.Finished + 1
	candidate.Status = model.AttemptStatusInProgress
	m.attempts[candidate.ID] = cloneAttempt(candidate)
	out.Attempt = candidate
	out.Created = true
	return out, nil
}

func (m *memoryAttempts) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneAttempt(a), nil
}

func (m *memoryAttempts) ListByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int) ([]model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Attempt
	for _, a := range m.attempts {
		if a.ExamID == examID && a.StudentID == studentID {
			cp := *a
			cp.Answers = nil
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

func (m *memoryAttempts) ListInProgress(_ context.Context) ([]model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Attempt
	for _, a := range m.attempts {
		if a.InProgress() {
			out = append(out, *cloneAttempt(a))
		}
	}
	return out, nil
}

func (m *memoryAttempts) Update(_ context.Context, id uuid.UUID, fn func(a *model.Attempt) error) (*model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	working := cloneAttempt(stored)
	if err := fn(working); err != nil {
		return nil, err
	}
	m.attempts[id] = cloneAttempt(working)
	return working, nil
}

func (m *memoryAttempts) count(examID uuid.UUID, studentID int, status model.AttemptStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.ExamID == examID && a.StudentID == studentID && a.Status == status {
			n++
		}
	}
	return n
}

type memoryLive struct {
	mu        sync.Mutex
	states    map[uuid.UUID]model.AttemptState
	answers   map[uuid.UUID]map[uuid.UUID]model.AutosaveEntry
	queue     []model.AutosaveEntry
	failReads bool
	failPuts  bool
}

func newMemoryLive() *memoryLive {
	return &memoryLive{
		states:  make(map[uuid.UUID]model.AttemptState),
		answers: make(map[uuid.UUID]map[uuid.UUID]model.AutosaveEntry),
	}
}

func (l *memoryLive) GetState(_ context.Context, id uuid.UUID) (*model.AttemptState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failReads {
		return nil, errors.New("redis: connection refused")
	}
	st, ok := l.states[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (l *memoryLive) PutState(_ context.Context, st model.AttemptState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failPuts {
		return errors.New("redis: i/o timeout")
	}
	l.states[st.AttemptID] = st
	return nil
}

func (l *memoryLive) DropState(_ context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.states, id)
	return nil
}

func (l *memoryLive) SaveAnswer(_ context.Context, entry model.AutosaveEntry, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.answers[entry.AttemptID] == nil {
		l.answers[entry.AttemptID] = make(map[uuid.UUID]model.AutosaveEntry)
	}
	l.answers[entry.AttemptID][entry.QuestionID] = entry
	l.queue = append(l.queue, entry)
	return nil
}

func (l *memoryLive) Answers(_ context.Context, id uuid.UUID) (map[uuid.UUID]model.AutosaveEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failReads {
		return nil, errors.New("redis: connection refused")
	}
	out := make(map[uuid.UUID]model.AutosaveEntry, len(l.answers[id]))
	for k, v := range l.answers[id] {
		out[k] = v
	}
	return out, nil
}

func (l *memoryLive) Clear(_ context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.answers, id)
	return nil
}


type memoryExpiry struct {
	mu        sync.Mutex
	deadlines map[uuid.UUID]time.Time
}

func newMemoryExpiry() *memoryExpiry {
	return &memoryExpiry{deadlines: make(map[uuid.UUID]time.Time)}
}

func (e *memoryExpiry) Schedule(_ context.Context, id uuid.UUID, deadline time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deadlines[id] = deadline
	return nil
}

func (e *memoryExpiry) Cancel(_ context.Context, id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.deadlines, id)
	return nil
}

func (e *memoryExpiry) scheduled(id uuid.UUID) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.deadlines[id]
	return t, ok
}

type memoryEvents struct {
	mu     sync.Mutex
	events []model.AttemptEvent
}

func (e *memoryEvents) Publish(_ context.Context, ev model.AttemptEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *memoryEvents) ofType(t model.EventType) []model.AttemptEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []model.AttemptEvent
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
