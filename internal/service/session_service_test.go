package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const studentID = 42

var (
	qMC = uuid.MustParse("0f6f7b0e-1c1a-4c55-9a55-000000000001")
	qTF = uuid.MustParse("0f6f7b0e-1c1a-4c55-9a55-000000000002")
	qSA = uuid.MustParse("0f6f7b0e-1c1a-4c55-9a55-000000000003")
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// workedExam is a 30 minute exam worth 15 points, open from one hour before
// t0 until two hours after.
func workedExam() *model.Exam {
	e := &model.Exam{
		ID:              uuid.New(),
		Title:           "Ulangan Harian IPA",
		Instructions:    "Kerjakan dengan jujur.",
		DurationMinutes: 30,
		StartDate:       t0.Add(-time.Hour),
		EndDate:         t0.Add(2 * time.Hour),
		MaxAttempts:     2,
		PassingScore:    60,
		ShowResults:     true,
		Questions: []model.Question{
			{
				ID:           qMC,
				QuestionText: "2 + 3 = ?",
				QuestionType: model.QuestionTypeMultipleChoice,
				Options: []model.Option{
					{ID: "A", Text: "4"},
					{ID: "B", Text: "5", IsCorrect: true},
					{ID: "C", Text: "6"},
				},
				Points:   5,
				OrderNum: 1,
			},
			{ID: qTF, QuestionText: "Air mendidih pada 100 C", QuestionType: model.QuestionTypeTrueFalse, CorrectAnswer: "true", Points: 3, OrderNum: 2},
			{ID: qSA, QuestionText: "Jelaskan fotosintesis", QuestionType: model.QuestionTypeShortAnswer, Points: 7, OrderNum: 3},
		},
	}
	e.RecomputeTotalPoints()
	return e
}

type harness struct {
	svc      *SessionService
	clock    *testClock
	exam     *model.Exam
	attempts *memoryAttempts
	live     *memoryLive
	expiry   *memoryExpiry
	events   *memoryEvents
}

func newHarness(t *testing.T, mutate ...func(e *model.Exam)) *harness {
	t.Helper()
	exam := workedExam()
	for _, m := range mutate {
		m(exam)
	}

	h := &harness{
		clock:    newTestClock(t0),
		exam:     exam,
		attempts: newMemoryAttempts(),
		live:     newMemoryLive(),
		expiry:   newMemoryExpiry(),
		events:   &memoryEvents{},
	}
	h.svc = NewSessionService(newMemoryExams(exam), h.attempts, h.live, h.expiry, h.events,
		SessionOptions{SubmitGrace: 30 * time.Second, AutoGradeSubjective: true}, zerolog.Nop())
	h.svc.now = h.clock.Now
	return h
}

func (h *harness) start(t *testing.T) *model.Attempt {
	t.Helper()
	a, _, err := h.svc.Start(context.Background(), h.exam.ID, studentID)
	require.NoError(t, err)
	return a
}

func (h *harness) submit(t *testing.T, a *model.Attempt, answers []model.SubmitAnswerItem) *model.SubmitResult {
	t.Helper()
	res, err := h.svc.Submit(context.Background(), SubmitInput{
		ExamID:    h.exam.ID,
		AttemptID: a.ID,
		Answers:   answers,
		Trigger:   model.SubmitTriggerClient,
	})
	require.NoError(t, err)
	return res
}

func items(pairs ...any) []model.SubmitAnswerItem {
	out := make([]model.SubmitAnswerItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.SubmitAnswerItem{QuestionID: pairs[i].(uuid.UUID), Answer: pairs[i+1].(string)})
	}
	return out
}

func TestStart_ConcurrentCallsOpenOneAttempt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const callers = 32
	ids := make([]uuid.UUID, callers)
	created := make([]bool, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	ready := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-ready
			a, c, err := h.svc.Start(ctx, h.exam.ID, studentID)
			errs[i] = err
			created[i] = c
			if a != nil {
				ids[i] = a.ID
			}
		}(i)
	}
	close(ready)
	wg.Wait()

	createdCount := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)
	assert.Equal(t, 1, h.attempts.count(h.exam.ID, studentID, model.AttemptStatusInProgress))
	assert.Len(t, h.events.ofType(model.EventAttemptStarted), 1)
}

func TestStart_ReturnsSameAttemptUntilSubmitted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, created, err := h.svc.Start(ctx, h.exam.ID, studentID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.AttemptNumber)
	assert.Equal(t, t0.Add(30*time.Minute), first.DeadlineAt)

	h.clock.Advance(5 * time.Minute)
	again, created, err := h.svc.Start(ctx, h.exam.ID, studentID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.StartedAt, again.StartedAt)

	deadline, ok := h.expiry.scheduled(first.ID)
	require.True(t, ok)
	assert.Equal(t, first.DeadlineAt, deadline)
}

func TestStart_QuotaExhausted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a1 := h.start(t)
	h.submit(t, a1, nil)
	a2 := h.start(t)
	assert.NotEqual(t, a1.ID, a2.ID)
	assert.Equal(t, 2, a2.AttemptNumber)
	h.submit(t, a2, nil)

	_, _, err := h.svc.Start(ctx, h.exam.ID, studentID)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 0, h.attempts.count(h.exam.ID, studentID, model.AttemptStatusInProgress))

	hist, err := h.svc.History(ctx, h.exam.ID, studentID)
	require.NoError(t, err)
	assert.Len(t, hist.Attempts, 2)
	assert.Zero(t, hist.AttemptsRemaining)
}

func TestStart_OutsideWindow(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
	}{
		{name: "before start", advance: -2 * time.Hour},
		{name: "after end", advance: 3 * time.Hour},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.clock.Advance(tc.advance)
			_, _, err := h.svc.Start(context.Background(), h.exam.ID, studentID)
			assert.ErrorIs(t, err, ErrExamNotActive)
		})
	}
}

func TestStart_UnknownExam(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.svc.Start(context.Background(), uuid.New(), studentID)
	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestTakingView_StableOrderWithoutAnswerKey(t *testing.T) {
	h := newHarness(t, func(e *model.Exam) {
		e.ShuffleQuestions = true
		e.ShuffleOptions = true
	})
	ctx := context.Background()

	_, err := h.svc.TakingView(ctx, h.exam.ID, studentID)
	assert.ErrorIs(t, err, ErrAttemptNotActive)

	a := h.start(t)
	first, err := h.svc.TakingView(ctx, h.exam.ID, studentID)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	second, err := h.svc.TakingView(ctx, h.exam.ID, studentID)
	require.NoError(t, err)

	assert.Equal(t, a.ID, first.AttemptID)
	assert.Equal(t, first.Questions, second.Questions)
	assert.Equal(t, 30, first.Duration)
	assert.Equal(t, "Kerjakan dengan jujur.", first.Instructions)
	assert.Equal(t, float64(30*60), first.RemainingSeconds)
	assert.Equal(t, float64(29*60), second.RemainingSeconds)

	for i, q := range first.Questions {
		assert.Equal(t, i+1, q.Number)
		if q.QuestionType == model.QuestionTypeMultipleChoice {
			assert.ElementsMatch(t, []model.OptionForStudent{{ID: "A", Text: "4"}, {ID: "B", Text: "5"}, {ID: "C", Text: "6"}}, q.Options)
		}
	}
}

func TestTakingView_ResumesSavedAnswers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.start(t)

	_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qTF, Answer: "true", TimeSpent: 12})
	require.NoError(t, err)

	view, err := h.svc.TakingView(ctx, h.exam.ID, studentID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{qTF.String(): "true"}, view.ExistingAnswers)
}

func TestSaveAnswer_OverwritesSameQuestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.start(t)

	_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "A", TimeSpent: 5})
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	ack, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "B", TimeSpent: 9})
	require.NoError(t, err)
	assert.True(t, ack.Ack)

	buffered, err := h.live.Answers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, buffered, 1)
	assert.Equal(t, "B", buffered[qMC].Answer)

	res := h.submit(t, a, nil)
	assert.Equal(t, 5.0, res.TotalScore)

	sealed, err := h.attempts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, sealed.Answers, 1)
	assert.Equal(t, "B", sealed.Answers[qMC].Answer)
}

func TestSaveAnswer_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("question from another exam", func(t *testing.T) {
		h := newHarness(t)
		a := h.start(t)
		_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: uuid.New(), Answer: "x"})
		assert.ErrorIs(t, err, ErrQuestionNotInExam)
	})

	t.Run("attempt of another exam", func(t *testing.T) {
		h := newHarness(t)
		a := h.start(t)
		_, err := h.svc.SaveAnswer(ctx, uuid.New(), a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "B"})
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})

	t.Run("attempt of another student", func(t *testing.T) {
		h := newHarness(t)
		a := h.start(t)
		_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{StudentID: studentID + 1, QuestionID: qMC, Answer: "B"})
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})

	t.Run("unknown attempt", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.SaveAnswer(ctx, h.exam.ID, uuid.New(), SaveAnswerInput{QuestionID: qMC, Answer: "B"})
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})

	t.Run("after submit", func(t *testing.T) {
		h := newHarness(t)
		a := h.start(t)
		h.submit(t, a, nil)
		_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "B"})
		assert.ErrorIs(t, err, ErrAttemptNotActive)
	})

	t.Run("after deadline", func(t *testing.T) {
		h := newHarness(t)
		a := h.start(t)
		h.clock.Advance(30*time.Minute + time.Second)
		_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "B"})
		assert.ErrorIs(t, err, ErrAttemptNotActive)
	})
}

func TestSaveAnswer_RebuildsMissingLiveState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.start(t)
	require.NoError(t, h.live.DropState(ctx, a.ID))

	_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qTF, Answer: "true"})
	require.NoError(t, err)

	st, err := h.live.GetState(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, model.AttemptStatusInProgress, st.Status)
}

func TestSaveAnswer_RedisReadFailureFallsBackToDatabase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.start(t)
	h.submit(t, a, nil)

	h.live.mu.Lock()
	h.live.failReads = true
	h.live.mu.Unlock()

	_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qTF, Answer: "true"})
	assert.ErrorIs(t, err, ErrAttemptNotActive)
}

func TestSaveAnswer_RefusedWhenSealedStateWasNotCached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.start(t)

	h.live.mu.Lock()
	h.live.failPuts = true
	h.live.mu.Unlock()
	h.submit(t, a, items(qMC, "B"))

	st, err := h.live.GetState(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, st, "stale in-progress state must not survive the seal")

	_, err = h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "A"})
	assert.ErrorIs(t, err, ErrAttemptNotActive)
}

func TestSubmit_WorkedExamples(t *testing.T) {
	tests := []struct {
		name       string
		answers    []model.SubmitAnswerItem
		total      float64
		percentage float64
		grade      string
	}{
		{name: "all correct", answers: items(qMC, "5", qTF, "true", qSA, "anything"), total: 15, percentage: 100, grade: "A"},
		{name: "only subjective credit", answers: items(qMC, "10", qTF, "false", qSA, ""), total: 7, percentage: 46.67, grade: "F"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			a := h.start(t)

			res := h.submit(t, a, tc.answers)

			assert.Equal(t, tc.total, res.TotalScore)
			assert.Equal(t, tc.percentage, res.Percentage)
			assert.Equal(t, tc.grade, res.Grade)
			assert.Equal(t, model.AttemptStatusGraded, res.Status)
			assert.False(t, res.IsLate)
		})
	}
}

func TestSubmit_FinalSnapshotReplacesAutosaves(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.start(t)

	_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "A"})
	require.NoError(t, err)
	_, err = h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qSA, Answer: "draft"})
	require.NoError(t, err)

	res := h.submit(t, a, items(qMC, "B"))
	assert.Equal(t, 5.0, res.TotalScore)

	sealed, err := h.attempts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, sealed.Answers, 1)
	assert.Equal(t, "B", sealed.Answers[qMC].Answer)
	require.NotNil(t, sealed.Answers[qMC].IsCorrect)
	assert.True(t, *sealed.Answers[qMC].IsCorrect)

	_, scheduled := h.expiry.scheduled(a.ID)
	assert.False(t, scheduled)
	buffered, err := h.live.Answers(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, buffered)
}

func TestSubmit_TwiceFailsSecondTime(t *testing.T) {
	h := newHarness(t)
	a := h.start(t)
	first := h.submit(t, a, items(qMC, "B"))

	_, err := h.svc.Submit(context.Background(), SubmitInput{ExamID: h.exam.ID, AttemptID: a.ID, Answers: items(qMC, "A"), Trigger: model.SubmitTriggerClient})
	assert.ErrorIs(t, err, ErrAttemptNotActive)

	sealed, err := h.attempts.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, first.TotalScore, *sealed.TotalScore)
}

func TestSubmit_ClientAfterGraceIsRefused(t *testing.T) {
	h := newHarness(t)
	a := h.start(t)
	h.clock.Advance(30*time.Minute + 31*time.Second)

	_, err := h.svc.Submit(context.Background(), SubmitInput{ExamID: h.exam.ID, AttemptID: a.ID, Trigger: model.SubmitTriggerClient})
	assert.ErrorIs(t, err, ErrAttemptNotActive)

	res, err := h.svc.ForceSubmit(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmitTriggerTimer, res.SubmitTrigger)
}

func TestSubmit_ClientAfterEndDateIsRefused(t *testing.T) {
	h := newHarness(t, func(e *model.Exam) { e.EndDate = t0.Add(10 * time.Minute) })
	ctx := context.Background()
	a := h.start(t)
	_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "A"})
	require.NoError(t, err)

	// Inside the attempt's own 30 minutes, but the exam window has closed.
	h.clock.Advance(15 * time.Minute)

	_, err = h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "B"})
	assert.ErrorIs(t, err, ErrAttemptNotActive)
	_, err = h.svc.Submit(ctx, SubmitInput{ExamID: h.exam.ID, AttemptID: a.ID, Answers: items(qMC, "B", qTF, "true"), Trigger: model.SubmitTriggerClient})
	assert.ErrorIs(t, err, ErrAttemptNotActive)

	stored, err := h.attempts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.InProgress())

	// The timer still seals it, with the answers saved inside the window.
	h.clock.Advance(15 * time.Minute)
	res, err := h.svc.ForceSubmit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.TotalScore)
	assert.True(t, res.IsLate)
}

func TestSubmit_ClientWithinGraceOfEndDate(t *testing.T) {
	h := newHarness(t, func(e *model.Exam) { e.EndDate = t0.Add(10 * time.Minute) })
	a := h.start(t)
	h.clock.Advance(10*time.Minute + 20*time.Second)

	res := h.submit(t, a, items(qMC, "B"))
	assert.Equal(t, 5.0, res.TotalScore)
	assert.True(t, res.IsLate)
}

func TestForceSubmit_EarlyClaimCarriesDeadline(t *testing.T) {
	h := newHarness(t)
	a := h.start(t)

	_, err := h.svc.ForceSubmit(context.Background(), a.ID)
	var notDue *NotDueError
	require.ErrorAs(t, err, &notDue)
	assert.ErrorIs(t, err, ErrAttemptNotDue)
	assert.Equal(t, a.DeadlineAt, notDue.DeadlineAt)
}

func TestSubmit_TimeSpentNeverDecreases(t *testing.T) {
	h := newHarness(t, func(e *model.Exam) {
		e.AutoGrade = map[model.QuestionType]bool{model.QuestionTypeShortAnswer: false}
	})
	ctx := context.Background()
	a := h.start(t)

	_, err := h.svc.Submit(ctx, SubmitInput{ExamID: h.exam.ID, AttemptID: a.ID, Answers: items(qSA, "x"), TotalTimeSpent: 600, Trigger: model.SubmitTriggerClient})
	require.NoError(t, err)
	_, err = h.svc.GradeAnswers(ctx, a.ID, []model.ManualGrade{{QuestionID: qSA, Points: 7}})
	require.NoError(t, err)

	sealed, err := h.attempts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 600, sealed.TimeSpent)
}

func TestSubmit_RaceBetweenClientAndTimer(t *testing.T) {
	for round := 0; round < 25; round++ {
		h := newHarness(t)
		ctx := context.Background()
		a := h.start(t)
		_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "B"})
		require.NoError(t, err)
		_, err = h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qSA, Answer: "klorofil"})
		require.NoError(t, err)

		// Inside the grace period: both submits are legitimate.
		h.clock.Advance(30*time.Minute + 5*time.Second)

		var wg sync.WaitGroup
		ready := make(chan struct{})
		var clientErr, timerErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-ready
			_, clientErr = h.svc.Submit(ctx, SubmitInput{ExamID: h.exam.ID, AttemptID: a.ID, Trigger: model.SubmitTriggerClient})
		}()
		go func() {
			defer wg.Done()
			<-ready
			_, timerErr = h.svc.ForceSubmit(ctx, a.ID)
		}()
		close(ready)
		wg.Wait()

		if clientErr == nil {
			assert.ErrorIs(t, timerErr, ErrAttemptNotActive)
		} else {
			assert.ErrorIs(t, clientErr, ErrAttemptNotActive)
			assert.NoError(t, timerErr)
		}

		sealed, err := h.attempts.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AttemptStatusGraded, sealed.Status)
		assert.Equal(t, 12.0, *sealed.TotalScore)
		assert.Equal(t, 80.0, *sealed.Percentage)
		assert.Equal(t, "B", sealed.Grade)
	}
}

func TestForceSubmit_AtDeadline(t *testing.T) {
	tests := []struct {
		name   string
		endAt  time.Duration
		isLate bool
	}{
		{name: "deadline inside window", endAt: time.Hour, isLate: false},
		{name: "deadline past end date", endAt: 20 * time.Minute, isLate: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(e *model.Exam) { e.EndDate = t0.Add(tc.endAt) })
			ctx := context.Background()
			a := h.start(t)
			_, err := h.svc.SaveAnswer(ctx, h.exam.ID, a.ID, SaveAnswerInput{QuestionID: qMC, Answer: "B"})
			require.NoError(t, err)

			_, err = h.svc.ForceSubmit(ctx, a.ID)
			assert.ErrorIs(t, err, ErrAttemptNotDue)

			h.clock.Advance(30*time.Minute + 3*time.Second)
			res, err := h.svc.ForceSubmit(ctx, a.ID)
			require.NoError(t, err)

			assert.Equal(t, tc.isLate, res.IsLate)
			assert.Equal(t, model.SubmitTriggerTimer, res.SubmitTrigger)
			assert.Equal(t, a.DeadlineAt, res.SubmittedAt)
			assert.Equal(t, 5.0, res.TotalScore)

			sealed, err := h.attempts.GetByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 30*60, sealed.TimeSpent)
			assert.Len(t, h.events.ofType(model.EventAttemptForced), 1)

			_, err = h.svc.ForceSubmit(ctx, a.ID)
			assert.ErrorIs(t, err, ErrAttemptNotActive)
		})
	}
}

func TestResult_Policies(t *testing.T) {
	ctx := context.Background()

	t.Run("in progress only", func(t *testing.T) {
		h := newHarness(t)
		h.start(t)
		_, err := h.svc.Result(ctx, h.exam.ID, studentID)
		assert.ErrorIs(t, err, ErrAttemptNotFinished)
	})

	t.Run("never started", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Result(ctx, h.exam.ID, studentID)
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})

	t.Run("results hidden", func(t *testing.T) {
		h := newHarness(t, func(e *model.Exam) { e.ShowResults = false })
		h.submit(t, h.start(t), items(qMC, "B"))

		res, err := h.svc.Result(ctx, h.exam.ID, studentID)
		require.NoError(t, err)
		assert.True(t, res.ResultsHidden)
		assert.Nil(t, res.TotalScore)
		assert.Empty(t, res.Questions)
		assert.Equal(t, model.AttemptStatusGraded, res.Status)
	})

	t.Run("correct answers shown", func(t *testing.T) {
		h := newHarness(t, func(e *model.Exam) { e.ShowCorrectAnswers = true })
		h.submit(t, h.start(t), items(qMC, "A", qTF, "true"))

		res, err := h.svc.Result(ctx, h.exam.ID, studentID)
		require.NoError(t, err)
		require.Len(t, res.Questions, 3)
		assert.Equal(t, "B", res.Questions[0].CorrectAnswer)
		assert.Equal(t, "A", *res.Questions[0].Answer)
		assert.False(t, *res.Questions[0].IsCorrect)
		assert.Equal(t, "true", res.Questions[1].CorrectAnswer)
		assert.Nil(t, res.Questions[2].Answer)
		assert.Equal(t, 3.0, *res.TotalScore)
		assert.False(t, *res.Passed)
	})

	t.Run("correct answers hidden", func(t *testing.T) {
		h := newHarness(t)
		h.submit(t, h.start(t), items(qMC, "A"))

		res, err := h.svc.Result(ctx, h.exam.ID, studentID)
		require.NoError(t, err)
		for _, q := range res.Questions {
			assert.Empty(t, q.CorrectAnswer)
		}
	})
}

func TestGradeAnswers_ManualReview(t *testing.T) {
	h := newHarness(t, func(e *model.Exam) {
		e.AutoGrade = map[model.QuestionType]bool{model.QuestionTypeShortAnswer: false}
	})
	ctx := context.Background()
	a := h.start(t)

	res := h.submit(t, a, items(qMC, "B", qTF, "true", qSA, "klorofil menyerap cahaya"))
	assert.Equal(t, model.AttemptStatusSubmitted, res.Status)
	assert.Equal(t, 1, res.PendingReview)
	assert.Equal(t, 8.0, res.TotalScore)

	_, err := h.svc.GradeAnswers(ctx, a.ID, []model.ManualGrade{{QuestionID: qSA, Points: 9}})
	assert.ErrorIs(t, err, ErrInvalidGrade)
	_, err = h.svc.GradeAnswers(ctx, a.ID, []model.ManualGrade{{QuestionID: qMC, Points: 5}})
	assert.ErrorIs(t, err, ErrNothingToGrade)

	graded, err := h.svc.GradeAnswers(ctx, a.ID, []model.ManualGrade{{QuestionID: qSA, Points: 4}})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusGraded, graded.Status)
	assert.Equal(t, 12.0, graded.TotalScore)
	assert.Equal(t, 80.0, graded.Percentage)
	assert.Equal(t, "B", graded.Grade)
	assert.Zero(t, graded.PendingReview)
	assert.Len(t, h.events.ofType(model.EventAttemptGraded), 1)

	_, err = h.svc.GradeAnswers(ctx, a.ID, []model.ManualGrade{{QuestionID: qSA, Points: 7}})
	assert.ErrorIs(t, err, ErrNothingToGrade)
}

func TestGradeAnswers_InProgress(t *testing.T) {
	h := newHarness(t)
	a := h.start(t)
	_, err := h.svc.GradeAnswers(context.Background(), a.ID, []model.ManualGrade{{QuestionID: qSA, Points: 1}})
	assert.ErrorIs(t, err, ErrAttemptNotFinished)
}

func TestRecoverExpiries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.start(t)

	require.NoError(t, h.expiry.Cancel(ctx, a.ID))
	require.NoError(t, h.live.DropState(ctx, a.ID))

	n, err := h.svc.RecoverExpiries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deadline, ok := h.expiry.scheduled(a.ID)
	require.True(t, ok)
	assert.Equal(t, a.DeadlineAt, deadline)
	st, err := h.live.GetState(ctx, a.ID)
	require.NoError(t, err)
	assert.NotNil(t, st)

	ids, err := h.svc.ActiveExamIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{h.exam.ID}, ids)
}
