package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/model"
	"github.com/stemsi/exstem-engine/internal/scoring"
)

// answerBufferSlack keeps the Redis answer buffer alive a little past the
// deadline so a late timer submit still sees it.
const answerBufferSlack = time.Hour

// SessionOptions tune the session controller.
type SessionOptions struct {
	// SubmitGrace is how long after the deadline a client submit is accepted.
	SubmitGrace time.Duration
	// AutoGradeSubjective is the default auto-grade policy for subjective types.
	AutoGradeSubjective bool
}

// SessionService runs the attempt lifecycle: start, view, autosave, submit
// and the timer-forced submit. It is the only writer of attempts.
type SessionService struct {
	exams    ExamProvider
	attempts AttemptStore
	live     LiveState
	expiry   ExpiryScheduler
	events   EventPublisher
	opts     SessionOptions
	log      zerolog.Logger

	now  func() time.Time
	seed func() int64
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	exams ExamProvider,
	attempts AttemptStore,
	live LiveState,
	expiry ExpiryScheduler,
	events EventPublisher,
	opts SessionOptions,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		exams:    exams,
		attempts: attempts,
		live:     live,
		expiry:   expiry,
		events:   events,
		opts:     opts,
		log:      log.With().Str("component", "session_service").Logger(),
		now:      time.Now,
		seed:     rand.Int64,
	}
}

// SaveAnswerInput is one autosave. StudentID, when non-zero, must own the attempt.
type SaveAnswerInput struct {
	StudentID  int
	QuestionID uuid.UUID
	Answer     string
	TimeSpent  int
}

// SubmitInput seals an attempt. A nil Answers keeps the autosaved set; a
// non-nil slice replaces it. StudentID, when non-zero, must own the attempt.
type SubmitInput struct {
	ExamID         uuid.UUID
	AttemptID      uuid.UUID
	StudentID      int
	Answers        []model.SubmitAnswerItem
	TotalTimeSpent int
	Trigger        model.SubmitTrigger
}

// Start opens an attempt for the student, or returns the one already in
// progress. created reports whether a new attempt was made.
func (s *SessionService) Start(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, bool, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	if !exam.IsActive(now) {
		return nil, false, ErrExamNotActive
	}

	candidate := &model.Attempt{
		ExamID:      examID,
		StudentID:   studentID,
		StartedAt:   now,
		DeadlineAt:  now.Add(exam.Duration()),
		ShuffleSeed: s.seed(),
	}

	out, err := s.attempts.Open(ctx, candidate, exam.MaxAttempts)
	if err != nil {
		return nil, false, fmt.Errorf("open attempt: %w", err)
	}
	if out.Attempt == nil {
		s.log.Info().
			Str("exam_id", examID.String()).
			Int("student_id", studentID).
			Int("finished", out.Finished).
			Msg("Attempts exhausted")
		return nil, false, ErrAttemptsExhausted
	}

	a := out.Attempt
	s.cacheState(ctx, a)
	if err := s.expiry.Schedule(ctx, a.ID, a.DeadlineAt); err != nil {
		s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to schedule attempt deadline")
	}

	if out.Created {
		s.publish(ctx, a, model.EventAttemptStarted, map[string]any{
			"attempt_number": a.AttemptNumber,
			"deadline_at":    a.DeadlineAt,
		})
		s.log.Info().
			Str("attempt_id", a.ID.String()).
			Str("exam_id", examID.String()).
			Int("student_id", studentID).
			Int("attempt_number", a.AttemptNumber).
			Msg("Attempt started")
	}
	return a, out.Created, nil
}

// TakingView returns the sanitized questions of the student's in-progress
// attempt in its stable order, with the answers saved so far.
func (s *SessionService) TakingView(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamPayload, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !exam.IsActive(now) {
		return nil, ErrExamNotActive
	}

	attempts, err := s.attempts.ListByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	var current *model.Attempt
	for i := range attempts {
		if attempts[i].InProgress() {
			current = &attempts[i]
			break
		}
	}
	if current == nil {
		return nil, ErrAttemptNotActive
	}

	full, err := s.attempts.GetByID(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	buffered, err := s.live.Answers(ctx, full.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", full.ID.String()).Msg("Answer buffer unavailable, using persisted answers")
	}
	merged := mergeAnswers(full.Answers, buffered)

	existing := make(map[string]string, len(merged))
	for qid, ans := range merged {
		if _, ok := exam.Question(qid); ok {
			existing[qid.String()] = ans.Answer
		}
	}

	remaining := full.DeadlineAt.Sub(now).Seconds()
	if remaining < 0 {
		remaining = 0
	}

	return &model.ExamPayload{
		AttemptID:        full.ID,
		AttemptNumber:    full.AttemptNumber,
		ExamID:           exam.ID,
		Title:            exam.Title,
		Instructions:     exam.Instructions,
		Duration:         exam.DurationMinutes,
		RemainingSeconds: remaining,
		Questions:        ArrangeQuestions(exam, full.ShuffleSeed),
		ExistingAnswers:  existing,
	}, nil
}

// SaveAnswer records one answer of an in-progress attempt. Saving the same
// question again overwrites the previous value.
func (s *SessionService) SaveAnswer(ctx context.Context, examID, attemptID uuid.UUID, in SaveAnswerInput) (*model.SaveAnswerResponse, error) {
	st, err := s.state(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if st.ExamID != examID || (in.StudentID != 0 && st.StudentID != in.StudentID) {
		return nil, ErrAttemptNotFound
	}

	now := s.now()
	if st.Status != model.AttemptStatusInProgress || now.After(st.DeadlineAt) {
		return nil, ErrAttemptNotActive
	}

	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.IsActive(now) {
		return nil, ErrAttemptNotActive
	}
	if _, ok := exam.Question(in.QuestionID); !ok {
		return nil, ErrQuestionNotInExam
	}

	entry := model.AutosaveEntry{
		AttemptID:  attemptID,
		QuestionID: in.QuestionID,
		Answer:     in.Answer,
		TimeSpent:  in.TimeSpent,
		SavedAt:    now,
	}
	if err := s.live.SaveAnswer(ctx, entry, st.DeadlineAt.Add(answerBufferSlack)); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}
	s.publish(ctx, &model.Attempt{ID: attemptID, ExamID: examID, StudentID: st.StudentID},
		model.EventAnswerSaved, map[string]any{"question_id": in.QuestionID})

	return &model.SaveAnswerResponse{Ack: true, QuestionID: in.QuestionID, SavedAt: now}, nil
}

// Submit seals an attempt exactly once. Client and timer submits share this
// path; whichever locks the attempt first wins and the other gets
// ErrAttemptNotActive.
func (s *SessionService) Submit(ctx context.Context, in SubmitInput) (*model.SubmitResult, error) {
	exam, err := s.exams.GetExam(ctx, in.ExamID)
	if err != nil {
		return nil, err
	}

	var buffered map[uuid.UUID]model.AutosaveEntry
	if in.Answers == nil {
		buffered, err = s.live.Answers(ctx, in.AttemptID)
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", in.AttemptID.String()).Msg("Answer buffer unavailable, sealing persisted answers")
		}
	}

	policy := scoring.PolicyFor(exam, s.opts.AutoGradeSubjective)
	now := s.now()
	var result scoring.Result

	sealed, err := s.attempts.Update(ctx, in.AttemptID, func(a *model.Attempt) error {
		if a.ExamID != in.ExamID || (in.StudentID != 0 && a.StudentID != in.StudentID) {
			return ErrAttemptNotFound
		}
		if !a.InProgress() {
			return ErrAttemptNotActive
		}

		sealedAt := now
		switch in.Trigger {
		case model.SubmitTriggerTimer:
			if now.Before(a.DeadlineAt) {
				return &NotDueError{AttemptID: a.ID, DeadlineAt: a.DeadlineAt}
			}
			// Time ran out at the deadline, however late the watcher got here.
			sealedAt = a.DeadlineAt
		default:
			// Past the attempt's own deadline or the exam window, only the
			// timer may seal, and it seals the autosaved set.
			if now.After(a.DeadlineAt.Add(s.opts.SubmitGrace)) || now.After(exam.EndDate.Add(s.opts.SubmitGrace)) {
				return ErrAttemptNotActive
			}
		}

		var answers map[uuid.UUID]model.Answer
		if in.Answers != nil {
			answers = snapshotAnswers(in.Answers, now)
		} else {
			answers = mergeAnswers(a.Answers, buffered)
		}

		result = scoring.Score(exam, answers, policy)
		applyResult(a, result)
		a.Answers = result.Apply(answers)
		a.SubmittedAt = &sealedAt
		a.IsLate = sealedAt.After(exam.EndDate)
		a.TimeSpent = max(a.TimeSpent, in.TotalTimeSpent)
		a.SubmitTrigger = in.Trigger
		if result.PendingReview > 0 {
			a.Status = model.AttemptStatusSubmitted
		} else {
			a.Status = model.AttemptStatusGraded
			a.GradedAt = &sealedAt
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	s.afterSeal(ctx, sealed, result)
	return submitResult(sealed, result), nil
}

// ForceSubmit seals an attempt whose time has run out, through Submit.
func (s *SessionService) ForceSubmit(ctx context.Context, attemptID uuid.UUID) (*model.SubmitResult, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if !a.InProgress() {
		return nil, ErrAttemptNotActive
	}

	elapsed := min(s.now().Sub(a.StartedAt), a.DeadlineAt.Sub(a.StartedAt))
	return s.Submit(ctx, SubmitInput{
		ExamID:         a.ExamID,
		AttemptID:      a.ID,
		TotalTimeSpent: int(elapsed.Seconds()),
		Trigger:        model.SubmitTriggerTimer,
	})
}

// Result returns the student's latest finished attempt, shaped by the exam's
// result policy.
func (s *SessionService) Result(ctx context.Context, examID uuid.UUID, studentID int) (*model.AttemptResult, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	var latest *model.Attempt
	inProgress := false
	for i := range attempts {
		a := &attempts[i]
		if a.InProgress() {
			inProgress = true
			continue
		}
		if latest == nil || a.AttemptNumber > latest.AttemptNumber {
			latest = a
		}
	}
	if latest == nil {
		if inProgress {
			return nil, ErrAttemptNotFinished
		}
		return nil, ErrAttemptNotFound
	}

	full, err := s.attempts.GetByID(ctx, latest.ID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	res := &model.AttemptResult{
		AttemptID:     full.ID,
		ExamID:        full.ExamID,
		StudentID:     full.StudentID,
		AttemptNumber: full.AttemptNumber,
		Status:        full.Status,
		StartedAt:     full.StartedAt,
		SubmittedAt:   full.SubmittedAt,
		TimeSpent:     full.TimeSpent,
		IsLate:        full.IsLate,
		PendingReview: full.PendingReview(),
	}
	if !exam.ShowResults {
		res.ResultsHidden = true
		return res, nil
	}

	res.TotalScore = full.TotalScore
	res.TotalPoints = exam.TotalPoints
	res.Percentage = full.Percentage
	res.Grade = full.Grade
	if full.Percentage != nil {
		passed := *full.Percentage >= exam.PassingScore
		res.Passed = &passed
	}

	res.Questions = make([]model.ResultQuestion, 0, len(exam.Questions))
	for i := range exam.Questions {
		q := &exam.Questions[i]
		view := q.ForStudent()
		rq := model.ResultQuestion{
			ID:           q.ID,
			Number:       i + 1,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      view.Options,
			Points:       q.Points,
		}
		if ans, ok := full.Answers[q.ID]; ok {
			value := ans.Answer
			rq.Answer = &value
			rq.IsCorrect = ans.IsCorrect
			rq.PointsEarned = ans.PointsEarned
			rq.NeedsReview = ans.NeedsReview
		}
		if exam.ShowCorrectAnswers {
			rq.CorrectAnswer = correctAnswerOf(q)
		}
		res.Questions = append(res.Questions, rq)
	}
	return res, nil
}

// History lists the student's attempts at the exam and how many remain.
func (s *SessionService) History(ctx context.Context, examID uuid.UUID, studentID int) (*model.AttemptHistory, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	h := &model.AttemptHistory{
		ExamID:      examID,
		StudentID:   studentID,
		MaxAttempts: exam.MaxAttempts,
		Attempts:    make([]model.AttemptSummary, 0, len(attempts)),
	}
	for _, a := range attempts {
		h.Attempts = append(h.Attempts, model.AttemptSummary{
			AttemptID:     a.ID,
			AttemptNumber: a.AttemptNumber,
			Status:        a.Status,
			StartedAt:     a.StartedAt,
			SubmittedAt:   a.SubmittedAt,
			TotalScore:    a.TotalScore,
			Percentage:    a.Percentage,
			Grade:         a.Grade,
			IsLate:        a.IsLate,
		})
	}
	h.AttemptsRemaining = max(exam.MaxAttempts-len(attempts), 0)
	return h, nil
}

// GradeAnswers applies manual grades to answers awaiting review and
// recomputes the attempt's totals. The attempt becomes GRADED once nothing
// is left to review.
func (s *SessionService) GradeAnswers(ctx context.Context, attemptID uuid.UUID, grades []model.ManualGrade) (*model.SubmitResult, error) {
	current, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	exam, err := s.exams.GetExam(ctx, current.ExamID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var result scoring.Result
	wasGraded := false

	graded, err := s.attempts.Update(ctx, attemptID, func(a *model.Attempt) error {
		if a.InProgress() {
			return ErrAttemptNotFinished
		}
		wasGraded = a.Status == model.AttemptStatusGraded

		for _, g := range grades {
			q, ok := exam.Question(g.QuestionID)
			if !ok {
				return ErrQuestionNotInExam
			}
			ans, ok := a.Answers[g.QuestionID]
			if !ok || !ans.NeedsReview {
				return ErrNothingToGrade
			}
			if g.Points < 0 || g.Points > float64(q.Points) {
				return ErrInvalidGrade
			}
			points := g.Points
			correct := g.Points == float64(q.Points)
			ans.PointsEarned = &points
			ans.IsCorrect = &correct
			ans.NeedsReview = false
			ans.UpdatedAt = now
			a.Answers[g.QuestionID] = ans
		}

		result = scoring.Regrade(exam, a.Answers)
		applyResult(a, result)
		if result.PendingReview == 0 {
			a.Status = model.AttemptStatusGraded
			a.GradedAt = &now
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	if !wasGraded && graded.Status == model.AttemptStatusGraded {
		s.cacheState(ctx, graded)
		s.publish(ctx, graded, model.EventAttemptGraded, map[string]any{
			"total_score": result.TotalScore,
			"grade":       result.Grade,
		})
	}
	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("graded", len(grades)).
		Int("pending_review", result.PendingReview).
		Msg("Manual grades applied")
	return submitResult(graded, result), nil
}

// RecoverExpiries re-registers the deadline and cached state of every
// in-progress attempt. Run it once at boot so a lost Redis does not leave
// attempts open forever.
func (s *SessionService) RecoverExpiries(ctx context.Context) (int, error) {
	open, err := s.attempts.ListInProgress(ctx)
	if err != nil {
		return 0, fmt.Errorf("list in-progress attempts: %w", err)
	}

	recovered := 0
	for i := range open {
		a := &open[i]
		if err := s.expiry.Schedule(ctx, a.ID, a.DeadlineAt); err != nil {
			s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to reschedule deadline")
			continue
		}
		s.cacheState(ctx, a)
		recovered++
	}
	return recovered, nil
}

// ActiveExamIDs returns the exams that currently have attempts in progress.
func (s *SessionService) ActiveExamIDs(ctx context.Context) ([]uuid.UUID, error) {
	open, err := s.attempts.ListInProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("list in-progress attempts: %w", err)
	}
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, a := range open {
		if _, ok := seen[a.ExamID]; ok {
			continue
		}
		seen[a.ExamID] = struct{}{}
		ids = append(ids, a.ExamID)
	}
	return ids, nil
}

// state returns the attempt's live state from Redis, falling back to
// Postgres and writing it back on a miss.
func (s *SessionService) state(ctx context.Context, attemptID uuid.UUID) (*model.AttemptState, error) {
	st, err := s.live.GetState(ctx, attemptID)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Live state read failed, falling back to database")
	}
	if st != nil {
		return st, nil
	}

	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	s.cacheState(ctx, a)
	fresh := model.StateOf(a)
	return &fresh, nil
}

func (s *SessionService) afterSeal(ctx context.Context, a *model.Attempt, result scoring.Result) {
	s.sealState(ctx, a)
	if err := s.live.Clear(ctx, a.ID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to clear answer buffer")
	}
	if err := s.expiry.Cancel(ctx, a.ID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to cancel deadline")
	}

	evType := model.EventAttemptSubmitted
	msg := "Attempt submitted"
	if a.SubmitTrigger == model.SubmitTriggerTimer {
		evType = model.EventAttemptForced
		msg = "Attempt force-submitted"
	}
	s.publish(ctx, a, evType, map[string]any{
		"total_score":    result.TotalScore,
		"percentage":     result.Percentage,
		"grade":          result.Grade,
		"is_late":        a.IsLate,
		"pending_review": result.PendingReview,
	})
	if a.Status == model.AttemptStatusGraded {
		s.publish(ctx, a, model.EventAttemptGraded, map[string]any{
			"total_score": result.TotalScore,
			"grade":       result.Grade,
		})
	}

	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("exam_id", a.ExamID.String()).
		Int("student_id", a.StudentID).
		Float64("total_score", result.TotalScore).
		Str("grade", result.Grade).
		Bool("is_late", a.IsLate).
		Msg(msg)
}

func (s *SessionService) cacheState(ctx context.Context, a *model.Attempt) {
	if err := s.live.PutState(ctx, model.StateOf(a)); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to cache attempt state")
	}
}

// sealState publishes the sealed status to the live cache. If that fails the
// stale IN_PROGRESS entry is dropped, so autosaves re-read Postgres instead
// of being acknowledged against a sealed attempt.
func (s *SessionService) sealState(ctx context.Context, a *model.Attempt) {
	err := s.live.PutState(ctx, model.StateOf(a))
	if err == nil {
		return
	}
	s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to cache sealed attempt state, dropping it")
	if err := s.live.DropState(context.WithoutCancel(ctx), a.ID); err != nil {
		s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to drop stale attempt state")
	}
}

func (s *SessionService) publish(ctx context.Context, a *model.Attempt, t model.EventType, payload map[string]any) {
	raw, _ := json.Marshal(payload)
	ev := model.AttemptEvent{
		AttemptID:  a.ID,
		ExamID:     a.ExamID,
		StudentID:  a.StudentID,
		Type:       t,
		Payload:    raw,
		RecordedAt: s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Str("event", string(t)).Msg("Failed to publish attempt event")
	}
}

// mergeAnswers overlays buffered autosaves onto persisted answers. A
// buffered entry wins unless the persisted answer is strictly newer.
func mergeAnswers(persisted map[uuid.UUID]model.Answer, buffered map[uuid.UUID]model.AutosaveEntry) map[uuid.UUID]model.Answer {
	out := make(map[uuid.UUID]model.Answer, len(persisted)+len(buffered))
	for qid, ans := range persisted {
		out[qid] = ans
	}
	for qid, entry := range buffered {
		if prev, ok := out[qid]; ok && prev.UpdatedAt.After(entry.SavedAt) {
			continue
		}
		out[qid] = model.Answer{
			QuestionID: qid,
			Answer:     entry.Answer,
			TimeSpent:  entry.TimeSpent,
			UpdatedAt:  entry.SavedAt,
		}
	}
	return out
}

// snapshotAnswers turns a client's final answer list into an answer set.
// A question listed twice keeps its last value.
func snapshotAnswers(items []model.SubmitAnswerItem, now time.Time) map[uuid.UUID]model.Answer {
	out := make(map[uuid.UUID]model.Answer, len(items))
	for _, it := range items {
		out[it.QuestionID] = model.Answer{
			QuestionID: it.QuestionID,
			Answer:     it.Answer,
			TimeSpent:  it.TimeSpent,
			UpdatedAt:  now,
		}
	}
	return out
}

func applyResult(a *model.Attempt, r scoring.Result) {
	total := r.TotalScore
	pct := r.Percentage
	a.TotalScore = &total
	a.Percentage = &pct
	a.Grade = r.Grade
}

func submitResult(a *model.Attempt, r scoring.Result) *model.SubmitResult {
	out := &model.SubmitResult{
		AttemptID:     a.ID,
		Status:        a.Status,
		TotalScore:    r.TotalScore,
		TotalPoints:   r.TotalPoints,
		Percentage:    r.Percentage,
		Grade:         r.Grade,
		Passed:        r.Passed,
		IsLate:        a.IsLate,
		PendingReview: r.PendingReview,
		SubmitTrigger: a.SubmitTrigger,
	}
	if a.SubmittedAt != nil {
		out.SubmittedAt = *a.SubmittedAt
	}
	return out
}

func correctAnswerOf(q *model.Question) string {
	if q.QuestionType == model.QuestionTypeMultipleChoice {
		if opt, ok := q.CorrectOption(); ok {
			return opt.ID
		}
		return ""
	}
	return q.CorrectAnswer
}
