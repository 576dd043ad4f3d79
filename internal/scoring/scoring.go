// Package scoring computes attempt scores from an exam definition and a set
// of answers. Everything here is pure: no clock, no storage, no randomness.
package scoring

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-engine/internal/model"
)

// Policy controls the scoring rules that vary per deployment or per exam.
type Policy struct {
	// AutoGrade maps a subjective question type to whether it earns full
	// credit without review. Types missing from the map are auto-graded.
	AutoGrade map[model.QuestionType]bool
	// MatchOptionText lets a multiple-choice answer that is not an option id
	// resolve by option text, provided exactly one option carries that text.
	MatchOptionText bool
}

// DefaultPolicy auto-grades every type and accepts option text.
func DefaultPolicy() Policy {
	return Policy{MatchOptionText: true}
}

// PolicyFor builds the effective policy for an exam: subjectiveDefault
// applies to every subjective type unless the exam overrides it.
func PolicyFor(exam *model.Exam, subjectiveDefault bool) Policy {
	p := DefaultPolicy()
	p.AutoGrade = make(map[model.QuestionType]bool, len(model.QuestionTypes))
	for _, t := range model.QuestionTypes {
		if t.Subjective() {
			p.AutoGrade[t] = subjectiveDefault
		}
	}
	for t, v := range exam.AutoGrade {
		p.AutoGrade[t] = v
	}
	return p
}

func (p Policy) autoGrades(t model.QuestionType) bool {
	v, ok := p.AutoGrade[t]
	if !ok {
		return true
	}
	return v
}

// QuestionResult is the verdict for a single question.
type QuestionResult struct {
	QuestionID   uuid.UUID
	Answered     bool
	IsCorrect    bool
	PointsEarned float64
	NeedsReview  bool
}

// Result is the outcome of scoring one attempt.
type Result struct {
	Questions     []QuestionResult
	TotalScore    float64
	TotalPoints   int
	Percentage    float64
	Grade         string
	Passed        bool
	PendingReview int
}

// ByQuestion indexes the per-question verdicts.
func (r Result) ByQuestion() map[uuid.UUID]QuestionResult {
	out := make(map[uuid.UUID]QuestionResult, len(r.Questions))
	for _, q := range r.Questions {
		out[q.QuestionID] = q
	}
	return out
}

// Apply returns a copy of answers with the grading fields of r written onto
// every answered question. Answers to questions not in the exam are dropped.
func (r Result) Apply(answers map[uuid.UUID]model.Answer) map[uuid.UUID]model.Answer {
	out := make(map[uuid.UUID]model.Answer, len(answers))
	for _, qr := range r.Questions {
		ans, ok := answers[qr.QuestionID]
		if !ok {
			continue
		}
		correct := qr.IsCorrect
		points := qr.PointsEarned
		ans.IsCorrect = &correct
		ans.PointsEarned = &points
		ans.NeedsReview = qr.NeedsReview
		out[qr.QuestionID] = ans
	}
	return out
}

type verdict struct {
	correct     bool
	needsReview bool
}

type strategy func(q *model.Question, answer string, p Policy) verdict

var strategies = map[model.QuestionType]strategy{
	model.QuestionTypeMultipleChoice: scoreMultipleChoice,
	model.QuestionTypeTrueFalse:      scoreTrueFalse,
	model.QuestionTypeShortAnswer:    scoreSubjective,
	model.QuestionTypeEssay:          scoreSubjective,
	model.QuestionTypeFillBlank:      scoreSubjective,
}

// Score grades answers against exam in question order. A question with no
// entry in answers scores zero; an entry holding an empty string is answered.
func Score(exam *model.Exam, answers map[uuid.UUID]model.Answer, policy Policy) Result {
	res := Result{Questions: make([]QuestionResult, 0, len(exam.Questions))}

	for i := range exam.Questions {
		q := &exam.Questions[i]
		res.TotalPoints += q.Points

		qr := QuestionResult{QuestionID: q.ID}
		ans, ok := answers[q.ID]
		if ok {
			qr.Answered = true
			v := verdict{}
			if s, known := strategies[q.QuestionType]; known {
				v = s(q, ans.Answer, policy)
			} else {
				v.needsReview = true
			}
			qr.IsCorrect = v.correct
			qr.NeedsReview = v.needsReview
			if v.correct {
				qr.PointsEarned = float64(q.Points)
			}
		}
		if qr.NeedsReview {
			res.PendingReview++
		}
		res.TotalScore += qr.PointsEarned
		res.Questions = append(res.Questions, qr)
	}

	res.finish(exam.PassingScore)
	return res
}

// Regrade recomputes totals from the per-answer points already stored on the
// answers, typically after manual grading. Answers without points count as zero.
func Regrade(exam *model.Exam, answers map[uuid.UUID]model.Answer) Result {
	res := Result{Questions: make([]QuestionResult, 0, len(exam.Questions))}

	for i := range exam.Questions {
		q := &exam.Questions[i]
		res.TotalPoints += q.Points

		qr := QuestionResult{QuestionID: q.ID}
		if ans, ok := answers[q.ID]; ok {
			qr.Answered = true
			qr.NeedsReview = ans.NeedsReview
			if ans.IsCorrect != nil {
				qr.IsCorrect = *ans.IsCorrect
			}
			if ans.PointsEarned != nil {
				qr.PointsEarned = *ans.PointsEarned
			}
		}
		if qr.NeedsReview {
			res.PendingReview++
		}
		res.TotalScore += qr.PointsEarned
		res.Questions = append(res.Questions, qr)
	}

	res.finish(exam.PassingScore)
	return res
}

func (r *Result) finish(passingScore float64) {
	r.Percentage = Percentage(r.TotalScore, r.TotalPoints)
	r.Grade = LetterGrade(r.Percentage)
	r.Passed = r.Percentage >= passingScore
}

// Percentage returns score as a percentage of total rounded to two decimals,
// or 0 when total is not positive.
func Percentage(score float64, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round2(score / float64(total) * 100)
}

// LetterGrade maps a percentage onto the A-F bands.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ResolveOption finds the option an answer refers to: by id first, then by
// text when p allows it and the text is unambiguous.
func ResolveOption(q *model.Question, answer string, p Policy) (*model.Option, bool) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, false
	}
	for i := range q.Options {
		if q.Options[i].ID == answer {
			return &q.Options[i], true
		}
	}
	if !p.MatchOptionText {
		return nil, false
	}

	var match *model.Option
	for i := range q.Options {
		if strings.TrimSpace(q.Options[i].Text) != answer {
			continue
		}
		if match != nil {
			return nil, false
		}
		match = &q.Options[i]
	}
	return match, match != nil
}

func scoreMultipleChoice(q *model.Question, answer string, p Policy) verdict {
	opt, ok := ResolveOption(q, answer, p)
	return verdict{correct: ok && opt.IsCorrect}
}

func scoreTrueFalse(q *model.Question, answer string, _ Policy) verdict {
	return verdict{correct: strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer))}
}

func scoreSubjective(q *model.Question, _ string, p Policy) verdict {
	if p.autoGrades(q.QuestionType) {
		return verdict{correct: true}
	}
	return verdict{needsReview: true}
}
