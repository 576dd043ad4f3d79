package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manyQuestions(n int) *model.Exam {
	e := &model.Exam{ID: uuid.New(), ShuffleQuestions: true, ShuffleOptions: true}
	for i := 0; i < n; i++ {
		e.Questions = append(e.Questions, model.Question{
			ID:           uuid.New(),
			QuestionText: "q",
			QuestionType: model.QuestionTypeMultipleChoice,
			Options: []model.Option{
				{ID: "A", Text: "a"}, {ID: "B", Text: "b", IsCorrect: true}, {ID: "C", Text: "c"}, {ID: "D", Text: "d"},
			},
			Points:   1,
			OrderNum: i + 1,
		})
	}
	return e
}

func ids(views []model.QuestionForStudent) []uuid.UUID {
	out := make([]uuid.UUID, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestArrangeQuestions_SameSeedSameOrder(t *testing.T) {
	exam := manyQuestions(12)

	first := ArrangeQuestions(exam, 7)
	second := ArrangeQuestions(exam, 7)

	assert.Equal(t, first, second)
}

func TestArrangeQuestions_IsPermutation(t *testing.T) {
	exam := manyQuestions(12)
	want := make([]uuid.UUID, len(exam.Questions))
	for i, q := range exam.Questions {
		want[i] = q.ID
	}

	views := ArrangeQuestions(exam, 99)

	require.Len(t, views, 12)
	assert.ElementsMatch(t, want, ids(views))
	for i, v := range views {
		assert.Equal(t, i+1, v.Number)
		assert.Len(t, v.Options, 4)
	}
}

func TestArrangeQuestions_SeedsDiffer(t *testing.T) {
	exam := manyQuestions(12)

	differs := false
	base := ids(ArrangeQuestions(exam, 1))
	for seed := int64(2); seed < 10 && !differs; seed++ {
		if !assert.ObjectsAreEqual(base, ids(ArrangeQuestions(exam, seed))) {
			differs = true
		}
	}
	assert.True(t, differs)
}

func TestArrangeQuestions_NoShuffleKeepsAuthoredOrder(t *testing.T) {
	exam := manyQuestions(5)
	exam.ShuffleQuestions = false
	exam.ShuffleOptions = false

	views := ArrangeQuestions(exam, 123)

	for i, v := range views {
		assert.Equal(t, exam.Questions[i].ID, v.ID)
		assert.Equal(t, "A", v.Options[0].ID)
	}
}

func TestArrangeQuestions_DoesNotMutateExam(t *testing.T) {
	exam := manyQuestions(6)
	before := append([]model.Question(nil), exam.Questions...)

	ArrangeQuestions(exam, 5)

	assert.Equal(t, before, exam.Questions)
	assert.Equal(t, "A", exam.Questions[0].Options[0].ID)
}
