package service

import (
	"hash/fnv"
	"math/rand/v2"

	"github.com/stemsi/exstem-engine/internal/model"
)

// ArrangeQuestions returns the exam's questions as student views, in the
// order a given attempt sees them. The order is a pure function of the exam
// and the attempt's shuffle seed, so every view of one attempt agrees.
func ArrangeQuestions(exam *model.Exam, seed int64) []model.QuestionForStudent {
	views := make([]model.QuestionForStudent, len(exam.Questions))
	for i := range exam.Questions {
		views[i] = exam.Questions[i].ForStudent()
	}

	if exam.ShuffleQuestions {
		r := rand.New(rand.NewPCG(uint64(seed), 0x51a7e5eed))
		r.Shuffle(len(views), func(i, j int) { views[i], views[j] = views[j], views[i] })
	}

	if exam.ShuffleOptions {
		for i := range views {
			opts := views[i].Options
			if len(opts) < 2 {
				continue
			}
			r := rand.New(rand.NewPCG(uint64(seed), questionSalt(views[i])))
			r.Shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
		}
	}

	for i := range views {
		views[i].Number = i + 1
	}
	return views
}

func questionSalt(q model.QuestionForStudent) uint64 {
	h := fnv.New64a()
	h.Write(q.ID[:])
	return h.Sum64()
}
