package grading

import "github.com/notefold/notefold-backend/internal/model"

// AnswerScore grades a single answer. Questions without a permutation are
// non-scorable and contribute 0. An abstained answer earns the guessing
// baseline 2/(1+n) for n options: strictly below a correct answer and
// shrinking as the option count grows. Otherwise the answer is worth 1
// exactly when the stored canonical index is 0, the authored-correct slot.
func AnswerScore(a model.Answer) float64 {
	n := len(a.Permutation)
	if n == 0 {
		return 0
	}
	if a.Answer == nil {
		return 2 / float64(1+n)
	}
	if *a.Answer == 0 {
		return 1
	}
	return 0
}

// TestScore is the plain sum of per-answer scores. There is no per-question
// weighting; one answer never affects another's contribution.
func TestScore(answers []model.Answer) float64 {
	total := 0.0
	for _, a := range answers {
		total += AnswerScore(a)
	}
	return total
}
