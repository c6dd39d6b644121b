package grading

import "github.com/notefold/notefold-backend/internal/model"

// RewriteOutcome reports what RewriteAnswer did to one submission's answers.
type RewriteOutcome int

const (
	// RewriteUnchanged: the question is absent or its answer does not match old.
	RewriteUnchanged RewriteOutcome = iota
	// RewriteInvalid: old or new does not fit this submission's permutation.
	RewriteInvalid
	// RewriteApplied: the answer matched old and was replaced with new.
	RewriteApplied
)

// RewriteAnswer applies a retroactive answer correction to a single
// submission. The question is addressed by its position in the answer list;
// old and new are canonical indices, with nil standing for "unanswered".
// Option counts vary per submission, so old and new are validated against
// this submission's own permutation: when either does not fit, the answers
// are left untouched and the caller decides how to report it.
func RewriteAnswer(answers []model.Answer, questionIndex int, oldAnswer, newAnswer *int) RewriteOutcome {
	if questionIndex < 0 || questionIndex >= len(answers) {
		return RewriteUnchanged
	}

	ans := &answers[questionIndex]
	n := len(ans.Permutation)
	if !indexFits(oldAnswer, n) || !indexFits(newAnswer, n) {
		return RewriteInvalid
	}
	if !intPtrEqual(ans.Answer, oldAnswer) {
		return RewriteUnchanged
	}

	ans.Answer = clonePtr(newAnswer)
	return RewriteApplied
}

func indexFits(v *int, n int) bool {
	return v == nil || (*v >= 0 && *v < n)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clonePtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
