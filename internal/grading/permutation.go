// Package grading owns option permutations, answer scoring, submission
// materialization and test statistics. Everything here is pure with respect
// to storage: callers fetch and persist, this package computes.
package grading

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/notefold/notefold-backend/internal/model"
)

// ErrInvalidIndex reports an index that is not inside a permutation's
// domain. It aborts the current operation only; stored state is untouched.
var ErrInvalidIndex = errors.New("index out of range for permutation")

// Engine mints option permutations from an injected random source, so
// shuffles are reproducible under a fixed seed.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates an Engine seeded from src.
func NewEngine(src rand.Source) *Engine {
	return &Engine{rng: rand.New(src)}
}

// Perm returns a uniformly random permutation of [0, n).
func (e *Engine) Perm(n int) []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Perm(n)
}

// EnsurePermutation returns the permutation for (answers, noteID). When an
// answer already holds a permutation of the right length it is returned
// unchanged, so a returning student always sees the identical option order.
// Otherwise a fresh permutation is minted and recorded in answers; isNew
// tells the caller it has state to persist.
func (e *Engine) EnsurePermutation(answers *[]model.Answer, noteID string, optionCount int) (model.Answer, bool) {
	for i := range *answers {
		a := &(*answers)[i]
		if a.NoteID != noteID {
			continue
		}
		if len(a.Permutation) == optionCount {
			return *a, false
		}
		// The option count changed since this permutation was minted
		// (the note was edited mid-flight). Remint in place and drop the
		// now-meaningless answer.
		a.Permutation = e.Perm(optionCount)
		a.Answer = nil
		return *a, true
	}

	minted := model.Answer{NoteID: noteID, Permutation: e.Perm(optionCount)}
	*answers = append(*answers, minted)
	return minted, true
}

// ToOriginalIndex converts a displayed index to the canonical index of the
// option shown there: perm[displayed]. A nil index passes through unchanged.
func ToOriginalIndex(perm []int, displayed *int) (*int, error) {
	if displayed == nil {
		return nil, nil
	}
	if *displayed < 0 || *displayed >= len(perm) {
		return nil, fmt.Errorf("%w: displayed %d, options %d", ErrInvalidIndex, *displayed, len(perm))
	}
	original := perm[*displayed]
	return &original, nil
}

// ToDisplayedIndex converts a canonical index back to the position the
// student saw it at. A nil index passes through; an index absent from the
// permutation yields nil, which cannot happen for a well-formed permutation.
func ToDisplayedIndex(perm []int, original *int) (*int, error) {
	if original == nil {
		return nil, nil
	}
	if *original < 0 || *original >= len(perm) {
		return nil, fmt.Errorf("%w: original %d, options %d", ErrInvalidIndex, *original, len(perm))
	}
	for displayed, o := range perm {
		if o == *original {
			d := displayed
			return &d, nil
		}
	}
	return nil, nil
}
