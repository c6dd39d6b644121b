package grading

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/notefold/notefold-backend/internal/model"
)

func testEngine() *Engine {
	return NewEngine(rand.NewSource(1))
}

func TestPermIsBijection(t *testing.T) {
	e := testEngine()
	for n := 1; n <= 12; n++ {
		perm := e.Perm(n)
		if len(perm) != n {
			t.Fatalf("len = %d, want %d", len(perm), n)
		}
		seen := make([]bool, n)
		for _, v := range perm {
			if v < 0 || v >= n || seen[v] {
				t.Fatalf("perm %v is not a bijection on [0,%d)", perm, n)
			}
			seen[v] = true
		}
	}
}

func TestIndexConversionsAreMutualInverses(t *testing.T) {
	e := testEngine()
	for n := 1; n <= 10; n++ {
		perm := e.Perm(n)

		for d := 0; d < n; d++ {
			d := d
			original, err := ToOriginalIndex(perm, &d)
			if err != nil {
				t.Fatalf("ToOriginalIndex(%v, %d): %v", perm, d, err)
			}
			back, err := ToDisplayedIndex(perm, original)
			if err != nil {
				t.Fatalf("ToDisplayedIndex(%v, %d): %v", perm, *original, err)
			}
			if back == nil || *back != d {
				t.Errorf("round trip displayed %d through %v gave %v", d, perm, back)
			}
		}

		for o := 0; o < n; o++ {
			o := o
			displayed, err := ToDisplayedIndex(perm, &o)
			if err != nil {
				t.Fatalf("ToDisplayedIndex: %v", err)
			}
			back, err := ToOriginalIndex(perm, displayed)
			if err != nil {
				t.Fatalf("ToOriginalIndex: %v", err)
			}
			if back == nil || *back != o {
				t.Errorf("round trip original %d through %v gave %v", o, perm, back)
			}
		}
	}
}

func TestIndexConversionNilPassthrough(t *testing.T) {
	perm := []int{2, 0, 1}

	if v, err := ToOriginalIndex(perm, nil); v != nil || err != nil {
		t.Errorf("ToOriginalIndex(nil) = %v, %v", v, err)
	}
	if v, err := ToDisplayedIndex(perm, nil); v != nil || err != nil {
		t.Errorf("ToDisplayedIndex(nil) = %v, %v", v, err)
	}
}

func TestIndexConversionRangeErrors(t *testing.T) {
	perm := []int{2, 0, 1}
	for _, bad := range []int{-1, 3, 99} {
		bad := bad
		if _, err := ToOriginalIndex(perm, &bad); !errors.Is(err, ErrInvalidIndex) {
			t.Errorf("ToOriginalIndex(%d) err = %v", bad, err)
		}
		if _, err := ToDisplayedIndex(perm, &bad); !errors.Is(err, ErrInvalidIndex) {
			t.Errorf("ToDisplayedIndex(%d) err = %v", bad, err)
		}
	}
}

func TestEnsurePermutationMintsOnce(t *testing.T) {
	e := testEngine()
	var answers []model.Answer

	first, isNew := e.EnsurePermutation(&answers, "q1", 4)
	if !isNew {
		t.Fatal("first call must mint")
	}
	if len(answers) != 1 || first.Answer != nil {
		t.Fatalf("answers = %+v", answers)
	}

	second, isNew := e.EnsurePermutation(&answers, "q1", 4)
	if isNew {
		t.Fatal("second call must be idempotent")
	}
	if !reflect.DeepEqual(first.Permutation, second.Permutation) {
		t.Errorf("returning student saw a different order: %v vs %v", first.Permutation, second.Permutation)
	}
	if len(answers) != 1 {
		t.Errorf("answers grew to %d entries", len(answers))
	}
}

func TestEnsurePermutationRemintsOnOptionCountChange(t *testing.T) {
	e := testEngine()
	two := 2
	answers := []model.Answer{{NoteID: "q1", Permutation: []int{1, 0, 2}, Answer: &two}}

	a, isNew := e.EnsurePermutation(&answers, "q1", 5)
	if !isNew {
		t.Fatal("length mismatch must remint")
	}
	if len(a.Permutation) != 5 {
		t.Errorf("permutation length = %d", len(a.Permutation))
	}
	if a.Answer != nil {
		t.Errorf("stale answer survived remint: %v", *a.Answer)
	}
	if len(answers) != 1 {
		t.Errorf("remint must not duplicate the answer entry, got %d", len(answers))
	}
}

func TestEnsurePermutationSeparateQuestions(t *testing.T) {
	e := testEngine()
	var answers []model.Answer

	e.EnsurePermutation(&answers, "q1", 3)
	e.EnsurePermutation(&answers, "q2", 4)

	if len(answers) != 2 {
		t.Fatalf("answers = %+v", answers)
	}
	if answers[0].NoteID != "q1" || answers[1].NoteID != "q2" {
		t.Errorf("answers = %+v", answers)
	}
}

func TestEngineIsDeterministicUnderFixedSeed(t *testing.T) {
	a := NewEngine(rand.NewSource(42)).Perm(10)
	b := NewEngine(rand.NewSource(42)).Perm(10)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed, different shuffles: %v vs %v", a, b)
	}
}
