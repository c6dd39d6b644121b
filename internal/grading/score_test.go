package grading

import (
	"math"
	"testing"

	"github.com/notefold/notefold-backend/internal/model"
)

func intPtr(v int) *int { return &v }

func TestAnswerScore(t *testing.T) {
	perm := []int{2, 0, 1}

	cases := []struct {
		name   string
		answer model.Answer
		want   float64
	}{
		{"no permutation is non-scorable", model.Answer{NoteID: "q", Answer: intPtr(0)}, 0},
		{"abstained earns guessing baseline", model.Answer{NoteID: "q", Permutation: perm}, 0.5},
		{"canonical zero is correct", model.Answer{NoteID: "q", Permutation: perm, Answer: intPtr(0)}, 1},
		{"canonical one is wrong", model.Answer{NoteID: "q", Permutation: perm, Answer: intPtr(1)}, 0},
		{"canonical two is wrong", model.Answer{NoteID: "q", Permutation: perm, Answer: intPtr(2)}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AnswerScore(tc.answer); got != tc.want {
				t.Errorf("AnswerScore = %v, want %v", got, tc.want)
			}
		})
	}
}

// A student picks displayed position 1 under permutation [2,0,1]: the option
// shown there is authored option 0, so after conversion the stored canonical
// answer scores 1. Any other position scores 0.
func TestAnswerScoreThroughConversion(t *testing.T) {
	perm := []int{2, 0, 1}

	for displayed := 0; displayed < len(perm); displayed++ {
		displayed := displayed
		canonical, err := ToOriginalIndex(perm, &displayed)
		if err != nil {
			t.Fatalf("ToOriginalIndex: %v", err)
		}
		got := AnswerScore(model.Answer{NoteID: "q", Permutation: perm, Answer: canonical})
		want := 0.0
		if displayed == 1 {
			want = 1
		}
		if got != want {
			t.Errorf("displayed %d: score = %v, want %v", displayed, got, want)
		}
	}
}

func TestAbstainBaselineShrinksWithOptionCount(t *testing.T) {
	e := testEngine()
	prev := 1.0
	for n := 2; n <= 8; n++ {
		score := AnswerScore(model.Answer{NoteID: "q", Permutation: e.Perm(n)})
		want := 2 / float64(1+n)
		if math.Abs(score-want) > 1e-12 {
			t.Errorf("n=%d: score = %v, want %v", n, score, want)
		}
		if score >= prev {
			t.Errorf("n=%d: baseline %v did not shrink below %v", n, score, prev)
		}
		prev = score
	}
}

func TestTestScoreIsAdditive(t *testing.T) {
	answers := []model.Answer{
		{NoteID: "q1", Permutation: []int{1, 0}, Answer: intPtr(0)},       // 1
		{NoteID: "q2", Permutation: []int{0, 1, 2}},                      // abstain: 0.5
		{NoteID: "q3", Permutation: []int{2, 1, 0}, Answer: intPtr(2)},   // 0
		{NoteID: "q4"},                                                   // non-scorable
	}

	want := AnswerScore(answers[0]) + AnswerScore(answers[1]) + AnswerScore(answers[2]) + AnswerScore(answers[3])
	if got := TestScore(answers); got != want {
		t.Errorf("TestScore = %v, want %v", got, want)
	}

	// Modifying one answer leaves every other contribution untouched.
	before := AnswerScore(answers[1])
	answers[0].Answer = intPtr(1)
	if got := AnswerScore(answers[1]); got != before {
		t.Errorf("sibling contribution changed: %v vs %v", got, before)
	}
	if got := TestScore(answers); got != before+AnswerScore(answers[0])+AnswerScore(answers[2])+AnswerScore(answers[3]) {
		t.Errorf("TestScore = %v after modification", got)
	}
}
