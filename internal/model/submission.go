package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is one question's state inside a submission. Permutation, once
// minted for a (submission, note) pair, never changes for the lifetime of
// that submission. Answer holds the canonical (authored-order) index of the
// selected option, or nil while the question is unanswered.
type Answer struct {
	NoteID      string `json:"note_id"`
	Permutation []int  `json:"permutation,omitempty"`
	Answer      *int   `json:"answer"`
}

// Submission represents one student's attempt at a test.
type Submission struct {
	ID          uuid.UUID  `json:"id"`
	TestID      uuid.UUID  `json:"test_id"`
	AuthorID    int        `json:"author_id"`
	StartedOn   time.Time  `json:"started_on"`
	CompletedOn *time.Time `json:"completed_on,omitempty"`
	Answers     []Answer   `json:"answers"`
	Score       *float64   `json:"score,omitempty"`
}

// DisplayedAnswer is the read-side projection of an Answer: the index is
// re-expressed in the option order the student actually saw, so API
// consumers never observe raw canonical indices.
type DisplayedAnswer struct {
	NoteID      string `json:"note_id"`
	OptionCount int    `json:"option_count"`
	Answer      *int   `json:"answer"`
}

// SaveAnswerRequest is the payload for answering a single choice question.
// Answer carries the displayed index the student selected; nil clears the
// selection.
type SaveAnswerRequest struct {
	NoteID string `json:"note_id" binding:"required,uuid"`
	Answer *int   `json:"answer" binding:"omitempty,min=0"`
}

// FixSubmissionsRequest is the payload for retroactively correcting an
// authoring mistake across all completed submissions of a test.
type FixSubmissionsRequest struct {
	QuestionIndex int  `json:"question_index" binding:"min=0"`
	OldAnswer     *int `json:"old_answer" binding:"omitempty,min=0"`
	NewAnswer     *int `json:"new_answer" binding:"omitempty,min=0"`
}
