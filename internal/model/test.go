package model

import (
	"time"

	"github.com/google/uuid"
)

// Test attaches a note to a class so its students can submit answers.
// Submissions always render against the current head of the note; there is
// no per-test snapshot of the note content.
type Test struct {
	ID        uuid.UUID `json:"id"`
	NoteID    uuid.UUID `json:"note_id"`
	ClassID   int       `json:"class_id"`
	AuthorID  int       `json:"author_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
