package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Note is a rich-text document stored as a raw Quill-style operation log.
// The delta is decoded into a typed form by internal/delta at the point of
// use, never here.
type Note struct {
	ID        uuid.UUID       `json:"id"`
	AuthorID  int             `json:"author_id"`
	Title     string          `json:"title"`
	Variant   string          `json:"variant,omitempty"`
	Delta     json.RawMessage `json:"delta"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
