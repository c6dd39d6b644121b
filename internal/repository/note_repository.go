package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/notefold/notefold-backend/internal/model"
)

type NoteRepository struct {
	db *pgxpool.Pool
}

func NewNoteRepository(db *pgxpool.Pool) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	query := `
		SELECT id, author_id, title, COALESCE(variant, ''), delta, created_at, updated_at
		FROM notes
		WHERE id = $1
	`

	var note model.Note
	err := r.db.QueryRow(ctx, query, id).Scan(
		&note.ID,
		&note.AuthorID,
		&note.Title,
		&note.Variant,
		&note.Delta,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &note, nil
}
