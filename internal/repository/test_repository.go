package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/notefold/notefold-backend/internal/model"
)

type TestRepository struct {
	db *pgxpool.Pool
}

func NewTestRepository(db *pgxpool.Pool) *TestRepository {
	return &TestRepository{db: db}
}

func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	query := `
		SELECT id, note_id, class_id, author_id, title, created_at
		FROM tests
		WHERE id = $1
	`

	var test model.Test
	err := r.db.QueryRow(ctx, query, id).Scan(
		&test.ID,
		&test.NoteID,
		&test.ClassID,
		&test.AuthorID,
		&test.Title,
		&test.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &test, nil
}
