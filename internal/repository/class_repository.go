package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ClassRepository answers class membership questions. Classes themselves are
// only touched through the membership tables; tests reference them by id.
type ClassRepository struct {
	db *pgxpool.Pool
}

func NewClassRepository(db *pgxpool.Pool) *ClassRepository {
	return &ClassRepository{db: db}
}

// IsTeacher reports whether the user teaches the given class.
func (r *ClassRepository) IsTeacher(ctx context.Context, classID, userID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM class_teachers
			WHERE class_id = $1 AND user_id = $2
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, classID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// IsStudent reports whether the user is enrolled in the given class.
func (r *ClassRepository) IsStudent(ctx context.Context, classID, userID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM class_students
			WHERE class_id = $1 AND user_id = $2
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, classID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}
