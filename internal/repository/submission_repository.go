package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/notefold/notefold-backend/internal/model"
)

type SubmissionRepository struct {
	db *pgxpool.Pool
}

func NewSubmissionRepository(db *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	query := `
		SELECT id, test_id, author_id, started_on, completed_on, answers, score
		FROM submissions
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *SubmissionRepository) GetByTestAndStudent(ctx context.Context, testID uuid.UUID, authorID int) (*model.Submission, error) {
	query := `
		SELECT id, test_id, author_id, started_on, completed_on, answers, score
		FROM submissions
		WHERE test_id = $1 AND author_id = $2
	`
	return r.scanOne(r.db.QueryRow(ctx, query, testID, authorID))
}

// Create inserts a submission for the (test, student) pair. The unique
// constraint makes concurrent starts collapse onto one row: when another
// request won the race this returns the existing row instead.
func (r *SubmissionRepository) Create(ctx context.Context, testID uuid.UUID, authorID int) (*model.Submission, error) {
	query := `
		INSERT INTO submissions (test_id, author_id)
		VALUES ($1, $2)
		ON CONFLICT (test_id, author_id) DO NOTHING
		RETURNING id, test_id, author_id, started_on, completed_on, answers, score
	`

	sub, err := r.scanOne(r.db.QueryRow(ctx, query, testID, authorID))
	if err == pgx.ErrNoRows {
		return r.GetByTestAndStudent(ctx, testID, authorID)
	}
	return sub, err
}

func (r *SubmissionRepository) UpdateAnswers(ctx context.Context, id uuid.UUID, answers []model.Answer) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`UPDATE submissions SET answers = $1 WHERE id = $2`,
		raw, id,
	)
	return err
}

func (r *SubmissionRepository) UpdateAnswersAndScore(ctx context.Context, id uuid.UUID, answers []model.Answer, score *float64) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`UPDATE submissions SET answers = $1, score = $2 WHERE id = $3`,
		raw, score, id,
	)
	return err
}

func (r *SubmissionRepository) UpdateScore(ctx context.Context, id uuid.UUID, score float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE submissions SET score = $1 WHERE id = $2 AND completed_on IS NOT NULL`,
		score, id,
	)
	return err
}

func (r *SubmissionRepository) Complete(ctx context.Context, id uuid.UUID, score float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE submissions
		 SET completed_on = NOW(), score = $1
		 WHERE id = $2 AND completed_on IS NULL`,
		score, id,
	)
	return err
}

// Reopen clears the completion marker and score so the student can resume.
// The minted permutations and saved answers are kept.
func (r *SubmissionRepository) Reopen(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE submissions SET completed_on = NULL, score = NULL WHERE id = $1`,
		id,
	)
	return err
}

// ReopenAllByTest reopens every completed submission of a test and reports
// how many rows were affected.
func (r *SubmissionRepository) ReopenAllByTest(ctx context.Context, testID uuid.UUID) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE submissions
		 SET completed_on = NULL, score = NULL
		 WHERE test_id = $1 AND completed_on IS NOT NULL`,
		testID,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *SubmissionRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Submission, error) {
	query := `
		SELECT id, test_id, author_id, started_on, completed_on, answers, score
		FROM submissions
		WHERE test_id = $1
		ORDER BY started_on
	`
	return r.list(ctx, query, testID)
}

func (r *SubmissionRepository) ListCompletedByTest(ctx context.Context, testID uuid.UUID) ([]model.Submission, error) {
	query := `
		SELECT id, test_id, author_id, started_on, completed_on, answers, score
		FROM submissions
		WHERE test_id = $1 AND completed_on IS NOT NULL
		ORDER BY started_on
	`
	return r.list(ctx, query, testID)
}

func (r *SubmissionRepository) list(ctx context.Context, query string, args ...any) ([]model.Submission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []model.Submission
	for rows.Next() {
		sub, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *sub)
	}
	return submissions, rows.Err()
}

func (r *SubmissionRepository) scanOne(row pgx.Row) (*model.Submission, error) {
	var (
		sub model.Submission
		raw []byte
	)

	err := row.Scan(
		&sub.ID,
		&sub.TestID,
		&sub.AuthorID,
		&sub.StartedOn,
		&sub.CompletedOn,
		&raw,
		&sub.Score,
	)
	if err != nil {
		return nil, err
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sub.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}

	return &sub, nil
}
