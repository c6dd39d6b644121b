package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/notefold/notefold-backend/internal/grading"
	"github.com/notefold/notefold-backend/internal/model"
	"github.com/notefold/notefold-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ErrNotTestOwner is returned when the caller neither authored the test nor
// teaches its class.
var ErrNotTestOwner = errors.New("caller is not an owner of this test")

// GradingService runs teacher-side bulk operations over a test's
// submissions: retroactive answer fixes, score recalculation and reopening.
type GradingService struct {
	testRepo  *repository.TestRepository
	classRepo *repository.ClassRepository
	subRepo   *repository.SubmissionRepository
	log       zerolog.Logger
}

func NewGradingService(
	testRepo *repository.TestRepository,
	classRepo *repository.ClassRepository,
	subRepo *repository.SubmissionRepository,
	log zerolog.Logger,
) *GradingService {
	return &GradingService{
		testRepo:  testRepo,
		classRepo: classRepo,
		subRepo:   subRepo,
		log:       log.With().Str("component", "grading_service").Logger(),
	}
}

// FixSubmissions rewrites one question's recorded answer across every
// completed submission of the test: submissions whose canonical answer
// equals old get new instead, and their scores are recomputed. Returns how
// many submissions changed.
func (s *GradingService) FixSubmissions(ctx context.Context, testID uuid.UUID, userID int, req *model.FixSubmissionsRequest) (int, error) {
	if _, err := s.authorizeTest(ctx, testID, userID); err != nil {
		return 0, err
	}

	subs, err := s.subRepo.ListCompletedByTest(ctx, testID)
	if err != nil {
		return 0, fmt.Errorf("list submissions: %w", err)
	}

	changed := 0
	for i := range subs {
		sub := &subs[i]
		switch grading.RewriteAnswer(sub.Answers, req.QuestionIndex, req.OldAnswer, req.NewAnswer) {
		case grading.RewriteInvalid:
			// The permutation for this submission cannot express old or new.
			// Skip it rather than failing the rest of the batch.
			s.log.Warn().
				Str("submission_id", sub.ID.String()).
				Int("question_index", req.QuestionIndex).
				Msg("fix skipped: answer outside permutation range")
			continue
		case grading.RewriteUnchanged:
			continue
		}

		score := grading.TestScore(sub.Answers)
		if err := s.subRepo.UpdateAnswersAndScore(ctx, sub.ID, sub.Answers, &score); err != nil {
			return changed, fmt.Errorf("update submission %s: %w", sub.ID, err)
		}
		changed++
	}

	s.log.Info().
		Str("test_id", testID.String()).
		Int("changed", changed).
		Msg("submissions fixed")
	return changed, nil
}

// RecalculateTestScores rescored every completed submission from its stored
// answers, persisting only where the result differs. Returns how many
// submissions changed.
func (s *GradingService) RecalculateTestScores(ctx context.Context, testID uuid.UUID, userID int) (int, error) {
	if _, err := s.authorizeTest(ctx, testID, userID); err != nil {
		return 0, err
	}

	subs, err := s.subRepo.ListCompletedByTest(ctx, testID)
	if err != nil {
		return 0, fmt.Errorf("list submissions: %w", err)
	}

	changed := 0
	for i := range subs {
		sub := &subs[i]
		score := grading.TestScore(sub.Answers)
		if sub.Score != nil && *sub.Score == score {
			continue
		}
		if err := s.subRepo.UpdateScore(ctx, sub.ID, score); err != nil {
			return changed, fmt.Errorf("update score of %s: %w", sub.ID, err)
		}
		changed++
	}

	return changed, nil
}

// ReopenSubmission lets a single student resume a completed submission. Saved
// answers and minted permutations are preserved.
func (s *GradingService) ReopenSubmission(ctx context.Context, testID, submissionID uuid.UUID, userID int) error {
	if _, err := s.authorizeTest(ctx, testID, userID); err != nil {
		return err
	}

	sub, err := s.subRepo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSubmissionNotFound
		}
		return fmt.Errorf("get submission: %w", err)
	}
	if sub.TestID != testID {
		return ErrSubmissionNotFound
	}

	return s.subRepo.Reopen(ctx, submissionID)
}

// ReopenAllSubmissions reopens every completed submission of the test and
// returns how many were affected.
func (s *GradingService) ReopenAllSubmissions(ctx context.Context, testID uuid.UUID, userID int) (int, error) {
	if _, err := s.authorizeTest(ctx, testID, userID); err != nil {
		return 0, err
	}
	return s.subRepo.ReopenAllByTest(ctx, testID)
}

// AuthorizeTestRead checks that the caller may read teacher-level data of
// the test. Same rule as mutations: author or class teacher.
func (s *GradingService) AuthorizeTestRead(ctx context.Context, testID uuid.UUID, userID int) error {
	_, err := s.authorizeTest(ctx, testID, userID)
	return err
}

// authorizeTest loads the test and checks the caller may mutate it. The
// access check always runs before any submission data is touched.
func (s *GradingService) authorizeTest(ctx context.Context, testID uuid.UUID, userID int) (*model.Test, error) {
	return authorizeTestAccess(ctx, s.testRepo, s.classRepo, testID, userID)
}

func authorizeTestAccess(
	ctx context.Context,
	testRepo *repository.TestRepository,
	classRepo *repository.ClassRepository,
	testID uuid.UUID,
	userID int,
) (*model.Test, error) {
	test, err := testRepo.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	if test.AuthorID == userID {
		return test, nil
	}

	teaches, err := classRepo.IsTeacher(ctx, test.ClassID, userID)
	if err != nil {
		return nil, fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return nil, ErrNotTestOwner
	}
	return test, nil
}
