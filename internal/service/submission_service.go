package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/notefold/notefold-backend/internal/config"
	"github.com/notefold/notefold-backend/internal/document"
	"github.com/notefold/notefold-backend/internal/grading"
	"github.com/notefold/notefold-backend/internal/model"
	"github.com/notefold/notefold-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrTestNotFound        = errors.New("test not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrSubmissionCompleted = errors.New("submission already completed")
	ErrQuestionNotRendered = errors.New("question has not been rendered for this submission")
	ErrNotClassStudent     = errors.New("student is not enrolled in the test's class")
)

const submissionAnswersTTL = 24 * time.Hour

// Paper is a submission's view of its test: the document tree with option
// orders applied, plus the student's answers re-expressed in displayed
// indices.
type Paper struct {
	SubmissionID uuid.UUID               `json:"submission_id"`
	TestID       uuid.UUID               `json:"test_id"`
	Title        string                  `json:"title"`
	StartedOn    time.Time               `json:"started_on"`
	CompletedOn  *time.Time              `json:"completed_on,omitempty"`
	Score        *float64                `json:"score,omitempty"`
	Document     *document.Document      `json:"document"`
	Answers      []model.DisplayedAnswer `json:"answers"`
}

// PersistAnswersPayload is the queue message consumed by the answers worker.
type PersistAnswersPayload struct {
	SubmissionID string         `json:"submission_id"`
	Answers      []model.Answer `json:"answers"`
}

// PersistCompletionPayload is the queue message consumed by the completion
// worker. The monitor channel receives the same payload.
type PersistCompletionPayload struct {
	SubmissionID string    `json:"submission_id"`
	TestID       string    `json:"test_id"`
	AuthorID     int       `json:"author_id"`
	Score        float64   `json:"score"`
	CompletedOn  time.Time `json:"completed_on"`
}

// SubmissionService drives the student-facing submission lifecycle: start,
// render, answer, complete.
type SubmissionService struct {
	subRepo   *repository.SubmissionRepository
	testRepo  *repository.TestRepository
	classRepo *repository.ClassRepository
	noteSvc   *NoteService
	engine    *grading.Engine
	rdb       *redis.Client
	log       zerolog.Logger
}

func NewSubmissionService(
	subRepo *repository.SubmissionRepository,
	testRepo *repository.TestRepository,
	classRepo *repository.ClassRepository,
	noteSvc *NoteService,
	engine *grading.Engine,
	rdb *redis.Client,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		subRepo:   subRepo,
		testRepo:  testRepo,
		classRepo: classRepo,
		noteSvc:   noteSvc,
		engine:    engine,
		rdb:       rdb,
		log:       log.With().Str("component", "submission_service").Logger(),
	}
}

// Start opens a submission for the student on the given test. Only students
// of the test's class may start; starting twice returns the existing
// submission, including across concurrent requests.
func (s *SubmissionService) Start(ctx context.Context, testID uuid.UUID, studentID int) (*model.Submission, error) {
	test, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.classRepo.IsStudent(ctx, test.ClassID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotClassStudent
	}

	sub, err := s.subRepo.Create(ctx, testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	return sub, nil
}

// GetPaper renders the test's note against its current head, applies the
// submission's option permutations, and mints permutations for any choice
// list seen for the first time. Newly minted permutations are persisted
// asynchronously through the answers queue.
func (s *SubmissionService) GetPaper(ctx context.Context, testID uuid.UUID, studentID int) (*Paper, error) {
	sub, err := s.getSubmission(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}

	test, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	doc, err := s.noteSvc.BuildDocument(ctx, test.NoteID, true)
	if err != nil {
		return nil, err
	}

	answers := sub.Answers
	minted := s.engine.ApplyPermutations(doc, &answers)
	if len(minted) > 0 {
		s.cacheAnswers(ctx, sub.ID, answers)
		s.enqueueAnswers(ctx, sub.ID, answers)
	}

	displayed := make([]model.DisplayedAnswer, 0, len(answers))
	for _, a := range answers {
		idx, err := grading.ToDisplayedIndex(a.Permutation, a.Answer)
		if err != nil {
			// Stored answer no longer fits its permutation. Surface the
			// question as unanswered rather than failing the whole paper.
			s.log.Warn().
				Str("submission_id", sub.ID.String()).
				Str("note_id", a.NoteID).
				Msg("stored answer out of permutation range")
			idx = nil
		}
		displayed = append(displayed, model.DisplayedAnswer{
			NoteID:      a.NoteID,
			OptionCount: len(a.Permutation),
			Answer:      idx,
		})
	}

	return &Paper{
		SubmissionID: sub.ID,
		TestID:       sub.TestID,
		Title:        test.Title,
		StartedOn:    sub.StartedOn,
		CompletedOn:  sub.CompletedOn,
		Score:        sub.Score,
		Document:     doc,
		Answers:      displayed,
	}, nil
}

// SaveAnswer records the student's selection for one choice question. The
// incoming index is in displayed order; it is converted to the canonical
// index before persisting, so reshuffles can never reinterpret it.
func (s *SubmissionService) SaveAnswer(ctx context.Context, testID uuid.UUID, studentID int, req *model.SaveAnswerRequest) error {
	sub, err := s.getSubmission(ctx, testID, studentID)
	if err != nil {
		return err
	}
	if sub.CompletedOn != nil {
		return ErrSubmissionCompleted
	}

	idx := -1
	for i := range sub.Answers {
		if sub.Answers[i].NoteID == req.NoteID {
			idx = i
			break
		}
	}
	if idx < 0 || len(sub.Answers[idx].Permutation) == 0 {
		return ErrQuestionNotRendered
	}

	canonical, err := grading.ToOriginalIndex(sub.Answers[idx].Permutation, req.Answer)
	if err != nil {
		return err
	}
	sub.Answers[idx].Answer = canonical

	if err := s.subRepo.UpdateAnswers(ctx, sub.ID, sub.Answers); err != nil {
		return fmt.Errorf("update answers: %w", err)
	}
	s.cacheAnswers(ctx, sub.ID, sub.Answers)
	return nil
}

// Complete closes the submission and computes its score. Persistence of the
// completion marker happens asynchronously through the completions queue; a
// completion event is also published to the test's monitor channel.
func (s *SubmissionService) Complete(ctx context.Context, testID uuid.UUID, studentID int) (float64, error) {
	sub, err := s.getSubmission(ctx, testID, studentID)
	if err != nil {
		return 0, err
	}
	if sub.CompletedOn != nil {
		return 0, ErrSubmissionCompleted
	}

	score := grading.TestScore(sub.Answers)

	payload := PersistCompletionPayload{
		SubmissionID: sub.ID.String(),
		TestID:       sub.TestID.String(),
		AuthorID:     sub.AuthorID,
		Score:        score,
		CompletedOn:  time.Now(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal completion payload: %w", err)
	}

	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistCompletionsQueue, raw).Err(); err != nil {
		return 0, fmt.Errorf("enqueue completion: %w", err)
	}

	if err := s.rdb.Publish(ctx, config.CacheKey.TestMonitorChannel(testID.String()), raw).Err(); err != nil {
		s.log.Warn().Err(err).
			Str("test_id", testID.String()).
			Msg("monitor publish failed")
	}

	return score, nil
}

func (s *SubmissionService) getTest(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return test, nil
}

func (s *SubmissionService) getSubmission(ctx context.Context, testID uuid.UUID, studentID int) (*model.Submission, error) {
	sub, err := s.subRepo.GetByTestAndStudent(ctx, testID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}

	// Answers written through the queue may not have reached PostgreSQL yet.
	// The cache holds the freshest copy until the completion worker clears it.
	if cached, err := s.rdb.Get(ctx, config.CacheKey.SubmissionAnswersKey(sub.ID.String())).Result(); err == nil {
		var answers []model.Answer
		if err := json.Unmarshal([]byte(cached), &answers); err == nil {
			sub.Answers = answers
		}
	}

	return sub, nil
}

func (s *SubmissionService) cacheAnswers(ctx context.Context, submissionID uuid.UUID, answers []model.Answer) {
	raw, err := json.Marshal(answers)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal answers for cache")
		return
	}
	key := config.CacheKey.SubmissionAnswersKey(submissionID.String())
	if err := s.rdb.Set(ctx, key, raw, submissionAnswersTTL).Err(); err != nil {
		s.log.Warn().Err(err).
			Str("submission_id", submissionID.String()).
			Msg("answers cache write failed")
	}
}

func (s *SubmissionService) enqueueAnswers(ctx context.Context, submissionID uuid.UUID, answers []model.Answer) {
	payload := PersistAnswersPayload{
		SubmissionID: submissionID.String(),
		Answers:      answers,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal answers payload")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).
			Str("submission_id", submissionID.String()).
			Msg("enqueue answers failed")
	}
}
