package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/notefold/notefold-backend/internal/grading"
	"github.com/notefold/notefold-backend/internal/repository"
)

// StatsService exposes aggregate statistics over a test's submissions to its
// owning teachers.
type StatsService struct {
	testRepo  *repository.TestRepository
	classRepo *repository.ClassRepository
	subRepo   *repository.SubmissionRepository
}

func NewStatsService(
	testRepo *repository.TestRepository,
	classRepo *repository.ClassRepository,
	subRepo *repository.SubmissionRepository,
) *StatsService {
	return &StatsService{
		testRepo:  testRepo,
		classRepo: classRepo,
		subRepo:   subRepo,
	}
}

func (s *StatsService) GetTestStats(ctx context.Context, testID uuid.UUID, userID int) (*grading.TestStats, error) {
	if _, err := authorizeTestAccess(ctx, s.testRepo, s.classRepo, testID, userID); err != nil {
		return nil, err
	}

	subs, err := s.subRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	stats := grading.ComputeTestStats(subs)
	return &stats, nil
}
