package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

// progressService answers completion questions from questions and submissions only; grades are never read
type progressService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewProgressService(repo repositories.Repository, logger *slog.Logger) ProgressService {
	return &progressService{
		repo:   repo,
		logger: logger,
	}
}

func (s *progressService) IsComplete(ctx context.Context, moduleID uint, userID string) (bool, error) {
	completion, err := s.CompletionMap(ctx, []uint{moduleID}, userID)
	if err != nil {
		return false, err
	}
	return completion[moduleID], nil
}

// CompletionMap reports completion for each module with two grouped queries
func (s *progressService) CompletionMap(ctx context.Context, moduleIDs []uint, userID string) (map[uint]bool, error) {
	completion := make(map[uint]bool, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return completion, nil
	}

	questionCounts, err := s.repo.Question().CountByModules(ctx, nil, moduleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	answeredCounts, err := s.repo.Submission().CountAnsweredByModules(ctx, nil, moduleIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count answered questions: %w", err)
	}

	for _, id := range moduleIDs {
		completion[id] = isComplete(questionCounts[id], answeredCounts[id])
	}
	return completion, nil
}

// isComplete: an empty module is never complete
func isComplete(questions, answered int64) bool {
	return questions > 0 && answered >= questions
}
