package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
	"github.com/hack4impact-upenn/odaap-f25/internal/validator"
)

type questionService struct {
	repo       repositories.Repository
	enrollment EnrollmentService
	access     AccessService
	grading    GradingService
	logger     *slog.Logger
	validator  *validator.Validator
}

func NewQuestionService(
	repo repositories.Repository,
	enrollment EnrollmentService,
	access AccessService,
	grading GradingService,
	logger *slog.Logger,
	validator *validator.Validator,
) QuestionService {
	return &questionService{
		repo:       repo,
		enrollment: enrollment,
		access:     access,
		grading:    grading,
		logger:     logger,
		validator:  validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *questionService) Create(ctx context.Context, moduleID uint, req *CreateQuestionRequest, userID string) (*models.Question, error) {
	if err := validationError(s.validator.Validate(req)); err != nil {
		return nil, err
	}
	if err := validationError(s.validator.ValidateQuestionContent(req.Type, req.MCQOptions, req.CorrectAnswers)); err != nil {
		return nil, err
	}

	module, err := s.repo.Module().GetByID(ctx, nil, moduleID)
	if err != nil {
		return nil, notFoundOr(err, "module", moduleID)
	}
	if err := s.enrollment.RequireTeacher(ctx, module.CourseID, userID); err != nil {
		return nil, err
	}

	question := &models.Question{
		ModuleID:   moduleID,
		Text:       req.Text,
		Type:       req.Type,
		Order:      req.Order,
		ScoreTotal: req.ScoreTotal,
	}
	if err := setQuestionContent(question, req.MCQOptions, req.CorrectAnswers); err != nil {
		return nil, err
	}

	if err := s.repo.Question().Create(ctx, nil, question); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Question created", "question_id", question.ID, "module_id", moduleID, "type", question.Type)
	return question, nil
}

func (s *questionService) Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*models.Question, error) {
	if err := validationError(s.validator.Validate(req)); err != nil {
		return nil, err
	}

	question, _, err := s.loadForTeacher(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Type != nil {
		question.Type = *req.Type
	}
	if req.Order != nil {
		question.Order = *req.Order
	}
	if req.ScoreTotal != nil {
		question.ScoreTotal = *req.ScoreTotal
	}

	options, answers := question.Options(), question.Answers()
	if req.MCQOptions != nil {
		options = req.MCQOptions
	}
	if req.CorrectAnswers != nil {
		answers = req.CorrectAnswers
	}
	// Switching away from multiple choice drops stored options unless new ones were sent
	if question.Type != models.MultipleChoice && req.MCQOptions == nil {
		options, answers = nil, nil
	}

	if err := validationError(s.validator.ValidateQuestionContent(question.Type, options, answers)); err != nil {
		return nil, err
	}
	if err := setQuestionContent(question, options, answers); err != nil {
		return nil, err
	}

	if err := s.repo.Question().Update(ctx, nil, question); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Question updated", "question_id", id, "user_id", userID)
	return question, nil
}

// Delete removes the question with its submissions and grades and re-derives the course rollups in the same transaction
func (s *questionService) Delete(ctx context.Context, id uint, userID string) error {
	_, module, err := s.loadForTeacher(ctx, id, userID)
	if err != nil {
		return err
	}

	err = s.grading.RemoveAndRecompute(ctx, module.CourseID, func(txRepo repositories.Repository) error {
		return txRepo.Question().Delete(ctx, nil, id)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return NewNotFoundError("question", id)
		}
		return fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.InfoContext(ctx, "Question deleted", "question_id", id, "module_id", module.ID, "user_id", userID)
	return nil
}

// Get returns one question of a visible module, without correct answers for students
func (s *questionService) Get(ctx context.Context, id uint, userID string) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		return nil, notFoundOr(err, "question", id)
	}

	_, role, err := s.access.RequireVisible(ctx, question.ModuleID, userID)
	if err != nil {
		return nil, err
	}
	if role != models.CourseRoleTeacher {
		question.CorrectAnswers = nil
	}
	return question, nil
}

// ListByModule hides correct answers from students
func (s *questionService) ListByModule(ctx context.Context, moduleID uint, userID string) ([]*models.Question, error) {
	_, role, err := s.access.RequireVisible(ctx, moduleID, userID)
	if err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().ListByModule(ctx, nil, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	if role == models.CourseRoleTeacher {
		return questions, nil
	}

	redacted := make([]*models.Question, len(questions))
	for i, q := range questions {
		clone := *q
		clone.CorrectAnswers = nil
		redacted[i] = &clone
	}
	return redacted, nil
}

// ===== HELPERS =====

func (s *questionService) loadForTeacher(ctx context.Context, id uint, userID string) (*models.Question, *models.Module, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		return nil, nil, notFoundOr(err, "question", id)
	}
	module, err := s.repo.Module().GetByID(ctx, nil, question.ModuleID)
	if err != nil {
		return nil, nil, notFoundOr(err, "module", question.ModuleID)
	}
	if err := s.enrollment.RequireTeacher(ctx, module.CourseID, userID); err != nil {
		return nil, nil, err
	}
	return question, module, nil
}

func setQuestionContent(q *models.Question, options, answers []string) error {
	if len(options) == 0 {
		q.MCQOptions, q.CorrectAnswers = nil, nil
		return nil
	}
	if err := q.SetOptions(options); err != nil {
		return fmt.Errorf("failed to encode mcq_options: %w", err)
	}
	if answers == nil {
		answers = []string{}
	}
	if err := q.SetAnswers(answers); err != nil {
		return fmt.Errorf("failed to encode correct_answers: %w", err)
	}
	return nil
}
