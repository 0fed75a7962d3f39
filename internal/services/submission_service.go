package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hack4impact-upenn/odaap-f25/internal/events"
	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
	"github.com/hack4impact-upenn/odaap-f25/internal/validator"
)

const (
	defaultSubmissionLimit = 50
	maxSubmissionLimit     = 200
)

type submissionService struct {
	repo       repositories.Repository
	enrollment EnrollmentService
	access     AccessService
	publisher  events.EventPublisher
	logger     *slog.Logger
	validator  *validator.Validator
	now        func() time.Time
}

func NewSubmissionService(
	repo repositories.Repository,
	enrollment EnrollmentService,
	access AccessService,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
) SubmissionService {
	return &submissionService{
		repo:       repo,
		enrollment: enrollment,
		access:     access,
		publisher:  publisher,
		logger:     logger,
		validator:  validator,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create records an answer. The stored module and type always come from the question.
func (s *submissionService) Create(ctx context.Context, req *CreateSubmissionRequest, userID string) (*models.Submission, error) {
	if err := validationError(s.validator.Validate(req)); err != nil {
		return nil, err
	}

	question, err := s.repo.Question().GetByID(ctx, nil, req.QuestionID)
	if err != nil {
		return nil, notFoundOr(err, "question", req.QuestionID)
	}

	if req.ModuleID != nil && *req.ModuleID != question.ModuleID {
		s.logger.WarnContext(ctx, "Submission module does not match question module",
			"kind", KindInconsistentState,
			"question_id", question.ID,
			"client_module_id", *req.ModuleID,
			"module_id", question.ModuleID,
			"user_id", userID)
	}

	module, _, err := s.access.RequireVisible(ctx, question.ModuleID, userID)
	if err != nil {
		return nil, err
	}

	if question.Type == models.MultipleChoice && !slices.Contains(question.Options(), req.Response) {
		return nil, NewInvalidInputError("response must be one of the question's options", map[string]interface{}{
			"question_id": question.ID,
			"response":    req.Response,
		})
	}

	submission := &models.Submission{
		UserID:      userID,
		QuestionID:  question.ID,
		ModuleID:    question.ModuleID,
		Type:        question.Type,
		Response:    req.Response,
		SubmittedAt: s.now(),
	}
	if err := s.repo.Submission().Create(ctx, nil, submission); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Submission created",
		"submission_id", submission.ID,
		"question_id", question.ID,
		"module_id", module.ID,
		"user_id", userID)

	s.publishCreated(ctx, module, submission)
	return submission, nil
}

// List applies the caller's visibility: students see their own rows, teachers see the course
func (s *submissionService) List(ctx context.Context, req SubmissionListRequest, userID string) (*SubmissionListResponse, error) {
	filters := repositories.SubmissionFilters{
		QuestionID: req.QuestionID,
		ModuleID:   req.ModuleID,
		UserID:     req.UserID,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	if filters.Limit <= 0 {
		filters.Limit = defaultSubmissionLimit
	}
	if filters.Limit > maxSubmissionLimit {
		filters.Limit = maxSubmissionLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	courseID, scoped, err := s.courseOf(ctx, req)
	if err != nil {
		return nil, err
	}

	role := models.CourseRoleStudent
	if scoped {
		if role, err = s.enrollment.RequireMember(ctx, courseID, userID); err != nil {
			return nil, err
		}
	}

	if role != models.CourseRoleTeacher {
		if req.UserID != nil && *req.UserID != userID {
			return nil, NewForbiddenError(userID, fmt.Sprintf("submissions of %s", *req.UserID), "view")
		}
		self := userID
		filters.UserID = &self
	}

	submissions, total, err := s.repo.Submission().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return &SubmissionListResponse{Submissions: submissions, Total: total}, nil
}

func (s *submissionService) GetLatest(ctx context.Context, studentID string, questionID uint, userID string) (*models.Submission, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, questionID)
	if err != nil {
		return nil, notFoundOr(err, "question", questionID)
	}
	module, err := s.repo.Module().GetByID(ctx, nil, question.ModuleID)
	if err != nil {
		return nil, notFoundOr(err, "module", question.ModuleID)
	}

	if studentID == "" {
		studentID = userID
	}
	if studentID != userID {
		if err := s.enrollment.RequireTeacher(ctx, module.CourseID, userID); err != nil {
			return nil, err
		}
	} else if _, err := s.enrollment.RequireMember(ctx, module.CourseID, userID); err != nil {
		return nil, err
	}

	submission, err := s.repo.Submission().GetLatest(ctx, nil, studentID, questionID)
	if err != nil {
		return nil, notFoundOr(err, "submission", questionID)
	}
	return submission, nil
}

// courseOf resolves the course a filtered listing is scoped to; scoped is false without filters
func (s *submissionService) courseOf(ctx context.Context, req SubmissionListRequest) (uint, bool, error) {
	moduleID := req.ModuleID
	if req.QuestionID != nil {
		question, err := s.repo.Question().GetByID(ctx, nil, *req.QuestionID)
		if err != nil {
			return 0, false, notFoundOr(err, "question", *req.QuestionID)
		}
		moduleID = &question.ModuleID
	}
	if moduleID == nil {
		return 0, false, nil
	}

	module, err := s.repo.Module().GetByID(ctx, nil, *moduleID)
	if err != nil {
		return 0, false, notFoundOr(err, "module", *moduleID)
	}
	return module.CourseID, true, nil
}

func (s *submissionService) publishCreated(ctx context.Context, module *models.Module, submission *models.Submission) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.SubmissionCreated, events.SubmissionCreatedData{
		SubmissionID: submission.ID,
		QuestionID:   submission.QuestionID,
		ModuleID:     submission.ModuleID,
		CourseID:     module.CourseID,
		UserID:       submission.UserID,
		SubmittedAt:  submission.SubmittedAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish submission event", "error", err, "submission_id", submission.ID)
	}
}
