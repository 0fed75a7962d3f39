package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hack4impact-upenn/odaap-f25/internal/events"
	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
	"github.com/hack4impact-upenn/odaap-f25/internal/validator"
)

type moduleService struct {
	repo       repositories.Repository
	enrollment EnrollmentService
	access     AccessService
	grading    GradingService
	publisher  events.EventPublisher
	logger     *slog.Logger
	validator  *validator.Validator
}

func NewModuleService(
	repo repositories.Repository,
	enrollment EnrollmentService,
	access AccessService,
	grading GradingService,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
) ModuleService {
	return &moduleService{
		repo:       repo,
		enrollment: enrollment,
		access:     access,
		grading:    grading,
		publisher:  publisher,
		logger:     logger,
		validator:  validator,
	}
}

func (s *moduleService) Create(ctx context.Context, req *CreateModuleRequest, userID string) (*models.Module, error) {
	if err := validationError(s.validator.Validate(req)); err != nil {
		return nil, err
	}

	if _, err := s.repo.Course().GetByID(ctx, nil, req.CourseID); err != nil {
		return nil, notFoundOr(err, "course", req.CourseID)
	}
	if err := s.enrollment.RequireTeacher(ctx, req.CourseID, userID); err != nil {
		return nil, err
	}

	module := &models.Module{
		CourseID:    req.CourseID,
		Name:        req.Name,
		Description: req.Description,
		Order:       req.Order,
		IsPosted:    req.IsPosted,
		DueDate:     req.DueDate,
		ScoreTotal:  req.ScoreTotal,
		YoutubeLink: req.YoutubeLink,
	}
	if err := s.repo.Module().Create(ctx, nil, module); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Module created", "module_id", module.ID, "course_id", module.CourseID, "posted", module.IsPosted)
	if module.IsPosted {
		s.publishPosted(ctx, module, userID)
	}
	return module, nil
}

func (s *moduleService) Update(ctx context.Context, id uint, req *UpdateModuleRequest, userID string) (*models.Module, error) {
	if err := validationError(s.validator.Validate(req)); err != nil {
		return nil, err
	}

	module, err := s.loadForTeacher(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	wasPosted := module.IsPosted

	if req.Name != nil {
		module.Name = *req.Name
	}
	if req.Description != nil {
		module.Description = req.Description
	}
	if req.Order != nil {
		module.Order = *req.Order
	}
	if req.IsPosted != nil {
		module.IsPosted = *req.IsPosted
	}
	if req.ClearDue {
		module.DueDate = nil
	} else if req.DueDate != nil {
		module.DueDate = req.DueDate
	}
	if req.ScoreTotal != nil {
		module.ScoreTotal = *req.ScoreTotal
	}
	if req.YoutubeLink != nil {
		module.YoutubeLink = req.YoutubeLink
	}

	if err := s.repo.Module().Update(ctx, nil, module); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Module updated", "module_id", id, "user_id", userID, "posted", module.IsPosted)
	if !wasPosted && module.IsPosted {
		s.publishPosted(ctx, module, userID)
	}
	return module, nil
}

// Delete cascades to questions, submissions and grades and re-derives the course rollups in the same transaction
func (s *moduleService) Delete(ctx context.Context, id uint, userID string) error {
	module, err := s.loadForTeacher(ctx, id, userID)
	if err != nil {
		return err
	}

	err = s.grading.RemoveAndRecompute(ctx, module.CourseID, func(txRepo repositories.Repository) error {
		return txRepo.Module().Delete(ctx, nil, id)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return NewNotFoundError("module", id)
		}
		return fmt.Errorf("failed to delete module: %w", err)
	}

	s.logger.InfoContext(ctx, "Module deleted", "module_id", id, "course_id", module.CourseID, "user_id", userID)
	return nil
}

// Get returns a module the user can currently see
func (s *moduleService) Get(ctx context.Context, id uint, userID string) (*models.Module, error) {
	module, _, err := s.access.RequireVisible(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return module, nil
}

func (s *moduleService) ListByCourse(ctx context.Context, courseID uint, userID string) ([]*ModuleResponse, error) {
	return s.access.ModuleStates(ctx, courseID, userID)
}

func (s *moduleService) Status(ctx context.Context, id uint, userID string) (*ModuleStatusResponse, error) {
	return s.access.ModuleStatus(ctx, id, userID)
}

func (s *moduleService) loadForTeacher(ctx context.Context, id uint, userID string) (*models.Module, error) {
	module, err := s.repo.Module().GetByID(ctx, nil, id)
	if err != nil {
		return nil, notFoundOr(err, "module", id)
	}
	if err := s.enrollment.RequireTeacher(ctx, module.CourseID, userID); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *moduleService) publishPosted(ctx context.Context, module *models.Module, userID string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.ModulePosted, events.ModulePostedData{
		ModuleID: module.ID,
		CourseID: module.CourseID,
		Name:     module.Name,
		DueDate:  module.DueDate,
		PostedBy: userID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish module event", "error", err, "module_id", module.ID)
	}
}
