package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
	"github.com/hack4impact-upenn/odaap-f25/internal/validator"
)

type courseService struct {
	repo       repositories.Repository
	enrollment EnrollmentService
	logger     *slog.Logger
	validator  *validator.Validator
}

func NewCourseService(repo repositories.Repository, enrollment EnrollmentService, logger *slog.Logger, validator *validator.Validator) CourseService {
	return &courseService{
		repo:       repo,
		enrollment: enrollment,
		logger:     logger,
		validator:  validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

// Create stores the course and enrolls the creator as its teacher in one transaction
func (s *courseService) Create(ctx context.Context, req *CreateCourseRequest, creatorID string) (*CourseResponse, error) {
	if err := validationError(s.validator.Validate(req)); err != nil {
		return nil, err
	}

	course := &models.Course{
		Name:        req.Name,
		Description: req.Description,
		ZoomLink:    req.ZoomLink,
		ScoreTotal:  req.ScoreTotal,
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Course().Create(ctx, nil, course); err != nil {
			return err
		}
		return txRepo.Enrollment().Create(ctx, nil, &models.Enrollment{
			CourseID: course.ID,
			UserID:   creatorID,
			Role:     models.CourseRoleTeacher,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	s.logger.InfoContext(ctx, "Course created", "course_id", course.ID, "creator_id", creatorID)
	return &CourseResponse{Course: course, Role: models.CourseRoleTeacher}, nil
}

func (s *courseService) GetByID(ctx context.Context, id uint, userID string) (*CourseResponse, error) {
	course, err := s.repo.Course().GetByID(ctx, nil, id)
	if err != nil {
		return nil, notFoundOr(err, "course", id)
	}

	role, err := s.enrollment.RequireMember(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return &CourseResponse{Course: course, Role: role}, nil
}

func (s *courseService) List(ctx context.Context, userID string) ([]*CourseResponse, error) {
	return s.enrollment.ListCourses(ctx, userID)
}

func (s *courseService) Update(ctx context.Context, id uint, req *UpdateCourseRequest, userID string) (*CourseResponse, error) {
	if err := validationError(s.validator.Validate(req)); err != nil {
		return nil, err
	}

	course, err := s.loadForTeacher(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		course.Name = *req.Name
	}
	if req.Description != nil {
		course.Description = req.Description
	}
	if req.ScoreTotal != nil {
		course.ScoreTotal = *req.ScoreTotal
	}

	if err := s.repo.Course().Update(ctx, nil, course); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Course updated", "course_id", id, "user_id", userID)
	return &CourseResponse{Course: course, Role: models.CourseRoleTeacher}, nil
}

func (s *courseService) UpdateZoomLink(ctx context.Context, id uint, req *ZoomLinkRequest, userID string) (*CourseResponse, error) {
	if err := validationError(s.validator.Validate(req)); err != nil {
		return nil, err
	}

	course, err := s.loadForTeacher(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.ZoomLink == "" {
		course.ZoomLink = nil
	} else {
		link := req.ZoomLink
		course.ZoomLink = &link
	}

	if err := s.repo.Course().Update(ctx, nil, course); err != nil {
		return nil, err
	}
	return &CourseResponse{Course: course, Role: models.CourseRoleTeacher}, nil
}

func (s *courseService) Delete(ctx context.Context, id uint, userID string) error {
	if _, err := s.loadForTeacher(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.Course().Delete(ctx, nil, id); err != nil {
		return notFoundOr(err, "course", id)
	}

	s.logger.InfoContext(ctx, "Course deleted", "course_id", id, "user_id", userID)
	return nil
}

// ===== MEMBERSHIP =====

func (s *courseService) AddMember(ctx context.Context, courseID uint, req *EnrollRequest, actorID string) (*models.Enrollment, error) {
	if err := validationError(s.validator.Validate(req)); err != nil {
		return nil, err
	}
	if _, err := s.loadForTeacher(ctx, courseID, actorID); err != nil {
		return nil, err
	}
	return s.enrollment.Enroll(ctx, courseID, req.UserID, req.Role)
}

func (s *courseService) RemoveMember(ctx context.Context, courseID uint, memberID string, actorID string) error {
	if _, err := s.loadForTeacher(ctx, courseID, actorID); err != nil {
		return err
	}
	return s.enrollment.Unenroll(ctx, courseID, memberID)
}

func (s *courseService) ListMembers(ctx context.Context, courseID uint, role *models.CourseRole, actorID string) ([]*MemberResponse, error) {
	if role != nil && !role.IsValid() {
		return nil, NewInvalidInputError("role must be student or teacher", map[string]interface{}{"role": *role})
	}
	if _, err := s.loadForTeacher(ctx, courseID, actorID); err != nil {
		return nil, err
	}
	return s.enrollment.ListMembers(ctx, courseID, role)
}

// loadForTeacher returns NOT_FOUND for a missing course and FORBIDDEN for non-teachers
func (s *courseService) loadForTeacher(ctx context.Context, id uint, userID string) (*models.Course, error) {
	course, err := s.repo.Course().GetByID(ctx, nil, id)
	if err != nil {
		return nil, notFoundOr(err, "course", id)
	}
	if err := s.enrollment.RequireTeacher(ctx, id, userID); err != nil {
		return nil, err
	}
	return course, nil
}
