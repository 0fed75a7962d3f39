package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

type enrollmentService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewEnrollmentService(repo repositories.Repository, logger *slog.Logger) EnrollmentService {
	return &enrollmentService{
		repo:   repo,
		logger: logger,
	}
}

func (s *enrollmentService) RoleOf(ctx context.Context, courseID uint, userID string) (models.CourseRole, error) {
	roles, err := s.repo.Enrollment().Roles(ctx, nil, courseID, userID)
	if err != nil {
		return models.CourseRoleNone, fmt.Errorf("failed to resolve role: %w", err)
	}
	return s.resolveRole(ctx, courseID, userID, roles), nil
}

// resolveRole picks teacher over student and warns when both memberships exist
func (s *enrollmentService) resolveRole(ctx context.Context, courseID uint, userID string, roles []models.CourseRole) models.CourseRole {
	isTeacher := slices.Contains(roles, models.CourseRoleTeacher)
	isStudent := slices.Contains(roles, models.CourseRoleStudent)

	switch {
	case isTeacher && isStudent:
		s.logger.WarnContext(ctx, "inconsistent enrollment",
			"course_id", courseID,
			"user_id", userID,
			"roles", roles)
		return models.CourseRoleTeacher
	case isTeacher:
		return models.CourseRoleTeacher
	case isStudent:
		return models.CourseRoleStudent
	default:
		return models.CourseRoleNone
	}
}

func (s *enrollmentService) RequireTeacher(ctx context.Context, courseID uint, userID string) error {
	role, err := s.RoleOf(ctx, courseID, userID)
	if err != nil {
		return err
	}
	if role != models.CourseRoleTeacher {
		return NewForbiddenError(userID, fmt.Sprintf("course %d", courseID), "manage")
	}
	return nil
}

func (s *enrollmentService) RequireMember(ctx context.Context, courseID uint, userID string) (models.CourseRole, error) {
	role, err := s.RoleOf(ctx, courseID, userID)
	if err != nil {
		return role, err
	}
	if role == models.CourseRoleNone {
		return role, NewForbiddenError(userID, fmt.Sprintf("course %d", courseID), "view")
	}
	return role, nil
}

func (s *enrollmentService) Enroll(ctx context.Context, courseID uint, userID string, role models.CourseRole) (*models.Enrollment, error) {
	if !role.IsValid() {
		return nil, NewInvalidInputError("role must be student or teacher", map[string]interface{}{"role": role})
	}
	if userID == "" {
		return nil, NewInvalidInputError("user_id is required", nil)
	}

	if _, err := s.repo.Course().GetByID(ctx, nil, courseID); err != nil {
		return nil, notFoundOr(err, "course", courseID)
	}

	existing, err := s.repo.Enrollment().Roles(ctx, nil, courseID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if len(existing) > 0 {
		return nil, NewConflictError("user is already enrolled in this course", map[string]interface{}{
			"course_id": courseID,
			"user_id":   userID,
			"roles":     existing,
		})
	}

	enrollment := &models.Enrollment{CourseID: courseID, UserID: userID, Role: role}
	if err := s.repo.Enrollment().Create(ctx, nil, enrollment); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, NewConflictError("user is already enrolled in this course", map[string]interface{}{
				"course_id": courseID,
				"user_id":   userID,
			})
		}
		return nil, fmt.Errorf("failed to enroll user: %w", err)
	}

	s.logger.InfoContext(ctx, "User enrolled", "course_id", courseID, "user_id", userID, "role", role)
	return enrollment, nil
}

func (s *enrollmentService) Unenroll(ctx context.Context, courseID uint, userID string) error {
	removed, err := s.repo.Enrollment().Delete(ctx, nil, courseID, userID)
	if err != nil {
		return fmt.Errorf("failed to unenroll user: %w", err)
	}
	if removed == 0 {
		return NewNotFoundError("enrollment", map[string]interface{}{"course_id": courseID, "user_id": userID})
	}

	s.logger.InfoContext(ctx, "User unenrolled", "course_id", courseID, "user_id", userID, "removed", removed)
	return nil
}

func (s *enrollmentService) ListCourses(ctx context.Context, userID string) ([]*CourseResponse, error) {
	enrollments, err := s.repo.Enrollment().ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	rolesByCourse := make(map[uint][]models.CourseRole)
	var courseIDs []uint
	for _, e := range enrollments {
		if _, seen := rolesByCourse[e.CourseID]; !seen {
			courseIDs = append(courseIDs, e.CourseID)
		}
		rolesByCourse[e.CourseID] = append(rolesByCourse[e.CourseID], e.Role)
	}

	courses, err := s.repo.Course().GetByIDs(ctx, nil, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load courses: %w", err)
	}

	responses := make([]*CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, &CourseResponse{
			Course: course,
			Role:   s.resolveRole(ctx, course.ID, userID, rolesByCourse[course.ID]),
		})
	}
	return responses, nil
}

func (s *enrollmentService) ListMembers(ctx context.Context, courseID uint, role *models.CourseRole) ([]*MemberResponse, error) {
	enrollments, err := s.repo.Enrollment().ListByCourse(ctx, nil, courseID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	userIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		userIDs = append(userIDs, e.UserID)
	}
	profiles := s.lookupUsers(ctx, userIDs)

	members := make([]*MemberResponse, 0, len(enrollments))
	for _, e := range enrollments {
		members = append(members, &MemberResponse{
			UserID: e.UserID,
			Role:   e.Role,
			User:   profiles[e.UserID],
		})
	}
	return members, nil
}

// lookupUsers fetches identity-provider profiles; a failed lookup leaves the profile out
func (s *enrollmentService) lookupUsers(ctx context.Context, userIDs []string) map[string]*models.User {
	profiles := make(map[string]*models.User, len(userIDs))
	users := s.repo.User()
	if users == nil || len(userIDs) == 0 {
		return profiles
	}

	found, err := users.GetByIDs(ctx, userIDs)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load user profiles", "error", err, "count", len(userIDs))
		return profiles
	}
	for _, u := range found {
		profiles[u.ID] = u
	}
	return profiles
}
