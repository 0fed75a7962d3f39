package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

// accessService gates module content. Module rows are always read from the database, never the cache.
type accessService struct {
	repo       repositories.Repository
	enrollment EnrollmentService
	progress   ProgressService
	logger     *slog.Logger
}

func NewAccessService(repo repositories.Repository, enrollment EnrollmentService, progress ProgressService, logger *slog.Logger) AccessService {
	return &accessService{
		repo:       repo,
		enrollment: enrollment,
		progress:   progress,
		logger:     logger,
	}
}

func (s *accessService) AccessState(ctx context.Context, moduleID uint, userID string) (models.AccessState, error) {
	module, err := s.repo.Module().GetByID(ctx, nil, moduleID)
	if err != nil {
		return "", notFoundOr(err, "module", moduleID)
	}
	_, state, err := s.evaluate(ctx, module, userID)
	return state, err
}

func (s *accessService) evaluate(ctx context.Context, module *models.Module, userID string) (models.CourseRole, models.AccessState, error) {
	role, err := s.enrollment.RoleOf(ctx, module.CourseID, userID)
	if err != nil {
		return role, "", err
	}

	switch role {
	case models.CourseRoleNone:
		return role, models.AccessForbidden, nil
	case models.CourseRoleTeacher:
		return role, models.AccessVisible, nil
	}

	if !module.IsPosted {
		return role, models.AccessLocked, nil
	}

	prior, err := s.repo.Module().ListPostedBefore(ctx, nil, module.CourseID, module.Order)
	if err != nil {
		return role, "", err
	}
	completion, err := s.progress.CompletionMap(ctx, moduleIDs(prior), userID)
	if err != nil {
		return role, "", err
	}
	return role, studentGate(module, prior, completion), nil
}

func (s *accessService) ModuleStatus(ctx context.Context, moduleID uint, userID string) (*ModuleStatusResponse, error) {
	module, err := s.repo.Module().GetByID(ctx, nil, moduleID)
	if err != nil {
		return nil, notFoundOr(err, "module", moduleID)
	}

	_, state, err := s.evaluate(ctx, module, userID)
	if err != nil {
		return nil, err
	}
	if state == models.AccessForbidden {
		return nil, NewForbiddenError(userID, fmt.Sprintf("module %d", moduleID), "view")
	}

	completed, err := s.progress.IsComplete(ctx, moduleID, userID)
	if err != nil {
		return nil, err
	}

	return &ModuleStatusResponse{
		ModuleID:   module.ID,
		Accessible: state == models.AccessVisible,
		Completed:  completed,
		Posted:     module.IsPosted,
		State:      state,
	}, nil
}

// ModuleStates lists the course's modules in (order, id) order with the caller's gate state.
// Students only see posted modules.
func (s *accessService) ModuleStates(ctx context.Context, courseID uint, userID string) ([]*ModuleResponse, error) {
	if _, err := s.repo.Course().GetByID(ctx, nil, courseID); err != nil {
		return nil, notFoundOr(err, "course", courseID)
	}

	role, err := s.enrollment.RequireMember(ctx, courseID, userID)
	if err != nil {
		return nil, err
	}

	modules, err := s.repo.Module().ListByCourse(ctx, nil, courseID, role == models.CourseRoleStudent)
	if err != nil {
		return nil, err
	}
	completion, err := s.progress.CompletionMap(ctx, moduleIDs(modules), userID)
	if err != nil {
		return nil, err
	}

	responses := make([]*ModuleResponse, 0, len(modules))
	for _, m := range modules {
		state := models.AccessVisible
		if role == models.CourseRoleStudent {
			state = studentGate(m, modules, completion)
		}
		responses = append(responses, &ModuleResponse{
			Module:    m,
			State:     state,
			Completed: completion[m.ID],
		})
	}
	return responses, nil
}

func (s *accessService) RequireVisible(ctx context.Context, moduleID uint, userID string) (*models.Module, models.CourseRole, error) {
	module, err := s.repo.Module().GetByID(ctx, nil, moduleID)
	if err != nil {
		return nil, models.CourseRoleNone, notFoundOr(err, "module", moduleID)
	}

	role, state, err := s.evaluate(ctx, module, userID)
	if err != nil {
		return nil, role, err
	}

	switch state {
	case models.AccessForbidden:
		return nil, role, NewForbiddenError(userID, fmt.Sprintf("module %d", moduleID), "view")
	case models.AccessLocked:
		return nil, role, NewLockedError(moduleID)
	}
	return module, role, nil
}

// studentGate locks a module that is unposted, or that follows (strictly smaller order)
// any posted module of the same course the student has not completed.
func studentGate(module *models.Module, courseModules []*models.Module, completion map[uint]bool) models.AccessState {
	if !module.IsPosted {
		return models.AccessLocked
	}
	for _, m := range courseModules {
		if m.CourseID != module.CourseID || !m.IsPosted || m.Order >= module.Order {
			continue
		}
		if !completion[m.ID] {
			return models.AccessLocked
		}
	}
	return models.AccessVisible
}

func moduleIDs(modules []*models.Module) []uint {
	ids := make([]uint, len(modules))
	for i, m := range modules {
		ids[i] = m.ID
	}
	return ids
}
