package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hack4impact-upenn/odaap-f25/internal/events"
	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
	"github.com/hack4impact-upenn/odaap-f25/internal/validator"
)

type gradingService struct {
	repo       repositories.Repository
	enrollment EnrollmentService
	publisher  events.EventPublisher
	logger     *slog.Logger
	validator  *validator.Validator
	locks      *keyedMutex
}

func NewGradingService(repo repositories.Repository, enrollment EnrollmentService, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) GradingService {
	return &gradingService{
		repo:       repo,
		enrollment: enrollment,
		publisher:  publisher,
		logger:     logger,
		validator:  validator,
		locks:      newKeyedMutex(),
	}
}

// ===== GRADE RECORDING =====

func (s *gradingService) RecordGrade(ctx context.Context, in RecordGradeInput) (*GradeResult, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, in.QuestionID)
	if err != nil {
		return nil, notFoundOr(err, "question", in.QuestionID)
	}
	module, err := s.repo.Module().GetByID(ctx, nil, question.ModuleID)
	if err != nil {
		return nil, notFoundOr(err, "module", question.ModuleID)
	}
	return s.recordGrade(ctx, question, module, in)
}

func (s *gradingService) GradeSubmission(ctx context.Context, submissionID uint, req *GradeRequest, graderID string) (*GradeResult, error) {
	if err := validationError(s.validator.Validate(req)); err != nil {
		return nil, err
	}

	submission, err := s.repo.Submission().GetByID(ctx, nil, submissionID)
	if err != nil {
		return nil, notFoundOr(err, "submission", submissionID)
	}
	question, err := s.repo.Question().GetByID(ctx, nil, submission.QuestionID)
	if err != nil {
		return nil, notFoundOr(err, "question", submission.QuestionID)
	}
	module, err := s.repo.Module().GetByID(ctx, nil, question.ModuleID)
	if err != nil {
		return nil, notFoundOr(err, "module", question.ModuleID)
	}

	if err := s.enrollment.RequireTeacher(ctx, module.CourseID, graderID); err != nil {
		return nil, err
	}

	overdue := module.IsOverdueAt(submission.SubmittedAt)
	if req.IsOverdue != nil {
		overdue = *req.IsOverdue
	}

	return s.recordGrade(ctx, question, module, RecordGradeInput{
		QuestionID: question.ID,
		UserID:     submission.UserID,
		Score:      *req.Score,
		Total:      req.Total,
		Overdue:    &overdue,
		GradedBy:   graderID,
	})
}

func (s *gradingService) recordGrade(ctx context.Context, question *models.Question, module *models.Module, in RecordGradeInput) (*GradeResult, error) {
	if in.UserID == "" {
		return nil, NewInvalidInputError("user_id is required", nil)
	}

	total := question.ScoreTotal
	if in.Total != nil {
		total = *in.Total
	}
	if err := checkScore(in.Score, total); err != nil {
		return nil, err
	}

	overdue := false
	if in.Overdue != nil {
		overdue = *in.Overdue
	}

	var result *GradeResult
	err := s.withUserLock(ctx, module.CourseID, in.UserID, func(txRepo repositories.Repository) error {
		grade := &models.UserQuestionGrade{
			QuestionID: question.ID,
			UserID:     in.UserID,
			Score:      in.Score,
			Total:      total,
			IsOverdue:  overdue,
		}
		if err := txRepo.Grade().UpsertQuestionGrade(ctx, nil, grade); err != nil {
			return err
		}

		moduleGrade, courseGrade, err := recomputeUserRollups(ctx, txRepo, module.CourseID, []uint{module.ID}, in.UserID)
		if err != nil {
			return err
		}

		stored, err := txRepo.Grade().GetQuestionGrade(ctx, nil, question.ID, in.UserID)
		if err != nil {
			return err
		}

		result = &GradeResult{
			QuestionGrade: stored,
			ModuleGrade:   moduleGrade[module.ID],
			CourseGrade:   courseGrade,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Grade recorded",
		"question_id", question.ID,
		"module_id", module.ID,
		"course_id", module.CourseID,
		"user_id", in.UserID,
		"score", in.Score,
		"total", total,
		"graded_by", in.GradedBy)

	s.publishGradeRecorded(ctx, module, in.GradedBy, result)
	return result, nil
}

// withUserLock runs fn in one transaction holding both the in-process and the database lock for (course, user)
func (s *gradingService) withUserLock(ctx context.Context, courseID uint, userID string, fn func(repositories.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := s.locks.Lock(ctx, gradeLockKey(courseID, userID))
	if err != nil {
		return err
	}
	defer unlock()

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Grade().LockUser(ctx, nil, courseID, userID); err != nil {
			return err
		}
		return fn(txRepo)
	})
}

func (s *gradingService) publishGradeRecorded(ctx context.Context, module *models.Module, gradedBy string, result *GradeResult) {
	if s.publisher == nil {
		return
	}

	data := events.GradeRecordedData{
		QuestionID: result.QuestionGrade.QuestionID,
		ModuleID:   module.ID,
		CourseID:   module.CourseID,
		UserID:     result.QuestionGrade.UserID,
		GradedBy:   gradedBy,
		Score:      result.QuestionGrade.Score,
		Total:      result.QuestionGrade.Total,
		IsOverdue:  result.QuestionGrade.IsOverdue,
	}
	if result.ModuleGrade != nil {
		data.ModuleScore = result.ModuleGrade.Score
		data.ModuleTotal = result.ModuleGrade.Total
	}
	if result.CourseGrade != nil {
		data.CourseScore = result.CourseGrade.Score
		data.CourseTotal = result.CourseGrade.Total
	}

	if err := s.publisher.Publish(ctx, events.GradeRecorded, data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish grade event", "error", err, "question_id", data.QuestionID, "user_id", data.UserID)
	}
}

// ===== READS =====

func (s *gradingService) GetCourseGrade(ctx context.Context, courseID uint, studentID string, userID string) (*CourseGradeResponse, error) {
	if _, err := s.repo.Course().GetByID(ctx, nil, courseID); err != nil {
		return nil, notFoundOr(err, "course", courseID)
	}

	role, err := s.enrollment.RequireMember(ctx, courseID, userID)
	if err != nil {
		return nil, err
	}
	if studentID == "" {
		studentID = userID
	}
	if studentID != userID && role != models.CourseRoleTeacher {
		return nil, NewForbiddenError(userID, fmt.Sprintf("grades of %s", studentID), "view")
	}

	response := &CourseGradeResponse{CourseID: courseID, UserID: studentID, Modules: []ModuleGradeEntry{}}

	courseGrade, err := s.repo.Grade().GetCourseGrade(ctx, nil, courseID, studentID)
	switch {
	case err == nil:
		response.Score = courseGrade.Score
		response.Total = courseGrade.Total
		response.Graded = true
	case !repositories.IsNotFoundError(err):
		return nil, fmt.Errorf("failed to get course grade: %w", err)
	}

	modules, err := s.repo.Module().ListByCourse(ctx, nil, courseID, role == models.CourseRoleStudent)
	if err != nil {
		return nil, err
	}
	moduleGrades, err := s.repo.Grade().ListModuleGradesByCourse(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	byModule := make(map[uint]*models.UserModuleGrade)
	for _, g := range moduleGrades {
		if g.UserID == studentID {
			byModule[g.ModuleID] = g
		}
	}

	for _, m := range modules {
		entry := ModuleGradeEntry{ModuleID: m.ID, ModuleName: m.Name}
		if g, ok := byModule[m.ID]; ok {
			entry.Score = g.Score
			entry.Total = g.Total
			entry.Graded = true
		}
		response.Modules = append(response.Modules, entry)
	}
	return response, nil
}

// ===== RECONCILIATION =====

func (s *gradingService) RecomputeCourse(ctx context.Context, courseID uint) error {
	_, err := s.recomputeCourse(ctx, courseID)
	return err
}

func (s *gradingService) recomputeCourse(ctx context.Context, courseID uint) (int, error) {
	users, err := rollupUsers(ctx, s.repo, courseID)
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, nil
	}

	modules, err := s.repo.Module().ListByCourse(ctx, nil, courseID, false)
	if err != nil {
		return 0, err
	}
	ids := moduleIDs(modules)

	for _, userID := range users {
		err := s.withUserLock(ctx, courseID, userID, func(txRepo repositories.Repository) error {
			_, _, err := recomputeUserRollups(ctx, txRepo, courseID, ids, userID)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("failed to recompute grades of %s in course %d: %w", userID, courseID, err)
		}
	}

	s.logger.InfoContext(ctx, "Course grades recomputed", "course_id", courseID, "users", len(users))
	return len(users), nil
}

func (s *gradingService) RecomputeAll(ctx context.Context) (int, error) {
	graded, err := s.repo.Grade().ListGradedPairs(ctx, nil, nil)
	if err != nil {
		return 0, err
	}
	rollups, err := s.repo.Grade().ListRollupPairs(ctx, nil)
	if err != nil {
		return 0, err
	}

	courseIDs := distinctCourses(graded, rollups)
	visited := 0
	for _, courseID := range courseIDs {
		if err := ctx.Err(); err != nil {
			return visited, err
		}
		n, err := s.recomputeCourse(ctx, courseID)
		if err != nil {
			return visited, err
		}
		visited += n
	}
	return visited, nil
}

// RemoveAndRecompute runs remove and re-derives the rollups of every graded user of the course
// in a single transaction, holding each user's grade lock throughout
func (s *gradingService) RemoveAndRecompute(ctx context.Context, courseID uint, remove func(txRepo repositories.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	users, err := rollupUsers(ctx, s.repo, courseID)
	if err != nil {
		return err
	}
	sort.Strings(users)

	// Sorted acquisition keeps concurrent removals in the same course from deadlocking
	for _, userID := range users {
		unlock, err := s.locks.Lock(ctx, gradeLockKey(courseID, userID))
		if err != nil {
			return err
		}
		defer unlock()
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		locked := make(map[string]bool, len(users))
		for _, userID := range users {
			if err := txRepo.Grade().LockUser(ctx, nil, courseID, userID); err != nil {
				return err
			}
			locked[userID] = true
		}

		if err := remove(txRepo); err != nil {
			return err
		}

		// Users graded between the first read and the database locks
		current, err := rollupUsers(ctx, txRepo, courseID)
		if err != nil {
			return err
		}
		for _, userID := range current {
			if locked[userID] {
				continue
			}
			if err := txRepo.Grade().LockUser(ctx, nil, courseID, userID); err != nil {
				return err
			}
			locked[userID] = true
			users = append(users, userID)
		}

		modules, err := txRepo.Module().ListByCourse(ctx, nil, courseID, false)
		if err != nil {
			return err
		}
		ids := moduleIDs(modules)

		for _, userID := range users {
			if _, _, err := recomputeUserRollups(ctx, txRepo, courseID, ids, userID); err != nil {
				return fmt.Errorf("failed to recompute grades of %s in course %d: %w", userID, courseID, err)
			}
		}
		return nil
	})
}

// rollupUsers lists every user with a question grade or a rollup row in the course
func rollupUsers(ctx context.Context, repo repositories.Repository, courseID uint) ([]string, error) {
	pairs, err := repo.Grade().ListGradedPairs(ctx, nil, &courseID)
	if err != nil {
		return nil, err
	}
	courseGrades, err := repo.Grade().ListCourseGrades(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	moduleGrades, err := repo.Grade().ListModuleGradesByCourse(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var users []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			users = append(users, id)
		}
	}
	for _, p := range pairs {
		add(p.UserID)
	}
	for _, g := range courseGrades {
		add(g.UserID)
	}
	for _, g := range moduleGrades {
		add(g.UserID)
	}
	return users, nil
}
