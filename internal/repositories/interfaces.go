package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type SubmissionFilters struct {
	UserID     *string `json:"user_id"`
	QuestionID *uint   `json:"question_id"`
	ModuleID   *uint   `json:"module_id"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}

// GradeSum is the SUM(score), SUM(total) over a set of question grades
type GradeSum struct {
	Score  int64 `json:"score"`
	Total  int64 `json:"total"`
	Graded int64 `json:"graded"`
}

// GradedPair identifies a (course, user) that has at least one question grade
type GradedPair struct {
	CourseID uint
	UserID   string
}

// ===== REPOSITORY INTERFACES =====
// Every method accepts an optional transaction; nil uses the repository's own handle.

type CourseRepository interface {
	Create(ctx context.Context, tx *gorm.DB, course *models.Course) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Course, error)
	Update(ctx context.Context, tx *gorm.DB, course *models.Course) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
}

type ModuleRepository interface {
	Create(ctx context.Context, tx *gorm.DB, module *models.Module) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Module, error)
	Update(ctx context.Context, tx *gorm.DB, module *models.Module) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// ListByCourse returns modules ordered by (module_order, id)
	ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint, postedOnly bool) ([]*models.Module, error)
	// ListPostedBefore returns posted modules of the course whose order is strictly smaller
	ListPostedBefore(ctx context.Context, tx *gorm.DB, courseID uint, order int) ([]*models.Module, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// ListByModule returns questions ordered by (question_order, id)
	ListByModule(ctx context.Context, tx *gorm.DB, moduleID uint) ([]*models.Question, error)
	// CountByModules returns the question count of each module; modules without questions are absent
	CountByModules(ctx context.Context, tx *gorm.DB, moduleIDs []uint) (map[uint]int64, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	List(ctx context.Context, tx *gorm.DB, filters SubmissionFilters) ([]*models.Submission, int64, error)

	// GetLatest returns the most recent submission (time_submitted, then id)
	GetLatest(ctx context.Context, tx *gorm.DB, userID string, questionID uint) (*models.Submission, error)
	// CountAnsweredByModules counts, per module, the distinct questions the user has submitted to.
	// Module membership is taken from the question, not the submission row.
	CountAnsweredByModules(ctx context.Context, tx *gorm.DB, moduleIDs []uint, userID string) (map[uint]int64, error)
}

type EnrollmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) error
	Roles(ctx context.Context, tx *gorm.DB, courseID uint, userID string) ([]models.CourseRole, error)
	Delete(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (int64, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Enrollment, error)
	ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint, role *models.CourseRole) ([]*models.Enrollment, error)
}

type GradeRepository interface {
	// LockUser serializes rollup writes for (course, user) until the transaction ends
	LockUser(ctx context.Context, tx *gorm.DB, courseID uint, userID string) error

	UpsertQuestionGrade(ctx context.Context, tx *gorm.DB, grade *models.UserQuestionGrade) error
	UpsertModuleGrade(ctx context.Context, tx *gorm.DB, grade *models.UserModuleGrade) error
	UpsertCourseGrade(ctx context.Context, tx *gorm.DB, grade *models.UserCourseGrade) error
	DeleteModuleGrade(ctx context.Context, tx *gorm.DB, moduleID uint, userID string) error
	DeleteCourseGrade(ctx context.Context, tx *gorm.DB, courseID uint, userID string) error

	GetQuestionGrade(ctx context.Context, tx *gorm.DB, questionID uint, userID string) (*models.UserQuestionGrade, error)
	GetModuleGrade(ctx context.Context, tx *gorm.DB, moduleID uint, userID string) (*models.UserModuleGrade, error)
	GetCourseGrade(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (*models.UserCourseGrade, error)

	SumForModule(ctx context.Context, tx *gorm.DB, moduleID uint, userID string) (GradeSum, error)
	SumForCourse(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (GradeSum, error)

	ListQuestionGrades(ctx context.Context, tx *gorm.DB, questionIDs []uint) ([]*models.UserQuestionGrade, error)
	ListModuleGradesByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]*models.UserModuleGrade, error)
	ListCourseGrades(ctx context.Context, tx *gorm.DB, courseID uint) ([]*models.UserCourseGrade, error)
	// ListGradedPairs lists (course, user) pairs with question grades, optionally for one course
	ListGradedPairs(ctx context.Context, tx *gorm.DB, courseID *uint) ([]GradedPair, error)
	// ListRollupPairs lists (course, user) pairs that currently have a course grade row
	ListRollupPairs(ctx context.Context, tx *gorm.DB) ([]GradedPair, error)
}

// UserRepository is read-only; the identity provider owns user data
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}
