package services

import (
	"bytes"
	"context"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
	"github.com/hack4impact-upenn/odaap-f25/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

type CreateCourseRequest = validator.CourseCreateRequest
type UpdateCourseRequest = validator.CourseUpdateRequest
type ZoomLinkRequest = validator.ZoomLinkRequest
type EnrollRequest = validator.EnrollRequest
type CreateModuleRequest = validator.ModuleCreateRequest
type UpdateModuleRequest = validator.ModuleUpdateRequest
type CreateQuestionRequest = validator.QuestionCreateRequest
type UpdateQuestionRequest = validator.QuestionUpdateRequest
type CreateSubmissionRequest = validator.SubmissionCreateRequest
type GradeRequest = validator.GradeRequest

type CourseResponse struct {
	*models.Course
	Role models.CourseRole `json:"role"`
}

type MemberResponse struct {
	UserID string            `json:"user_id"`
	Role   models.CourseRole `json:"role"`
	User   *models.User      `json:"user,omitempty"`
}

type ModuleResponse struct {
	*models.Module
	State     models.AccessState `json:"state"`
	Completed bool               `json:"completed"`
}

// ModuleStatusResponse is the body of GET /modules/:id/is-accessible
type ModuleStatusResponse struct {
	ModuleID   uint               `json:"module_id"`
	Accessible bool               `json:"accessible"`
	Completed  bool               `json:"completed"`
	Posted     bool               `json:"posted"`
	State      models.AccessState `json:"state"`
}

type SubmissionListRequest struct {
	QuestionID *uint
	ModuleID   *uint
	UserID     *string
	Limit      int
	Offset     int
}

type SubmissionListResponse struct {
	Submissions []*models.Submission `json:"submissions"`
	Total       int64                `json:"total"`
}

// RecordGradeInput is a teacher-assigned grade; nil Total defaults to the question's score_total
type RecordGradeInput struct {
	QuestionID uint
	UserID     string
	Score      int
	Total      *int
	Overdue    *bool
	GradedBy   string
}

// GradeResult is the question grade plus both rollups after the write
type GradeResult struct {
	QuestionGrade *models.UserQuestionGrade `json:"question_grade"`
	ModuleGrade   *models.UserModuleGrade   `json:"module_grade"`
	CourseGrade   *models.UserCourseGrade   `json:"course_grade"`
}

type ModuleGradeEntry struct {
	ModuleID   uint   `json:"module_id"`
	ModuleName string `json:"module_name"`
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Graded     bool   `json:"graded"`
}

type CourseGradeResponse struct {
	CourseID uint               `json:"course_id"`
	UserID   string             `json:"user_id"`
	Score    int                `json:"score"`
	Total    int                `json:"total"`
	Graded   bool               `json:"graded"`
	Modules  []ModuleGradeEntry `json:"modules"`
}

// ===== SERVICE INTERFACES =====

type EnrollmentService interface {
	// RoleOf resolves the caller's role in a course; dual membership resolves to teacher
	RoleOf(ctx context.Context, courseID uint, userID string) (models.CourseRole, error)
	RequireTeacher(ctx context.Context, courseID uint, userID string) error
	RequireMember(ctx context.Context, courseID uint, userID string) (models.CourseRole, error)

	Enroll(ctx context.Context, courseID uint, userID string, role models.CourseRole) (*models.Enrollment, error)
	Unenroll(ctx context.Context, courseID uint, userID string) error
	ListCourses(ctx context.Context, userID string) ([]*CourseResponse, error)
	ListMembers(ctx context.Context, courseID uint, role *models.CourseRole) ([]*MemberResponse, error)
}

type ProgressService interface {
	// IsComplete is true iff the module has questions and the user submitted to every one
	IsComplete(ctx context.Context, moduleID uint, userID string) (bool, error)
	CompletionMap(ctx context.Context, moduleIDs []uint, userID string) (map[uint]bool, error)
}

type AccessService interface {
	AccessState(ctx context.Context, moduleID uint, userID string) (models.AccessState, error)
	ModuleStatus(ctx context.Context, moduleID uint, userID string) (*ModuleStatusResponse, error)
	// ModuleStates evaluates every module the caller can list in one pass
	ModuleStates(ctx context.Context, courseID uint, userID string) ([]*ModuleResponse, error)
	// RequireVisible returns FORBIDDEN or LOCKED unless the module is visible to the user
	RequireVisible(ctx context.Context, moduleID uint, userID string) (*models.Module, models.CourseRole, error)
}

type CourseService interface {
	Create(ctx context.Context, req *CreateCourseRequest, creatorID string) (*CourseResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*CourseResponse, error)
	List(ctx context.Context, userID string) ([]*CourseResponse, error)
	Update(ctx context.Context, id uint, req *UpdateCourseRequest, userID string) (*CourseResponse, error)
	UpdateZoomLink(ctx context.Context, id uint, req *ZoomLinkRequest, userID string) (*CourseResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// Membership management, teacher only
	AddMember(ctx context.Context, courseID uint, req *EnrollRequest, actorID string) (*models.Enrollment, error)
	RemoveMember(ctx context.Context, courseID uint, memberID string, actorID string) error
	ListMembers(ctx context.Context, courseID uint, role *models.CourseRole, actorID string) ([]*MemberResponse, error)
}

type ModuleService interface {
	Create(ctx context.Context, req *CreateModuleRequest, userID string) (*models.Module, error)
	Update(ctx context.Context, id uint, req *UpdateModuleRequest, userID string) (*models.Module, error)
	Delete(ctx context.Context, id uint, userID string) error
	// Get fails with LOCKED or FORBIDDEN unless the module is visible to the user
	Get(ctx context.Context, id uint, userID string) (*models.Module, error)
	ListByCourse(ctx context.Context, courseID uint, userID string) ([]*ModuleResponse, error)
	Status(ctx context.Context, id uint, userID string) (*ModuleStatusResponse, error)
}

type QuestionService interface {
	Create(ctx context.Context, moduleID uint, req *CreateQuestionRequest, userID string) (*models.Question, error)
	Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*models.Question, error)
	Delete(ctx context.Context, id uint, userID string) error
	Get(ctx context.Context, id uint, userID string) (*models.Question, error)
	// ListByModule returns the module's questions when the module is visible to the user
	ListByModule(ctx context.Context, moduleID uint, userID string) ([]*models.Question, error)
}

type SubmissionService interface {
	Create(ctx context.Context, req *CreateSubmissionRequest, userID string) (*models.Submission, error)
	List(ctx context.Context, req SubmissionListRequest, userID string) (*SubmissionListResponse, error)
	GetLatest(ctx context.Context, studentID string, questionID uint, userID string) (*models.Submission, error)
}

type GradingService interface {
	RecordGrade(ctx context.Context, in RecordGradeInput) (*GradeResult, error)
	GradeSubmission(ctx context.Context, submissionID uint, req *GradeRequest, graderID string) (*GradeResult, error)
	GetCourseGrade(ctx context.Context, courseID uint, studentID string, userID string) (*CourseGradeResponse, error)

	// RecomputeCourse re-derives every rollup of the course from question grades
	RecomputeCourse(ctx context.Context, courseID uint) error
	// RemoveAndRecompute runs remove and the course rollup recompute as one transaction
	RemoveAndRecompute(ctx context.Context, courseID uint, remove func(txRepo repositories.Repository) error) error
	// RecomputeAll re-derives every rollup and reports how many (course, user) pairs were visited
	RecomputeAll(ctx context.Context) (int, error)
}

type ExportService interface {
	// ExportGradebook renders the course gradebook as an XLSX workbook
	ExportGradebook(ctx context.Context, courseID uint, userID string) (*bytes.Buffer, string, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Enrollment() EnrollmentService
	Progress() ProgressService
	Access() AccessService
	Course() CourseService
	Module() ModuleService
	Question() QuestionService
	Submission() SubmissionService
	Grading() GradingService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
