package validator

import (
	"time"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
)

// ===== COURSES =====

type CourseCreateRequest struct {
	Name        string  `json:"course_name" validate:"required,min=1,max=200"`
	Description *string `json:"course_description" validate:"omitempty,max=5000"`
	ZoomLink    *string `json:"zoom_link" validate:"omitempty,url,max=500"`
	ScoreTotal  int     `json:"score_total" validate:"min=0"`
}

type CourseUpdateRequest struct {
	Name        *string `json:"course_name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"course_description" validate:"omitempty,max=5000"`
	ScoreTotal  *int    `json:"score_total" validate:"omitempty,min=0"`
}

// ZoomLinkRequest replaces the course zoom link; an empty link clears it
type ZoomLinkRequest struct {
	ZoomLink string `json:"zoom_link" validate:"omitempty,url,max=500"`
}

type EnrollRequest struct {
	UserID string            `json:"user_id" validate:"required,max=255"`
	Role   models.CourseRole `json:"role" validate:"required,enrollment_role"`
}

// ===== MODULES =====

type ModuleCreateRequest struct {
	CourseID    uint       `json:"course_id" validate:"required"`
	Name        string     `json:"module_name" validate:"required,min=1,max=200"`
	Description *string    `json:"module_description" validate:"omitempty,max=5000"`
	Order       int        `json:"module_order" validate:"min=0"`
	IsPosted    bool       `json:"is_posted"`
	DueDate     *time.Time `json:"due_date"`
	ScoreTotal  int        `json:"score_total" validate:"min=0"`
	YoutubeLink *string    `json:"youtube_link" validate:"omitempty,url,max=500"`
}

type ModuleUpdateRequest struct {
	Name        *string    `json:"module_name" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"module_description" validate:"omitempty,max=5000"`
	Order       *int       `json:"module_order" validate:"omitempty,min=0"`
	IsPosted    *bool      `json:"is_posted"`
	DueDate     *time.Time `json:"due_date"`
	ClearDue    bool       `json:"clear_due_date"`
	ScoreTotal  *int       `json:"score_total" validate:"omitempty,min=0"`
	YoutubeLink *string    `json:"youtube_link" validate:"omitempty,url,max=500"`
}

// ===== QUESTIONS =====

type QuestionCreateRequest struct {
	Text           string              `json:"question_text" validate:"required,min=1,max=5000"`
	Type           models.QuestionType `json:"question_type" validate:"required,question_type"`
	Order          int                 `json:"question_order" validate:"min=0"`
	ScoreTotal     int                 `json:"score_total" validate:"min=0"`
	MCQOptions     []string            `json:"mcq_options" validate:"omitempty,max=26,dive,max=500"`
	CorrectAnswers []string            `json:"correct_answers" validate:"omitempty,dive,max=500"`
}

type QuestionUpdateRequest struct {
	Text           *string              `json:"question_text" validate:"omitempty,min=1,max=5000"`
	Type           *models.QuestionType `json:"question_type" validate:"omitempty,question_type"`
	Order          *int                 `json:"question_order" validate:"omitempty,min=0"`
	ScoreTotal     *int                 `json:"score_total" validate:"omitempty,min=0"`
	MCQOptions     []string             `json:"mcq_options" validate:"omitempty,max=26,dive,max=500"`
	CorrectAnswers []string             `json:"correct_answers" validate:"omitempty,dive,max=500"`
}

// ===== SUBMISSIONS & GRADES =====

// SubmissionCreateRequest carries an optional module_id; the question's module always wins
type SubmissionCreateRequest struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	ModuleID   *uint  `json:"module_id"`
	Response   string `json:"submission_response" validate:"required,max=20000"`
}

type GradeRequest struct {
	Score     *int  `json:"score" validate:"required"`
	Total     *int  `json:"total"`
	IsOverdue *bool `json:"is_overdue"`
}
