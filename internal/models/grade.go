package models

import "time"

// UserQuestionGrade is the single authoritative grade for (question, user)
type UserQuestionGrade struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;uniqueIndex:idx_question_grade_question_user"`
	UserID     string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_question_grade_question_user;index"`
	Score      int    `json:"score" gorm:"not null"`
	Total      int    `json:"total" gorm:"not null"`
	IsOverdue  bool   `json:"is_overdue" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserQuestionGrade) TableName() string {
	return "user_question_grades"
}

// UserModuleGrade is derived from the user's question grades in the module
type UserModuleGrade struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	ModuleID uint   `json:"module_id" gorm:"not null;uniqueIndex:idx_module_grade_module_user"`
	UserID   string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_module_grade_module_user;index"`
	Score    int    `json:"score" gorm:"not null"`
	Total    int    `json:"total" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserModuleGrade) TableName() string {
	return "user_module_grades"
}

// UserCourseGrade is derived from the user's question grades across the course
type UserCourseGrade struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	CourseID uint   `json:"course_id" gorm:"not null;uniqueIndex:idx_course_grade_course_user"`
	UserID   string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_course_grade_course_user;index"`
	Score    int    `json:"score" gorm:"not null"`
	Total    int    `json:"total" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserCourseGrade) TableName() string {
	return "user_course_grades"
}
