package models

import "time"

// CourseRole is a user's role within one course
type CourseRole string

const (
	CourseRoleStudent CourseRole = "student"
	CourseRoleTeacher CourseRole = "teacher"
	CourseRoleNone    CourseRole = "none"
)

func (r CourseRole) IsValid() bool {
	return r == CourseRoleStudent || r == CourseRoleTeacher
}

type Enrollment struct {
	ID       uint       `json:"id" gorm:"primaryKey"`
	CourseID uint       `json:"course_id" gorm:"not null;uniqueIndex:idx_enrollment_course_user_role"`
	UserID   string     `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_enrollment_course_user_role;index"`
	Role     CourseRole `json:"role" gorm:"not null;size:16;uniqueIndex:idx_enrollment_course_user_role"`

	CreatedAt time.Time `json:"created_at"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
