package models

import "time"

// Course owns its modules and enrollments
type Course struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"course_name" gorm:"column:course_name;not null;size:200"`
	Description *string `json:"course_description" gorm:"column:course_description;type:text"`
	ZoomLink    *string `json:"zoom_link" gorm:"size:500"`
	ScoreTotal  int     `json:"score_total" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Modules     []Module          `json:"-" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
	Enrollments []Enrollment      `json:"-" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
	Grades      []UserCourseGrade `json:"-" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
}

func (Course) TableName() string {
	return "courses"
}
