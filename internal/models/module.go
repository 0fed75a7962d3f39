package models

import "time"

// Module is an ordered unit of a course. Order is not unique; ties never gate each other.
type Module struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	CourseID    uint       `json:"course_id" gorm:"not null;index:idx_module_course_order"`
	Name        string     `json:"module_name" gorm:"column:module_name;not null;size:200"`
	Description *string    `json:"module_description" gorm:"column:module_description;type:text"`
	Order       int        `json:"module_order" gorm:"column:module_order;not null;default:0;index:idx_module_course_order"`
	IsPosted    bool       `json:"is_posted" gorm:"not null;default:false"`
	DueDate     *time.Time `json:"due_date"`
	ScoreTotal  int        `json:"score_total" gorm:"not null;default:0"`
	YoutubeLink *string    `json:"youtube_link" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Questions []Question        `json:"-" gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
	Grades    []UserModuleGrade `json:"-" gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
}

func (Module) TableName() string {
	return "modules"
}

// IsOverdueAt reports whether a submission made at t is past the module's due date
func (m *Module) IsOverdueAt(t time.Time) bool {
	return m.DueDate != nil && t.After(*m.DueDate)
}
