package models

import "time"

// Submission is append-only; a learner may resubmit without limit.
// ModuleID always mirrors the question's module at write time.
type Submission struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	UserID      string       `json:"user_id" gorm:"not null;size:255;index:idx_submission_user_question"`
	QuestionID  uint         `json:"question_id" gorm:"not null;index:idx_submission_user_question"`
	ModuleID    uint         `json:"module_id" gorm:"not null;index"`
	Type        QuestionType `json:"submission_type" gorm:"column:submission_type;not null;size:32"`
	Response    string       `json:"submission_response" gorm:"column:submission_response;type:text"`
	SubmittedAt time.Time    `json:"time_submitted" gorm:"column:time_submitted;not null;index"`

	CreatedAt time.Time `json:"created_at"`
}

func (Submission) TableName() string {
	return "submissions"
}
