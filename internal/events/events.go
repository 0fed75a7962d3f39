// Package events publishes learning-activity domain events through watermill.
package events

import (
	"context"
	"time"
)

type EventType string

const (
	SubmissionCreated EventType = "submission.created"
	GradeRecorded     EventType = "grade.recorded"
	ModulePosted      EventType = "module.posted"
)

const (
	EventSource  = "odaap-learning-service"
	EventVersion = "1.0"
)

// Event is the envelope written as the message payload
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// EventPublisher publishes domain events; implementations must be safe for concurrent use
type EventPublisher interface {
	Publish(ctx context.Context, eventType EventType, data interface{}) error
	Close() error
}

// ===== PAYLOADS =====

type SubmissionCreatedData struct {
	SubmissionID uint      `json:"submission_id"`
	QuestionID   uint      `json:"question_id"`
	ModuleID     uint      `json:"module_id"`
	CourseID     uint      `json:"course_id"`
	UserID       string    `json:"user_id"`
	SubmittedAt  time.Time `json:"time_submitted"`
}

type GradeRecordedData struct {
	QuestionID  uint   `json:"question_id"`
	ModuleID    uint   `json:"module_id"`
	CourseID    uint   `json:"course_id"`
	UserID      string `json:"user_id"`
	GradedBy    string `json:"graded_by,omitempty"`
	Score       int    `json:"score"`
	Total       int    `json:"total"`
	IsOverdue   bool   `json:"is_overdue"`
	ModuleScore int    `json:"module_score"`
	ModuleTotal int    `json:"module_total"`
	CourseScore int    `json:"course_score"`
	CourseTotal int    `json:"course_total"`
}

type ModulePostedData struct {
	ModuleID uint       `json:"module_id"`
	CourseID uint       `json:"course_id"`
	Name     string     `json:"module_name"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	PostedBy string     `json:"posted_by"`
}
