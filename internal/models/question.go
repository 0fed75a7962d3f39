package models

import (
	"encoding/json"
	"slices"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	Audio          QuestionType = "audio"
	Written        QuestionType = "written"
	Video          QuestionType = "video"
)

var QuestionTypes = []QuestionType{MultipleChoice, Audio, Written, Video}

func (t QuestionType) IsValid() bool {
	return slices.Contains(QuestionTypes, t)
}

type Question struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	ModuleID   uint         `json:"module_id" gorm:"not null;index:idx_question_module_order"`
	Text       string       `json:"question_text" gorm:"column:question_text;type:text;not null"`
	Type       QuestionType `json:"question_type" gorm:"column:question_type;not null;size:32"`
	Order      int          `json:"question_order" gorm:"column:question_order;not null;default:0;index:idx_question_module_order"`
	ScoreTotal int          `json:"score_total" gorm:"not null;default:0"`

	// Multiple-choice data, JSON string lists
	MCQOptions     datatypes.JSON `json:"mcq_options,omitempty"`
	CorrectAnswers datatypes.JSON `json:"correct_answers,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Submissions []Submission        `json:"-" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
	Grades      []UserQuestionGrade `json:"-" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

// Options decodes mcq_options; malformed or empty data yields nil
func (q *Question) Options() []string {
	return decodeStrings(q.MCQOptions)
}

func (q *Question) Answers() []string {
	return decodeStrings(q.CorrectAnswers)
}

func (q *Question) SetOptions(options []string) error {
	data, err := encodeStrings(options)
	if err != nil {
		return err
	}
	q.MCQOptions = data
	return nil
}

func (q *Question) SetAnswers(answers []string) error {
	data, err := encodeStrings(answers)
	if err != nil {
		return err
	}
	q.CorrectAnswers = data
	return nil
}

func decodeStrings(data datatypes.JSON) []string {
	if len(data) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil
	}
	return values
}

func encodeStrings(values []string) (datatypes.JSON, error) {
	if values == nil {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
