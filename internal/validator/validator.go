package validator

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
)

// ValidationError represents a single field that failed validation
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Validator wraps go-playground/validator with the learning-service rules registered
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so errors line up with request bodies
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v := &Validator{validate: validate}
	v.registerRules()
	return v
}

// Validate checks struct tags; nil means the value is valid
func (v *Validator) Validate(s interface{}) ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{Field: "", Message: err.Error(), Rule: "invalid"}}
	}

	result := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		result = append(result, ValidationError{
			Field:   fe.Field(),
			Message: errorMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return result
}

// ValidateQuestionContent checks the multiple-choice rules that span several fields
func (v *Validator) ValidateQuestionContent(questionType models.QuestionType, options, answers []string) ValidationErrors {
	var errs ValidationErrors

	if questionType != models.MultipleChoice {
		if len(options) > 0 {
			errs = append(errs, ValidationError{
				Field:   "mcq_options",
				Message: "only allowed for multiple_choice questions",
				Rule:    "question_content",
			})
		}
		return errs
	}

	if len(options) == 0 {
		errs = append(errs, ValidationError{
			Field:   "mcq_options",
			Message: "multiple_choice questions need at least one option",
			Rule:    "question_content",
		})
		return errs
	}

	seen := make(map[string]bool, len(options))
	for i, option := range options {
		if strings.TrimSpace(option) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("mcq_options[%d]", i),
				Message: "option cannot be empty",
				Rule:    "question_content",
			})
		}
		if seen[option] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("mcq_options[%d]", i),
				Message: "duplicate option",
				Value:   option,
				Rule:    "question_content",
			})
		}
		seen[option] = true
	}

	for i, answer := range answers {
		if !slices.Contains(options, answer) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("correct_answers[%d]", i),
				Message: "must be one of mcq_options",
				Value:   answer,
				Rule:    "question_content",
			})
		}
	}

	return errs
}

func (v *Validator) registerRules() {
	v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).IsValid()
	})

	v.validate.RegisterValidation("enrollment_role", func(fl validator.FieldLevel) bool {
		return models.CourseRole(fl.Field().String()).IsValid()
	})
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s items or characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s items or characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "question_type":
		return "must be one of multiple_choice, audio, written, video"
	case "enrollment_role":
		return "must be student or teacher"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
