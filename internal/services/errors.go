package services

import (
	"errors"
	"fmt"

	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
	"github.com/hack4impact-upenn/odaap-f25/internal/validator"
)

type ErrorKind string

const (
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindLocked            ErrorKind = "LOCKED"
	KindInvalidInput      ErrorKind = "INVALID_INPUT"
	KindInconsistentState ErrorKind = "INCONSISTENT_STATE"
	KindConflict          ErrorKind = "CONFLICT"
)

// ServiceError is the typed error returned by every service. errors.Is matches on Kind.
type ServiceError struct {
	Kind    ErrorKind   `json:"kind"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound          = &ServiceError{Kind: KindNotFound, Message: "not found"}
	ErrForbidden         = &ServiceError{Kind: KindForbidden, Message: "forbidden"}
	ErrLocked            = &ServiceError{Kind: KindLocked, Message: "locked"}
	ErrInvalidInput      = &ServiceError{Kind: KindInvalidInput, Message: "invalid input"}
	ErrInconsistentState = &ServiceError{Kind: KindInconsistentState, Message: "inconsistent state"}
	ErrConflict          = &ServiceError{Kind: KindConflict, Message: "conflict"}
)

// ===== CONSTRUCTORS =====

func NewNotFoundError(entity string, id interface{}) *ServiceError {
	return &ServiceError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: map[string]interface{}{"entity": entity, "id": id},
	}
}

func NewForbiddenError(userID string, resource string, action string) *ServiceError {
	return &ServiceError{
		Kind:    KindForbidden,
		Message: fmt.Sprintf("not allowed to %s %s", action, resource),
		Details: map[string]interface{}{"user_id": userID, "resource": resource, "action": action},
	}
}

func NewLockedError(moduleID uint) *ServiceError {
	return &ServiceError{
		Kind:    KindLocked,
		Message: "module is locked",
		Details: map[string]interface{}{"module_id": moduleID},
	}
}

func NewInvalidInputError(message string, details interface{}) *ServiceError {
	return &ServiceError{Kind: KindInvalidInput, Message: message, Details: details}
}

func NewConflictError(message string, details interface{}) *ServiceError {
	return &ServiceError{Kind: KindConflict, Message: message, Details: details}
}

func NewInconsistentStateError(message string, details interface{}) *ServiceError {
	return &ServiceError{Kind: KindInconsistentState, Message: message, Details: details}
}

// validationError converts request validation failures into INVALID_INPUT
func validationError(errs validator.ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return &ServiceError{Kind: KindInvalidInput, Message: errs.Error(), Details: errs}
}

// notFoundOr maps a repository not-found error to NOT_FOUND and wraps anything else
func notFoundOr(err error, entity string, id interface{}) error {
	if repositories.IsNotFoundError(err) {
		e := NewNotFoundError(entity, id)
		e.Err = err
		return e
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}

// KindOf returns the ServiceError kind of err, or "" for untyped errors
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
