package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hack4impact-upenn/odaap-f25/internal/services"
	"github.com/hack4impact-upenn/odaap-f25/internal/utils"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Kind    services.ErrorKind `json:"kind,omitempty"`
	Message string             `json:"message"`
	Details interface{}        `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the helpers shared by every resource handler
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs the start of a handler with the request-scoped logger
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.FullPath())
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err, "path", c.FullPath())
	utils.GetLogger(c, h.logger).Error(msg, args...)
}

// currentUser returns the authenticated user id, responding 401 when absent
func (h *BaseHandler) currentUser(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil || userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

// parseIDParam parses a positive numeric path parameter; it responds 400 and returns 0 on failure
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Kind:    services.KindInvalidInput,
			Message: "Invalid " + name,
			Details: c.Param(name),
		})
		return 0
	}
	return uint(id)
}

// parseOptionalUint reads an optional numeric query parameter
func (h *BaseHandler) parseOptionalUint(c *gin.Context, name string) (*uint, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Kind:    services.KindInvalidInput,
			Message: "Invalid " + name,
			Details: raw,
		})
		return nil, false
	}
	id := uint(v)
	return &id, true
}

func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Kind:    services.KindInvalidInput,
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// handleServiceError maps a service error kind onto an HTTP status
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var se *services.ServiceError
	if !errors.As(err, &se) {
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch se.Kind {
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindForbidden, services.KindLocked:
		status = http.StatusForbidden
	case services.KindInvalidInput:
		status = http.StatusBadRequest
	case services.KindConflict:
		status = http.StatusConflict
	default:
		h.LogError(c, err, "Service reported inconsistent state")
	}

	c.JSON(status, ErrorResponse{
		Kind:    se.Kind,
		Message: se.Message,
		Details: se.Details,
	})
}
