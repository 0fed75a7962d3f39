package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hack4impact-upenn/odaap-f25/internal/services"
	"github.com/hack4impact-upenn/odaap-f25/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type GradeHandler struct {
	BaseHandler
	grading services.GradingService
	export  services.ExportService
}

func NewGradeHandler(grading services.GradingService, export services.ExportService, logger utils.Logger) *GradeHandler {
	return &GradeHandler{
		BaseHandler: NewBaseHandler(logger),
		grading:     grading,
		export:      export,
	}
}

// GetCourseGrade returns a course rollup with per-module entries
// @Summary Course grade
// @Description Defaults to the caller; teachers may pass user_id
// @Tags grades
// @Produce json
// @Param id path int true "Course ID"
// @Param user_id query string false "Student ID"
// @Success 200 {object} services.CourseGradeResponse
// @Router /courses/{id}/grades [get]
func (h *GradeHandler) GetCourseGrade(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	studentID := c.DefaultQuery("user_id", userID)

	grade, err := h.grading.GetCourseGrade(c.Request.Context(), id, studentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, grade)
}

// ExportGradebook streams the course gradebook as an XLSX workbook
// @Summary Export gradebook
// @Tags grades
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Course ID"
// @Success 200 {file} file
// @Failure 403 {object} ErrorResponse "Teacher only"
// @Router /courses/{id}/grades/export [get]
func (h *GradeHandler) ExportGradebook(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Exporting gradebook", "course_id", id, "user_id", userID)

	buf, filename, err := h.export.ExportGradebook(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
