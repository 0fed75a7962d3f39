package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/services"
	"github.com/hack4impact-upenn/odaap-f25/internal/utils"
)

type CourseHandler struct {
	BaseHandler
	courses services.CourseService
	modules services.ModuleService
}

func NewCourseHandler(courses services.CourseService, modules services.ModuleService, logger utils.Logger) *CourseHandler {
	return &CourseHandler{
		BaseHandler: NewBaseHandler(logger),
		courses:     courses,
		modules:     modules,
	}
}

// ListCourses returns every course the caller is enrolled in
// @Summary List my courses
// @Tags courses
// @Produce json
// @Success 200 {array} services.CourseResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /courses [get]
func (h *CourseHandler) ListCourses(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	courses, err := h.courses.List(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

// CreateCourse creates a course and enrolls the caller as its teacher
// @Summary Create course
// @Tags courses
// @Accept json
// @Produce json
// @Param course body services.CreateCourseRequest true "Course data"
// @Success 201 {object} services.CourseResponse
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Router /courses [post]
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req services.CreateCourseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating course", "user_id", userID)

	course, err := h.courses.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

// GetCourse returns course details to enrolled users
// @Summary Get course
// @Tags courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} services.CourseResponse
// @Failure 403 {object} ErrorResponse "Not enrolled"
// @Failure 404 {object} ErrorResponse "Course not found"
// @Router /courses/{id} [get]
func (h *CourseHandler) GetCourse(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	course, err := h.courses.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// UpdateCourse
// @Summary Update course
// @Tags courses
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param course body services.UpdateCourseRequest true "Fields to change"
// @Success 200 {object} services.CourseResponse
// @Failure 403 {object} ErrorResponse "Teacher only"
// @Router /courses/{id} [put]
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateCourseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating course", "course_id", id, "user_id", userID)

	course, err := h.courses.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// UpdateZoomLink replaces the course meeting link; an empty link clears it
// @Summary Update course zoom link
// @Tags courses
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param link body services.ZoomLinkRequest true "Zoom link"
// @Success 200 {object} services.CourseResponse
// @Router /courses/{id}/zoom [put]
func (h *CourseHandler) UpdateZoomLink(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.ZoomLinkRequest
	if !h.bindJSON(c, &req) {
		return
	}

	course, err := h.courses.UpdateZoomLink(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// DeleteCourse removes the course with all of its content
// @Summary Delete course
// @Tags courses
// @Param id path int true "Course ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse "Teacher only"
// @Router /courses/{id} [delete]
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting course", "course_id", id, "user_id", userID)

	if err := h.courses.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Course deleted successfully"})
}

// AddMember enrolls a user with a course role
// @Summary Enroll user
// @Tags courses
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param enrollment body services.EnrollRequest true "User and role"
// @Success 201 {object} models.Enrollment
// @Failure 409 {object} ErrorResponse "Already enrolled with the other role"
// @Router /courses/{id}/users [post]
func (h *CourseHandler) AddMember(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.EnrollRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Enrolling user", "course_id", id, "member_id", req.UserID, "role", req.Role)

	enrollment, err := h.courses.AddMember(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enrollment)
}

// RemoveMember
// @Summary Unenroll user
// @Tags courses
// @Param id path int true "Course ID"
// @Param user_id path string true "User ID"
// @Success 200 {object} SuccessResponse
// @Router /courses/{id}/users/{user_id} [delete]
func (h *CourseHandler) RemoveMember(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	memberID := c.Param("user_id")

	h.LogRequest(c, "Unenrolling user", "course_id", id, "member_id", memberID)

	if err := h.courses.RemoveMember(c.Request.Context(), id, memberID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "User removed from course"})
}

// ListMembers
// @Summary List course members
// @Tags courses
// @Produce json
// @Param id path int true "Course ID"
// @Param role query string false "teacher or student"
// @Success 200 {array} services.MemberResponse
// @Router /courses/{id}/users [get]
func (h *CourseHandler) ListMembers(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var role *models.CourseRole
	if raw := c.Query("role"); raw != "" {
		r := models.CourseRole(raw)
		role = &r
	}

	members, err := h.courses.ListMembers(c.Request.Context(), id, role, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// ListModules returns the course's modules with the caller's gate state
// @Summary List course modules
// @Tags modules
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {array} services.ModuleResponse
// @Router /courses/{id}/modules [get]
func (h *CourseHandler) ListModules(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	modules, err := h.modules.ListByCourse(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, modules)
}
