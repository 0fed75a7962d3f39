package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hack4impact-upenn/odaap-f25/internal/services"
	"github.com/hack4impact-upenn/odaap-f25/internal/utils"
)

type SubmissionHandler struct {
	BaseHandler
	submissions services.SubmissionService
	grading     services.GradingService
}

func NewSubmissionHandler(submissions services.SubmissionService, grading services.GradingService, logger utils.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler: NewBaseHandler(logger),
		submissions: submissions,
		grading:     grading,
	}
}

// CreateSubmission records a response; the question decides the module
// @Summary Submit response
// @Tags submissions
// @Accept json
// @Produce json
// @Param submission body services.CreateSubmissionRequest true "Submission"
// @Success 201 {object} models.Submission
// @Failure 403 {object} ErrorResponse "FORBIDDEN or LOCKED"
// @Router /submissions [post]
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req services.CreateSubmissionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating submission", "question_id", req.QuestionID, "user_id", userID)

	submission, err := h.submissions.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, submission)
}

// ListSubmissions
// @Summary List submissions
// @Description Teachers see every submission in their course; students only their own
// @Tags submissions
// @Produce json
// @Param question_id query int false "Question ID"
// @Param module_id query int false "Module ID"
// @Param user_id query string false "Student ID (teacher only)"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} services.SubmissionListResponse
// @Router /submissions [get]
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	req := services.SubmissionListRequest{}
	if req.QuestionID, ok = h.parseOptionalUint(c, "question_id"); !ok {
		return
	}
	if req.ModuleID, ok = h.parseOptionalUint(c, "module_id"); !ok {
		return
	}
	if student := c.Query("user_id"); student != "" {
		req.UserID = &student
	}
	req.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	req.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	result, err := h.submissions.List(c.Request.Context(), req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetLatestSubmission returns the most recent submission, the one grading displays
// @Summary Latest submission
// @Tags submissions
// @Produce json
// @Param user_id path string true "Student ID"
// @Param question_id path int true "Question ID"
// @Success 200 {object} models.Submission
// @Failure 404 {object} ErrorResponse "No submission"
// @Router /submissions/users/{user_id}/questions/{question_id} [get]
func (h *SubmissionHandler) GetLatestSubmission(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	submission, err := h.submissions.GetLatest(c.Request.Context(), c.Param("user_id"), questionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

// GradeSubmission records the teacher's grade for the submission's question
// @Summary Grade submission
// @Tags grades
// @Accept json
// @Produce json
// @Param id path int true "Submission ID"
// @Param grade body services.GradeRequest true "Score, optional total and overdue flag"
// @Success 200 {object} services.GradeResult
// @Failure 400 {object} ErrorResponse "Score outside [0, total]"
// @Router /submissions/{id}/grade [post]
func (h *SubmissionHandler) GradeSubmission(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.GradeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Grading submission", "submission_id", id, "grader_id", userID)

	result, err := h.grading.GradeSubmission(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
