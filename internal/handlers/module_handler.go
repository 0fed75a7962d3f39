package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hack4impact-upenn/odaap-f25/internal/services"
	"github.com/hack4impact-upenn/odaap-f25/internal/utils"
)

type ModuleHandler struct {
	BaseHandler
	modules   services.ModuleService
	questions services.QuestionService
}

func NewModuleHandler(modules services.ModuleService, questions services.QuestionService, logger utils.Logger) *ModuleHandler {
	return &ModuleHandler{
		BaseHandler: NewBaseHandler(logger),
		modules:     modules,
		questions:   questions,
	}
}

// CreateModule
// @Summary Create module
// @Description Posting a module on creation publishes a module.posted event
// @Tags modules
// @Accept json
// @Produce json
// @Param module body services.CreateModuleRequest true "Module data"
// @Success 201 {object} models.Module
// @Failure 403 {object} ErrorResponse "Teacher only"
// @Router /modules [post]
func (h *ModuleHandler) CreateModule(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req services.CreateModuleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating module", "course_id", req.CourseID, "user_id", userID)

	module, err := h.modules.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, module)
}

// UpdateModule
// @Summary Update module
// @Tags modules
// @Accept json
// @Produce json
// @Param id path int true "Module ID"
// @Param module body services.UpdateModuleRequest true "Fields to change"
// @Success 200 {object} models.Module
// @Router /modules/{id} [put]
func (h *ModuleHandler) UpdateModule(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateModuleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating module", "module_id", id, "user_id", userID)

	module, err := h.modules.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, module)
}

// DeleteModule deletes the module, its questions, submissions and grades
// @Summary Delete module
// @Tags modules
// @Param id path int true "Module ID"
// @Success 200 {object} SuccessResponse
// @Router /modules/{id} [delete]
func (h *ModuleHandler) DeleteModule(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting module", "module_id", id, "user_id", userID)

	if err := h.modules.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Module deleted successfully"})
}

// GetModule returns the module once it is visible to the caller
// @Summary Get module
// @Tags modules
// @Produce json
// @Param id path int true "Module ID"
// @Success 200 {object} models.Module
// @Failure 403 {object} ErrorResponse "FORBIDDEN or LOCKED"
// @Failure 404 {object} ErrorResponse
// @Router /modules/{id} [get]
func (h *ModuleHandler) GetModule(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	module, err := h.modules.Get(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, module)
}

// GetModuleStatus reports whether the caller may open the module
// @Summary Module accessibility
// @Tags modules
// @Produce json
// @Param id path int true "Module ID"
// @Success 200 {object} services.ModuleStatusResponse
// @Router /modules/{id}/is-accessible [get]
func (h *ModuleHandler) GetModuleStatus(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	status, err := h.modules.Status(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListQuestions returns the module's questions once it is visible to the caller
// @Summary List module questions
// @Tags questions
// @Produce json
// @Param id path int true "Module ID"
// @Success 200 {array} models.Question
// @Failure 403 {object} ErrorResponse "FORBIDDEN or LOCKED"
// @Router /modules/{id}/questions [get]
func (h *ModuleHandler) ListQuestions(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	questions, err := h.questions.ListByModule(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// CreateQuestion
// @Summary Create question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path int true "Module ID"
// @Param question body services.CreateQuestionRequest true "Question data"
// @Success 201 {object} models.Question
// @Router /modules/{id}/questions [post]
func (h *ModuleHandler) CreateQuestion(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.CreateQuestionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating question", "module_id", id, "type", req.Type)

	question, err := h.questions.Create(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}
