package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hack4impact-upenn/odaap-f25/internal/services"
	"github.com/hack4impact-upenn/odaap-f25/internal/utils"
)

type HandlerManager struct {
	courseHandler     *CourseHandler
	moduleHandler     *ModuleHandler
	questionHandler   *QuestionHandler
	submissionHandler *SubmissionHandler
	gradeHandler      *GradeHandler
	serviceManager    services.ServiceManager
	auth              gin.HandlerFunc
}

// NewHandlerManager builds every handler; auth must set user_id on the gin context
func NewHandlerManager(serviceManager services.ServiceManager, logger utils.Logger, auth gin.HandlerFunc) *HandlerManager {
	return &HandlerManager{
		courseHandler:     NewCourseHandler(serviceManager.Course(), serviceManager.Module(), logger),
		moduleHandler:     NewModuleHandler(serviceManager.Module(), serviceManager.Question(), logger),
		questionHandler:   NewQuestionHandler(serviceManager.Question(), logger),
		submissionHandler: NewSubmissionHandler(serviceManager.Submission(), serviceManager.Grading(), logger),
		gradeHandler:      NewGradeHandler(serviceManager.Grading(), serviceManager.Export(), logger),
		serviceManager:    serviceManager,
		auth:              auth,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.health)

	v1 := router.Group("/api/v1")
	v1.Use(hm.auth)
	{
		courses := v1.Group("/courses")
		{
			courses.GET("", hm.courseHandler.ListCourses)
			courses.POST("", hm.courseHandler.CreateCourse)
			courses.GET("/:id", hm.courseHandler.GetCourse)
			courses.PUT("/:id", hm.courseHandler.UpdateCourse)
			courses.DELETE("/:id", hm.courseHandler.DeleteCourse)
			courses.PUT("/:id/zoom", hm.courseHandler.UpdateZoomLink)

			// Membership, teacher only
			courses.GET("/:id/users", hm.courseHandler.ListMembers)
			courses.POST("/:id/users", hm.courseHandler.AddMember)
			courses.DELETE("/:id/users/:user_id", hm.courseHandler.RemoveMember)

			courses.GET("/:id/modules", hm.courseHandler.ListModules)

			courses.GET("/:id/grades", hm.gradeHandler.GetCourseGrade)
			courses.GET("/:id/grades/export", hm.gradeHandler.ExportGradebook)
		}

		modules := v1.Group("/modules")
		{
			modules.POST("", hm.moduleHandler.CreateModule)
			modules.GET("/:id", hm.moduleHandler.GetModule)
			modules.PUT("/:id", hm.moduleHandler.UpdateModule)
			modules.DELETE("/:id", hm.moduleHandler.DeleteModule)
			modules.GET("/:id/is-accessible", hm.moduleHandler.GetModuleStatus)
			modules.GET("/:id/status", hm.moduleHandler.GetModuleStatus)
			modules.GET("/:id/questions", hm.moduleHandler.ListQuestions)
			modules.POST("/:id/questions", hm.moduleHandler.CreateQuestion)
		}

		questions := v1.Group("/questions")
		{
			questions.GET("/:id", hm.questionHandler.GetQuestion)
			questions.PUT("/:id", hm.questionHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
		}

		submissions := v1.Group("/submissions")
		{
			submissions.POST("", hm.submissionHandler.CreateSubmission)
			submissions.GET("", hm.submissionHandler.ListSubmissions)
			submissions.GET("/users/:user_id/questions/:question_id", hm.submissionHandler.GetLatestSubmission)
			submissions.POST("/:id/grade", hm.submissionHandler.GradeSubmission)
		}
	}
}

func (hm *HandlerManager) health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "odaap-learning",
	})
}
