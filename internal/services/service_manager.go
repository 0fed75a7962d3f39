package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hack4impact-upenn/odaap-f25/internal/events"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
	"github.com/hack4impact-upenn/odaap-f25/internal/validator"
)

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator

	// Service instances
	enrollmentService EnrollmentService
	progressService   ProgressService
	accessService     AccessService
	courseService     CourseService
	moduleService     ModuleService
	questionService   QuestionService
	submissionService SubmissionService
	gradingService    GradingService
	exportService     ExportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager; publisher may be nil to disable events
func NewServiceManager(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) ServiceManager {
	return &serviceManager{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		validator: validator,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	sm.logger.InfoContext(ctx, "Initializing service manager")
	sm.initializeServices()

	sm.initialized = true
	sm.logger.InfoContext(ctx, "Service manager initialized successfully")
	return nil
}

// initializeServices wires services bottom-up: registry, progress, gate, then the content services
func (sm *serviceManager) initializeServices() {
	sm.enrollmentService = NewEnrollmentService(sm.repo, sm.logger)
	sm.progressService = NewProgressService(sm.repo, sm.logger)
	sm.accessService = NewAccessService(sm.repo, sm.enrollmentService, sm.progressService, sm.logger)
	sm.gradingService = NewGradingService(sm.repo, sm.enrollmentService, sm.publisher, sm.logger, sm.validator)

	sm.courseService = NewCourseService(sm.repo, sm.enrollmentService, sm.logger, sm.validator)
	sm.moduleService = NewModuleService(sm.repo, sm.enrollmentService, sm.accessService, sm.gradingService, sm.publisher, sm.logger, sm.validator)
	sm.questionService = NewQuestionService(sm.repo, sm.enrollmentService, sm.accessService, sm.gradingService, sm.logger, sm.validator)
	sm.submissionService = NewSubmissionService(sm.repo, sm.enrollmentService, sm.accessService, sm.publisher, sm.logger, sm.validator)
	sm.exportService = NewExportService(sm.repo, sm.enrollmentService, sm.logger)
}

// Service getters

func (sm *serviceManager) Enrollment() EnrollmentService {
	sm.mustBeInitialized()
	return sm.enrollmentService
}

func (sm *serviceManager) Progress() ProgressService {
	sm.mustBeInitialized()
	return sm.progressService
}

func (sm *serviceManager) Access() AccessService {
	sm.mustBeInitialized()
	return sm.accessService
}

func (sm *serviceManager) Course() CourseService {
	sm.mustBeInitialized()
	return sm.courseService
}

func (sm *serviceManager) Module() ModuleService {
	sm.mustBeInitialized()
	return sm.moduleService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mustBeInitialized()
	return sm.questionService
}

func (sm *serviceManager) Submission() SubmissionService {
	sm.mustBeInitialized()
	return sm.submissionService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mustBeInitialized()
	return sm.gradingService
}

func (sm *serviceManager) Export() ExportService {
	sm.mustBeInitialized()
	return sm.exportService
}

func (sm *serviceManager) mustBeInitialized() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Health and lifecycle

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

// Shutdown closes the event publisher. The repository is owned by the caller.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.InfoContext(ctx, "Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.ErrorContext(ctx, "Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.InfoContext(ctx, "Service manager shut down completed")
	return nil
}
