package repositories

import "context"

// Repository aggregates every repository of the learning service
type Repository interface {
	// Course domain
	Course() CourseRepository
	Module() ModuleRepository
	Question() QuestionRepository

	// Learner activity
	Submission() SubmissionRepository
	Enrollment() EnrollmentRepository
	Grade() GradeRepository

	// User domain (read-only, backed by the identity provider)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
