package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/hack4impact-upenn/odaap-f25/internal/cache"
	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

// EnrollmentPostgreSQL caches per-user course lists only; role lookups always hit the database
type EnrollmentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewEnrollmentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.EnrollmentRepository {
	return &EnrollmentPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *EnrollmentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) error {
	if err := r.getDB(tx).WithContext(ctx).Create(enrollment).Error; err != nil {
		if repositories.IsDuplicateError(err) {
			return fmt.Errorf("enrollment of %s in course %d: %w", enrollment.UserID, enrollment.CourseID, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	cache.InvalidateEnrollmentCache(ctx, r.cacheManager, enrollment.UserID)
	return nil
}

func (r *EnrollmentPostgreSQL) Roles(ctx context.Context, tx *gorm.DB, courseID uint, userID string) ([]models.CourseRole, error) {
	var roles []models.CourseRole
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Order("role").
		Pluck("role", &roles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment roles: %w", err)
	}
	return roles, nil
}

// Delete removes every membership of the user in the course and reports how many were removed
func (r *EnrollmentPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (int64, error) {
	result := r.getDB(tx).WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Delete(&models.Enrollment{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete enrollment: %w", result.Error)
	}

	cache.InvalidateEnrollmentCache(ctx, r.cacheManager, userID)
	return result.RowsAffected, nil
}

func (r *EnrollmentPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Enrollment, error) {
	if tx != nil {
		return r.listByUser(ctx, tx, userID)
	}

	var enrollments []*models.Enrollment
	err := r.cacheManager.Enrollment.CacheOrExecute(ctx, cache.EnrollmentListKey(userID), &enrollments, cache.EnrollmentCacheConfig.TTL, func() (interface{}, error) {
		return r.listByUser(ctx, r.db, userID)
	})
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (r *EnrollmentPostgreSQL) listByUser(ctx context.Context, db *gorm.DB, userID string) ([]*models.Enrollment, error) {
	enrollments := []*models.Enrollment{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("course_id ASC, id ASC").
		Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return enrollments, nil
}

func (r *EnrollmentPostgreSQL) ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint, role *models.CourseRole) ([]*models.Enrollment, error) {
	query := r.getDB(tx).WithContext(ctx).Where("course_id = ?", courseID)
	if role != nil {
		query = query.Where("role = ?", *role)
	}

	var enrollments []*models.Enrollment
	if err := query.Order("role ASC, user_id ASC").Find(&enrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to list course members: %w", err)
	}
	return enrollments, nil
}

func (r *EnrollmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
