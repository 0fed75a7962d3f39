package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/hack4impact-upenn/odaap-f25/internal/cache"
	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

type CoursePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewCoursePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.CourseRepository {
	return &CoursePostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *CoursePostgreSQL) Create(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(course).Error; err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

// GetByID retrieves a course, served from cache outside of transactions
func (r *CoursePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	if tx != nil {
		return r.fetch(ctx, tx, id)
	}

	var course models.Course
	err := r.cacheManager.Course.CacheOrExecute(ctx, cache.CourseKey(id), &course, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		return r.fetch(ctx, r.db, id)
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CoursePostgreSQL) fetch(ctx context.Context, db *gorm.DB, id uint) (*models.Course, error) {
	var course models.Course
	if err := db.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NotFound("course", id)
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return &course, nil
}

func (r *CoursePostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Course, error) {
	if len(ids) == 0 {
		return []*models.Course{}, nil
	}
	var courses []*models.Course
	if err := r.getDB(tx).WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("failed to get courses: %w", err)
	}
	return courses, nil
}

func (r *CoursePostgreSQL) Update(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Omit("Modules", "Enrollments", "Grades").Save(course).Error; err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}

	cache.InvalidateCourseCache(ctx, r.cacheManager, course.ID)
	return nil
}

// Delete removes the course and everything it owns
func (r *CoursePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	var userIDs []string
	err := r.getDB(tx).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Enrollment{}).Where("course_id = ?", id).Distinct().Pluck("user_id", &userIDs).Error; err != nil {
			return fmt.Errorf("failed to list enrolled users: %w", err)
		}

		moduleIDs, err := r.helpers.ModuleIDsByCourse(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("failed to list course modules: %w", err)
		}
		if err := r.helpers.DeleteModuleData(ctx, tx, moduleIDs); err != nil {
			return err
		}

		if err := tx.Where("course_id = ?", id).Delete(&models.UserCourseGrade{}).Error; err != nil {
			return fmt.Errorf("failed to delete course grades: %w", err)
		}
		if err := tx.Where("course_id = ?", id).Delete(&models.Enrollment{}).Error; err != nil {
			return fmt.Errorf("failed to delete enrollments: %w", err)
		}

		result := tx.Delete(&models.Course{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete course: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return repositories.NotFound("course", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cache.InvalidateCourseCache(ctx, r.cacheManager, id)
	cache.InvalidateEnrollmentCache(ctx, r.cacheManager, userIDs...)
	return nil
}

func (r *CoursePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
