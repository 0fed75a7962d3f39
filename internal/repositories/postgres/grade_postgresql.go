package postgres

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

type GradePostgreSQL struct {
	db *gorm.DB
}

func NewGradePostgreSQL(db *gorm.DB) repositories.GradeRepository {
	return &GradePostgreSQL{db: db}
}

// LockUser takes a transaction-scoped advisory lock on PostgreSQL.
// Other dialects rely on the caller's in-process lock.
func (r *GradePostgreSQL) LockUser(ctx context.Context, tx *gorm.DB, courseID uint, userID string) error {
	db := r.getDB(tx)
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(courseID, userID)).Error; err != nil {
		return fmt.Errorf("failed to acquire grade lock: %w", err)
	}
	return nil
}

func advisoryKey(courseID uint, userID string) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "grade:%d:%s", courseID, userID)
	return int64(h.Sum64())
}

// ===== UPSERTS =====

func (r *GradePostgreSQL) UpsertQuestionGrade(ctx context.Context, tx *gorm.DB, grade *models.UserQuestionGrade) error {
	err := r.getDB(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "question_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "total", "is_overdue", "updated_at"}),
	}).Create(grade).Error
	if err != nil {
		return fmt.Errorf("failed to upsert question grade: %w", err)
	}
	return nil
}

func (r *GradePostgreSQL) UpsertModuleGrade(ctx context.Context, tx *gorm.DB, grade *models.UserModuleGrade) error {
	err := r.getDB(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "module_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "total", "updated_at"}),
	}).Create(grade).Error
	if err != nil {
		return fmt.Errorf("failed to upsert module grade: %w", err)
	}
	return nil
}

func (r *GradePostgreSQL) UpsertCourseGrade(ctx context.Context, tx *gorm.DB, grade *models.UserCourseGrade) error {
	err := r.getDB(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "total", "updated_at"}),
	}).Create(grade).Error
	if err != nil {
		return fmt.Errorf("failed to upsert course grade: %w", err)
	}
	return nil
}

func (r *GradePostgreSQL) DeleteModuleGrade(ctx context.Context, tx *gorm.DB, moduleID uint, userID string) error {
	err := r.getDB(tx).WithContext(ctx).
		Where("module_id = ? AND user_id = ?", moduleID, userID).
		Delete(&models.UserModuleGrade{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete module grade: %w", err)
	}
	return nil
}

func (r *GradePostgreSQL) DeleteCourseGrade(ctx context.Context, tx *gorm.DB, courseID uint, userID string) error {
	err := r.getDB(tx).WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Delete(&models.UserCourseGrade{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete course grade: %w", err)
	}
	return nil
}

// ===== LOOKUPS =====

func (r *GradePostgreSQL) GetQuestionGrade(ctx context.Context, tx *gorm.DB, questionID uint, userID string) (*models.UserQuestionGrade, error) {
	var grade models.UserQuestionGrade
	if err := r.first(ctx, tx, &grade, "question_id = ? AND user_id = ?", questionID, userID); err != nil {
		return nil, wrapGradeErr(err, "question grade", questionID)
	}
	return &grade, nil
}

func (r *GradePostgreSQL) GetModuleGrade(ctx context.Context, tx *gorm.DB, moduleID uint, userID string) (*models.UserModuleGrade, error) {
	var grade models.UserModuleGrade
	if err := r.first(ctx, tx, &grade, "module_id = ? AND user_id = ?", moduleID, userID); err != nil {
		return nil, wrapGradeErr(err, "module grade", moduleID)
	}
	return &grade, nil
}

func (r *GradePostgreSQL) GetCourseGrade(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (*models.UserCourseGrade, error) {
	var grade models.UserCourseGrade
	if err := r.first(ctx, tx, &grade, "course_id = ? AND user_id = ?", courseID, userID); err != nil {
		return nil, wrapGradeErr(err, "course grade", courseID)
	}
	return &grade, nil
}

func (r *GradePostgreSQL) first(ctx context.Context, tx *gorm.DB, dest interface{}, query string, args ...interface{}) error {
	return r.getDB(tx).WithContext(ctx).Where(query, args...).First(dest).Error
}

func wrapGradeErr(err error, entity string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.NotFound(entity, id)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}

// ===== AGGREGATES =====

const gradeSumSelect = "COALESCE(SUM(user_question_grades.score), 0) AS score, " +
	"COALESCE(SUM(user_question_grades.total), 0) AS total, " +
	"COUNT(user_question_grades.id) AS graded"

func (r *GradePostgreSQL) SumForModule(ctx context.Context, tx *gorm.DB, moduleID uint, userID string) (repositories.GradeSum, error) {
	var sum repositories.GradeSum
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.UserQuestionGrade{}).
		Select(gradeSumSelect).
		Joins("JOIN questions ON questions.id = user_question_grades.question_id").
		Where("questions.module_id = ? AND user_question_grades.user_id = ?", moduleID, userID).
		Scan(&sum).Error
	if err != nil {
		return sum, fmt.Errorf("failed to sum module grades: %w", err)
	}
	return sum, nil
}

func (r *GradePostgreSQL) SumForCourse(ctx context.Context, tx *gorm.DB, courseID uint, userID string) (repositories.GradeSum, error) {
	var sum repositories.GradeSum
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.UserQuestionGrade{}).
		Select(gradeSumSelect).
		Joins("JOIN questions ON questions.id = user_question_grades.question_id").
		Joins("JOIN modules ON modules.id = questions.module_id").
		Where("modules.course_id = ? AND user_question_grades.user_id = ?", courseID, userID).
		Scan(&sum).Error
	if err != nil {
		return sum, fmt.Errorf("failed to sum course grades: %w", err)
	}
	return sum, nil
}

// ===== LISTINGS =====

func (r *GradePostgreSQL) ListQuestionGrades(ctx context.Context, tx *gorm.DB, questionIDs []uint) ([]*models.UserQuestionGrade, error) {
	grades := []*models.UserQuestionGrade{}
	if len(questionIDs) == 0 {
		return grades, nil
	}
	err := r.getDB(tx).WithContext(ctx).
		Where("question_id IN ?", questionIDs).
		Order("question_id ASC, user_id ASC").
		Find(&grades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list question grades: %w", err)
	}
	return grades, nil
}

func (r *GradePostgreSQL) ListModuleGradesByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]*models.UserModuleGrade, error) {
	var grades []*models.UserModuleGrade
	err := r.getDB(tx).WithContext(ctx).
		Select("user_module_grades.*").
		Joins("JOIN modules ON modules.id = user_module_grades.module_id").
		Where("modules.course_id = ?", courseID).
		Order("user_module_grades.user_id ASC, modules.module_order ASC, modules.id ASC").
		Find(&grades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list module grades: %w", err)
	}
	return grades, nil
}

func (r *GradePostgreSQL) ListCourseGrades(ctx context.Context, tx *gorm.DB, courseID uint) ([]*models.UserCourseGrade, error) {
	var grades []*models.UserCourseGrade
	err := r.getDB(tx).WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("user_id ASC").
		Find(&grades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list course grades: %w", err)
	}
	return grades, nil
}

func (r *GradePostgreSQL) ListGradedPairs(ctx context.Context, tx *gorm.DB, courseID *uint) ([]repositories.GradedPair, error) {
	query := r.getDB(tx).WithContext(ctx).
		Model(&models.UserQuestionGrade{}).
		Select("DISTINCT modules.course_id AS course_id, user_question_grades.user_id AS user_id").
		Joins("JOIN questions ON questions.id = user_question_grades.question_id").
		Joins("JOIN modules ON modules.id = questions.module_id")
	if courseID != nil {
		query = query.Where("modules.course_id = ?", *courseID)
	}

	var pairs []repositories.GradedPair
	if err := query.Order("course_id ASC, user_id ASC").Scan(&pairs).Error; err != nil {
		return nil, fmt.Errorf("failed to list graded users: %w", err)
	}
	return pairs, nil
}

func (r *GradePostgreSQL) ListRollupPairs(ctx context.Context, tx *gorm.DB) ([]repositories.GradedPair, error) {
	var pairs []repositories.GradedPair
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.UserCourseGrade{}).
		Select("course_id, user_id").
		Order("course_id ASC, user_id ASC").
		Scan(&pairs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list course grade owners: %w", err)
	}
	return pairs, nil
}

func (r *GradePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
