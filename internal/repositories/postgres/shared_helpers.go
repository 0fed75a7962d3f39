package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
)

// SharedHelpers contains queries used by more than one repository
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

func (h *SharedHelpers) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return h.db
}

// ModuleIDsByCourse plucks the ids of every module in a course
func (h *SharedHelpers) ModuleIDsByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]uint, error) {
	var ids []uint
	err := h.getDB(tx).WithContext(ctx).
		Model(&models.Module{}).
		Where("course_id = ?", courseID).
		Pluck("id", &ids).Error
	return ids, err
}

// QuestionIDsByModules plucks the ids of every question in the given modules
func (h *SharedHelpers) QuestionIDsByModules(ctx context.Context, tx *gorm.DB, moduleIDs []uint) ([]uint, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := h.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Where("module_id IN ?", moduleIDs).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteQuestionData removes questions along with their submissions and grades
func (h *SharedHelpers) DeleteQuestionData(ctx context.Context, tx *gorm.DB, questionIDs []uint) error {
	if len(questionIDs) == 0 {
		return nil
	}
	db := h.getDB(tx).WithContext(ctx)

	if err := db.Where("question_id IN ?", questionIDs).Delete(&models.UserQuestionGrade{}).Error; err != nil {
		return fmt.Errorf("failed to delete question grades: %w", err)
	}
	if err := db.Where("question_id IN ?", questionIDs).Delete(&models.Submission{}).Error; err != nil {
		return fmt.Errorf("failed to delete submissions: %w", err)
	}
	if err := db.Where("id IN ?", questionIDs).Delete(&models.Question{}).Error; err != nil {
		return fmt.Errorf("failed to delete questions: %w", err)
	}
	return nil
}

// DeleteModuleData removes modules, their module grades and all question data
func (h *SharedHelpers) DeleteModuleData(ctx context.Context, tx *gorm.DB, moduleIDs []uint) error {
	if len(moduleIDs) == 0 {
		return nil
	}

	questionIDs, err := h.QuestionIDsByModules(ctx, tx, moduleIDs)
	if err != nil {
		return fmt.Errorf("failed to list module questions: %w", err)
	}
	if err := h.DeleteQuestionData(ctx, tx, questionIDs); err != nil {
		return err
	}

	db := h.getDB(tx).WithContext(ctx)
	if err := db.Where("module_id IN ?", moduleIDs).Delete(&models.UserModuleGrade{}).Error; err != nil {
		return fmt.Errorf("failed to delete module grades: %w", err)
	}
	if err := db.Where("id IN ?", moduleIDs).Delete(&models.Module{}).Error; err != nil {
		return fmt.Errorf("failed to delete modules: %w", err)
	}
	return nil
}

// countRow scans "SELECT x AS group_id, COUNT(..) AS total ... GROUP BY x"
type countRow struct {
	GroupID uint
	Total   int64
}

func countsToMap(rows []countRow) map[uint]int64 {
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.GroupID] = r.Total
	}
	return counts
}
