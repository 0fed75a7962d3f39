package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

// ModulePostgreSQL is never cached: posted flags must be read fresh by the access gate
type ModulePostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewModulePostgreSQL(db *gorm.DB) repositories.ModuleRepository {
	return &ModulePostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (r *ModulePostgreSQL) Create(ctx context.Context, tx *gorm.DB, module *models.Module) error {
	if err := r.getDB(tx).WithContext(ctx).Create(module).Error; err != nil {
		return fmt.Errorf("failed to create module: %w", err)
	}
	return nil
}

func (r *ModulePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Module, error) {
	var module models.Module
	if err := r.getDB(tx).WithContext(ctx).First(&module, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NotFound("module", id)
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	return &module, nil
}

func (r *ModulePostgreSQL) Update(ctx context.Context, tx *gorm.DB, module *models.Module) error {
	if err := r.getDB(tx).WithContext(ctx).Omit("Questions", "Grades").Save(module).Error; err != nil {
		return fmt.Errorf("failed to update module: %w", err)
	}
	return nil
}

// Delete removes the module with its questions, submissions and grades
func (r *ModulePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return r.getDB(tx).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Module{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check module: %w", err)
		}
		if count == 0 {
			return repositories.NotFound("module", id)
		}
		return r.helpers.DeleteModuleData(ctx, tx, []uint{id})
	})
}

func (r *ModulePostgreSQL) ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint, postedOnly bool) ([]*models.Module, error) {
	query := r.getDB(tx).WithContext(ctx).Where("course_id = ?", courseID)
	if postedOnly {
		query = query.Where("is_posted = ?", true)
	}

	var modules []*models.Module
	if err := query.Order("module_order ASC, id ASC").Find(&modules).Error; err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return modules, nil
}

func (r *ModulePostgreSQL) ListPostedBefore(ctx context.Context, tx *gorm.DB, courseID uint, order int) ([]*models.Module, error) {
	var modules []*models.Module
	err := r.getDB(tx).WithContext(ctx).
		Where("course_id = ? AND is_posted = ? AND module_order < ?", courseID, true, order).
		Order("module_order ASC, id ASC").
		Find(&modules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list prerequisite modules: %w", err)
	}
	return modules, nil
}

func (r *ModulePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
