package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db *gorm.DB
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{db: db}
}

func (r *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	if err := r.getDB(tx).WithContext(ctx).Create(submission).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (r *SubmissionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := r.getDB(tx).WithContext(ctx).First(&submission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NotFound("submission", id)
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

// List returns matching submissions, newest first, and the unpaginated total
func (r *SubmissionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	query := r.getDB(tx).WithContext(ctx).Model(&models.Submission{})

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.QuestionID != nil {
		query = query.Where("question_id = ?", *filters.QuestionID)
	}
	if filters.ModuleID != nil {
		query = query.Where("module_id = ?", *filters.ModuleID)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	query = query.Order("time_submitted DESC, id DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit).Offset(filters.Offset)
	}

	var submissions []*models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, total, nil
}

func (r *SubmissionPostgreSQL) GetLatest(ctx context.Context, tx *gorm.DB, userID string, questionID uint) (*models.Submission, error) {
	var submission models.Submission
	err := r.getDB(tx).WithContext(ctx).
		Where("user_id = ? AND question_id = ?", userID, questionID).
		Order("time_submitted DESC, id DESC").
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NotFound("submission for question", questionID)
		}
		return nil, fmt.Errorf("failed to get latest submission: %w", err)
	}
	return &submission, nil
}

func (r *SubmissionPostgreSQL) CountAnsweredByModules(ctx context.Context, tx *gorm.DB, moduleIDs []uint, userID string) (map[uint]int64, error) {
	if len(moduleIDs) == 0 {
		return map[uint]int64{}, nil
	}

	var rows []countRow
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Submission{}).
		Select("questions.module_id AS group_id, COUNT(DISTINCT submissions.question_id) AS total").
		Joins("JOIN questions ON questions.id = submissions.question_id").
		Where("questions.module_id IN ? AND submissions.user_id = ?", moduleIDs, userID).
		Group("questions.module_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count answered questions: %w", err)
	}
	return countsToMap(rows), nil
}

func (r *SubmissionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
