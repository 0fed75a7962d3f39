package services

import (
	"context"
	"slices"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

// checkScore enforces 0 <= score <= total before anything is written
func checkScore(score, total int) error {
	details := map[string]interface{}{"score": score, "total": total}
	switch {
	case total < 0:
		return NewInvalidInputError("total must not be negative", details)
	case score < 0:
		return NewInvalidInputError("score must not be negative", details)
	case score > total:
		return NewInvalidInputError("score must not exceed total", details)
	}
	return nil
}

// recomputeUserRollups re-derives the user's module rows for moduleIDs and the course row
// from question grades. Rows with nothing graded are removed. Must run inside the grade lock.
func recomputeUserRollups(ctx context.Context, repo repositories.Repository, courseID uint, moduleIDs []uint, userID string) (map[uint]*models.UserModuleGrade, *models.UserCourseGrade, error) {
	grades := repo.Grade()
	moduleGrades := make(map[uint]*models.UserModuleGrade, len(moduleIDs))

	for _, moduleID := range moduleIDs {
		sum, err := grades.SumForModule(ctx, nil, moduleID, userID)
		if err != nil {
			return nil, nil, err
		}
		if sum.Graded == 0 {
			if err := grades.DeleteModuleGrade(ctx, nil, moduleID, userID); err != nil {
				return nil, nil, err
			}
			continue
		}

		if err := grades.UpsertModuleGrade(ctx, nil, &models.UserModuleGrade{
			ModuleID: moduleID,
			UserID:   userID,
			Score:    int(sum.Score),
			Total:    int(sum.Total),
		}); err != nil {
			return nil, nil, err
		}
		stored, err := grades.GetModuleGrade(ctx, nil, moduleID, userID)
		if err != nil {
			return nil, nil, err
		}
		moduleGrades[moduleID] = stored
	}

	sum, err := grades.SumForCourse(ctx, nil, courseID, userID)
	if err != nil {
		return nil, nil, err
	}
	if sum.Graded == 0 {
		if err := grades.DeleteCourseGrade(ctx, nil, courseID, userID); err != nil {
			return nil, nil, err
		}
		return moduleGrades, nil, nil
	}

	if err := grades.UpsertCourseGrade(ctx, nil, &models.UserCourseGrade{
		CourseID: courseID,
		UserID:   userID,
		Score:    int(sum.Score),
		Total:    int(sum.Total),
	}); err != nil {
		return nil, nil, err
	}
	courseGrade, err := grades.GetCourseGrade(ctx, nil, courseID, userID)
	if err != nil {
		return nil, nil, err
	}
	return moduleGrades, courseGrade, nil
}

func distinctCourses(pairs ...[]repositories.GradedPair) []uint {
	seen := make(map[uint]bool)
	var ids []uint
	for _, list := range pairs {
		for _, p := range list {
			if !seen[p.CourseID] {
				seen[p.CourseID] = true
				ids = append(ids, p.CourseID)
			}
		}
	}
	slices.Sort(ids)
	return ids
}
