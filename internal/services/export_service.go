package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

const (
	gradebookSheet = "Gradebook"
	modulesSheet   = "Modules"
)

type exportService struct {
	repo       repositories.Repository
	enrollment EnrollmentService
	logger     *slog.Logger
}

func NewExportService(repo repositories.Repository, enrollment EnrollmentService, logger *slog.Logger) ExportService {
	return &exportService{
		repo:       repo,
		enrollment: enrollment,
		logger:     logger,
	}
}

// ExportGradebook writes one row per enrolled student with every module rollup and the course rollup.
// Ungraded cells are left empty.
func (s *exportService) ExportGradebook(ctx context.Context, courseID uint, userID string) (*bytes.Buffer, string, error) {
	course, err := s.repo.Course().GetByID(ctx, nil, courseID)
	if err != nil {
		return nil, "", notFoundOr(err, "course", courseID)
	}
	if err := s.enrollment.RequireTeacher(ctx, courseID, userID); err != nil {
		return nil, "", err
	}

	studentRole := models.CourseRoleStudent
	students, err := s.enrollment.ListMembers(ctx, courseID, &studentRole)
	if err != nil {
		return nil, "", err
	}
	modules, err := s.repo.Module().ListByCourse(ctx, nil, courseID, false)
	if err != nil {
		return nil, "", err
	}
	moduleGrades, err := s.repo.Grade().ListModuleGradesByCourse(ctx, nil, courseID)
	if err != nil {
		return nil, "", err
	}
	courseGrades, err := s.repo.Grade().ListCourseGrades(ctx, nil, courseID)
	if err != nil {
		return nil, "", err
	}

	byUserModule := make(map[string]map[uint]*models.UserModuleGrade)
	for _, g := range moduleGrades {
		if byUserModule[g.UserID] == nil {
			byUserModule[g.UserID] = make(map[uint]*models.UserModuleGrade)
		}
		byUserModule[g.UserID][g.ModuleID] = g
	}
	byUser := make(map[string]*models.UserCourseGrade, len(courseGrades))
	for _, g := range courseGrades {
		byUser[g.UserID] = g
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.WarnContext(ctx, "Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", gradebookSheet); err != nil {
		return nil, "", fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []interface{}{"User ID", "Name", "Email"}
	for _, m := range modules {
		header = append(header, m.Name+" Score", m.Name+" Total")
	}
	header = append(header, "Course Score", "Course Total", "Percent")
	if err := setRow(f, gradebookSheet, 1, header); err != nil {
		return nil, "", err
	}

	for i, member := range students {
		row := []interface{}{member.UserID, "", ""}
		if member.User != nil {
			row[1] = member.User.DisplayName()
			row[2] = member.User.Email
		}
		for _, m := range modules {
			if g, ok := byUserModule[member.UserID][m.ID]; ok {
				row = append(row, g.Score, g.Total)
			} else {
				row = append(row, nil, nil)
			}
		}
		if g, ok := byUser[member.UserID]; ok {
			row = append(row, g.Score, g.Total, percent(g.Score, g.Total))
		} else {
			row = append(row, nil, nil, nil)
		}
		if err := setRow(f, gradebookSheet, i+2, row); err != nil {
			return nil, "", err
		}
	}

	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(gradebookSheet, 1, 1, bold)
	}

	if _, err := f.NewSheet(modulesSheet); err != nil {
		return nil, "", fmt.Errorf("failed to add sheet: %w", err)
	}
	if err := setRow(f, modulesSheet, 1, []interface{}{"Module ID", "Name", "Order", "Posted", "Due Date", "Score Total"}); err != nil {
		return nil, "", err
	}
	for i, m := range modules {
		due := ""
		if m.DueDate != nil {
			due = m.DueDate.UTC().Format("2006-01-02 15:04")
		}
		if err := setRow(f, modulesSheet, i+2, []interface{}{m.ID, m.Name, m.Order, m.IsPosted, due, m.ScoreTotal}); err != nil {
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.InfoContext(ctx, "Gradebook exported", "course_id", course.ID, "students", len(students), "modules", len(modules), "user_id", userID)
	return buf, fmt.Sprintf("course-%d-gradebook.xlsx", course.ID), nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func percent(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(score)*10000/float64(total)) / 100
}
