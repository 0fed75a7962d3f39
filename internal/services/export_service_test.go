package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportGradebook(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Gradebook")
	m1 := env.fx.Module(course.ID, 1, true)
	q1 := env.fx.Question(m1.ID, 1, 10)
	m2 := env.fx.Module(course.ID, 2, false)
	env.fx.Question(m2.ID, 1, 10)

	env.grade(t, q1, studentID, 8)

	buf, filename, err := env.svc.Export().ExportGradebook(env.ctx, course.ID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("course-%d-gradebook.xlsx", course.ID), filename)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	assert.Equal(t, []string{gradebookSheet, modulesSheet}, f.GetSheetList())

	rows, err := f.GetRows(gradebookSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per student")
	assert.Equal(t, []string{
		"User ID", "Name", "Email",
		"Module 1 Score", "Module 1 Total",
		"Module 2 Score", "Module 2 Total",
		"Course Score", "Course Total", "Percent",
	}, rows[0])

	byUser := map[string][]string{}
	for _, row := range rows[1:] {
		byUser[row[0]] = row
	}

	graded := byUser[studentID]
	require.Len(t, graded, 10)
	assert.Equal(t, "Sam Student", graded[1])
	assert.Equal(t, "8", graded[3])
	assert.Equal(t, "10", graded[4])
	assert.Equal(t, "", graded[5])
	assert.Equal(t, "8", graded[7])
	assert.Equal(t, "80", graded[9])

	ungraded := byUser[otherID]
	require.NotNil(t, ungraded)
	assert.Equal(t, "robin@example.org", ungraded[1], "name falls back to email")
	for i := 3; i < len(ungraded); i++ {
		assert.Empty(t, ungraded[i], "ungraded cells are left empty")
	}

	modules, err := f.GetRows(modulesSheet)
	require.NoError(t, err)
	require.Len(t, modules, 3)
	assert.Equal(t, "Module 1", modules[1][1])
	assert.Equal(t, "FALSE", modules[2][3])
}

func TestExportGradebook_TeacherOnly(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Private")

	_, _, err := env.svc.Export().ExportGradebook(env.ctx, course.ID, studentID)
	requireKind(t, err, KindForbidden)

	_, _, err = env.svc.Export().ExportGradebook(env.ctx, 404, teacherID)
	requireKind(t, err, KindNotFound)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, percent(5, 0))
	assert.Equal(t, 33.33, percent(1, 3))
	assert.Equal(t, 100.0, percent(7, 7))
}
