// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/pkg"
)

// NewDB returns a migrated, isolated in-memory SQLite database.
// The pool is capped at one connection so concurrent transactions serialize.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := pkg.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixtures inserts rows directly, bypassing services
type Fixtures struct {
	t  testing.TB
	db *gorm.DB
}

func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

func (f *Fixtures) create(value interface{}) {
	f.t.Helper()
	if err := f.db.Create(value).Error; err != nil {
		f.t.Fatalf("create %T: %v", value, err)
	}
}

func (f *Fixtures) Course(name string) *models.Course {
	f.t.Helper()
	c := &models.Course{Name: name}
	f.create(c)
	return c
}

func (f *Fixtures) Module(courseID uint, order int, posted bool) *models.Module {
	f.t.Helper()
	m := &models.Module{
		CourseID: courseID,
		Name:     fmt.Sprintf("Module %d", order),
		Order:    order,
		IsPosted: posted,
	}
	f.create(m)
	return m
}

func (f *Fixtures) Question(moduleID uint, order int, scoreTotal int) *models.Question {
	f.t.Helper()
	q := &models.Question{
		ModuleID:   moduleID,
		Text:       fmt.Sprintf("Question %d", order),
		Type:       models.Written,
		Order:      order,
		ScoreTotal: scoreTotal,
	}
	f.create(q)
	return q
}

func (f *Fixtures) Enroll(courseID uint, userID string, role models.CourseRole) *models.Enrollment {
	f.t.Helper()
	e := &models.Enrollment{CourseID: courseID, UserID: userID, Role: role}
	f.create(e)
	return e
}

func (f *Fixtures) Submit(q *models.Question, userID string, at time.Time) *models.Submission {
	f.t.Helper()
	s := &models.Submission{
		UserID:      userID,
		QuestionID:  q.ID,
		ModuleID:    q.ModuleID,
		Type:        q.Type,
		Response:    "answer",
		SubmittedAt: at,
	}
	f.create(s)
	return s
}
