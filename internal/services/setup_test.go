package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hack4impact-upenn/odaap-f25/internal/events"
	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories/postgres"
	"github.com/hack4impact-upenn/odaap-f25/internal/testutil"
	"github.com/hack4impact-upenn/odaap-f25/internal/validator"
)

const (
	teacherID = "teacher-1"
	studentID = "student-1"
	otherID   = "student-2"
	outsider  = "outsider"
)

// syncBuffer collects log output from concurrent goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stubUsers struct {
	users map[string]*models.User
}

func (s *stubUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, repositories.NotFound("user", id)
}

func (s *stubUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var found []*models.User
	for _, id := range ids {
		if u, err := s.GetByID(ctx, id); err == nil {
			found = append(found, u)
		}
	}
	return found, nil
}

type testEnv struct {
	ctx       context.Context
	db        *gorm.DB
	repo      repositories.Repository
	fx        *testutil.Fixtures
	svc       ServiceManager
	publisher *events.MockEventPublisher
	logs      *syncBuffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logs := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	db := testutil.NewDB(t)
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB: db,
		UserRepository: &stubUsers{users: map[string]*models.User{
			teacherID: {ID: teacherID, FullName: "Tess Teacher", Email: "tess@example.org"},
			studentID: {ID: studentID, FullName: "Sam Student", Email: "sam@example.org"},
			otherID:   {ID: otherID, Email: "robin@example.org"},
		}},
	})

	publisher := events.NewMockEventPublisher(logger)
	svc := NewServiceManager(repo, publisher, logger, validator.New())
	require.NoError(t, svc.Initialize(context.Background()))

	return &testEnv{
		ctx:       context.Background(),
		db:        db,
		repo:      repo,
		fx:        testutil.NewFixtures(t, db),
		svc:       svc,
		publisher: publisher,
		logs:      logs,
	}
}

// course creates a course with one teacher and two students
func (e *testEnv) course(name string) *models.Course {
	c := e.fx.Course(name)
	e.fx.Enroll(c.ID, teacherID, models.CourseRoleTeacher)
	e.fx.Enroll(c.ID, studentID, models.CourseRoleStudent)
	e.fx.Enroll(c.ID, otherID, models.CourseRoleStudent)
	return c
}

func (e *testEnv) grade(t *testing.T, q *models.Question, userID string, score int) *GradeResult {
	t.Helper()
	result, err := e.svc.Grading().RecordGrade(e.ctx, RecordGradeInput{
		QuestionID: q.ID,
		UserID:     userID,
		Score:      score,
		GradedBy:   teacherID,
	})
	require.NoError(t, err)
	return result
}

func (e *testEnv) submit(t *testing.T, q *models.Question, userID string) *models.Submission {
	t.Helper()
	sub, err := e.svc.Submission().Create(e.ctx, &CreateSubmissionRequest{QuestionID: q.ID, Response: "answer"}, userID)
	require.NoError(t, err)
	return sub
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var se *ServiceError
	require.True(t, errors.As(err, &se), "expected ServiceError, got %v", err)
	require.Equal(t, kind, se.Kind, "error: %v", err)
}

func logLines(buf *syncBuffer, msg string) []string {
	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, `"msg":"`+msg+`"`) {
			lines = append(lines, line)
		}
	}
	return lines
}
