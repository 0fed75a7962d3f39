package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hack4impact-upenn/odaap-f25/internal/events"
	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories/postgres"
	"github.com/hack4impact-upenn/odaap-f25/internal/services"
	"github.com/hack4impact-upenn/odaap-f25/internal/testutil"
	"github.com/hack4impact-upenn/odaap-f25/internal/utils"
	"github.com/hack4impact-upenn/odaap-f25/internal/validator"
)

const (
	teacher = "teacher-1"
	student = "student-1"
)

type noUsers struct{}

func (noUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return nil, repositories.NotFound("user", id)
}

func (noUsers) GetByIDs(context.Context, []string) ([]*models.User, error) {
	return nil, nil
}

// headerAuth trusts X-User-ID in place of a verified token
func headerAuth(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		abortUnauthorized(c, "authorization header missing")
		return
	}
	c.Set("user_id", userID)
	c.Next()
}

type apiTest struct {
	t      *testing.T
	router *gin.Engine
	fx     *testutil.Fixtures
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()
	gin.SetMode(gin.TestMode)

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logger := utils.NewSlogLogger(slogger)

	db := testutil.NewDB(t)
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db, UserRepository: noUsers{}})
	svc := services.NewServiceManager(repo, events.NewMockEventPublisher(slogger), slogger, validator.New())
	require.NoError(t, svc.Initialize(context.Background()))

	router := gin.New()
	SetupMiddleware(router, logger)
	NewHandlerManager(svc, logger, headerAuth).SetupRoutes(router)

	return &apiTest{t: t, router: router, fx: testutil.NewFixtures(t, db)}
}

func (a *apiTest) do(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// courseWithModules seeds a course with two posted modules of one question each
func (a *apiTest) courseWithModules() (*models.Course, *models.Module, *models.Module, *models.Question, *models.Question) {
	course := a.fx.Course("Algebra")
	a.fx.Enroll(course.ID, teacher, models.CourseRoleTeacher)
	a.fx.Enroll(course.ID, student, models.CourseRoleStudent)
	m1 := a.fx.Module(course.ID, 1, true)
	q1 := a.fx.Question(m1.ID, 1, 10)
	m2 := a.fx.Module(course.ID, 2, true)
	q2 := a.fx.Question(m2.ID, 1, 10)
	return course, m1, m2, q1, q2
}

func TestHealth(t *testing.T) {
	api := newAPITest(t)
	w := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestUnauthenticated(t *testing.T) {
	api := newAPITest(t)
	w := api.do(http.MethodGet, "/api/v1/courses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCourseLifecycle(t *testing.T) {
	api := newAPITest(t)

	w := api.do(http.MethodPost, "/api/v1/courses", teacher, map[string]interface{}{"course_name": "Biology", "score_total": 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]interface{}](t, w)
	assert.Equal(t, "teacher", created["role"])
	id := uint(created["id"].(float64))

	w = api.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/users", id), teacher, map[string]string{"user_id": student, "role": "student"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/v1/courses", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]map[string]interface{}](t, w)
	require.Len(t, listed, 1)
	assert.Equal(t, "student", listed[0]["role"])

	w = api.do(http.MethodPut, fmt.Sprintf("/api/v1/courses/%d/zoom", id), student, map[string]string{"zoom_link": "https://zoom.us/j/1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPut, fmt.Sprintf("/api/v1/courses/%d/zoom", id), teacher, map[string]string{"zoom_link": "https://zoom.us/j/1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://zoom.us/j/1", decode[map[string]interface{}](t, w)["zoom_link"])

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/users?role=student", id), teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, w), 1)

	w = api.do(http.MethodDelete, fmt.Sprintf("/api/v1/courses/%d/users/%s", id, student), teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d", id), student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodDelete, fmt.Sprintf("/api/v1/courses/%d", id), teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d", id), teacher, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorMapping(t *testing.T) {
	api := newAPITest(t)
	_, _, m2, _, _ := api.courseWithModules()

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   interface{}
		status int
		kind   services.ErrorKind
	}{
		{"bad id", http.MethodGet, "/api/v1/courses/abc", teacher, nil, http.StatusBadRequest, services.KindInvalidInput},
		{"malformed body", http.MethodPost, "/api/v1/courses", teacher, "not an object", http.StatusBadRequest, services.KindInvalidInput},
		{"validation", http.MethodPost, "/api/v1/courses", teacher, map[string]string{}, http.StatusBadRequest, services.KindInvalidInput},
		{"missing course", http.MethodGet, "/api/v1/courses/999", teacher, nil, http.StatusNotFound, services.KindNotFound},
		{"locked module", http.MethodGet, fmt.Sprintf("/api/v1/modules/%d/questions", m2.ID), student, nil, http.StatusForbidden, services.KindLocked},
		{"outsider", http.MethodGet, fmt.Sprintf("/api/v1/modules/%d/questions", m2.ID), "nobody", nil, http.StatusForbidden, services.KindForbidden},
		{"locked module read", http.MethodGet, fmt.Sprintf("/api/v1/modules/%d", m2.ID), student, nil, http.StatusForbidden, services.KindLocked},
		{"missing module", http.MethodGet, "/api/v1/modules/999", teacher, nil, http.StatusNotFound, services.KindNotFound},
		{"missing question", http.MethodGet, "/api/v1/questions/999", teacher, nil, http.StatusNotFound, services.KindNotFound},
		{"student creates module", http.MethodPost, "/api/v1/modules", student, map[string]interface{}{"course_id": m2.CourseID, "module_name": "X"}, http.StatusForbidden, services.KindForbidden},
		{"enroll other role", http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/users", m2.CourseID), teacher, map[string]string{"user_id": student, "role": "teacher"}, http.StatusConflict, services.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(tt.method, tt.path, tt.user, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, decode[ErrorResponse](t, w).Kind)
		})
	}
}

func TestModuleGatingFlow(t *testing.T) {
	api := newAPITest(t)
	course, m1, m2, q1, q2 := api.courseWithModules()

	w := api.do(http.MethodGet, fmt.Sprintf("/api/v1/modules/%d/is-accessible", m2.ID), student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[services.ModuleStatusResponse](t, w)
	assert.False(t, status.Accessible)
	assert.Equal(t, models.AccessLocked, status.State)

	w = api.do(http.MethodPost, "/api/v1/submissions", student, map[string]interface{}{"question_id": q2.ID, "submission_response": "early"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/questions/%d", q2.ID), student, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, services.KindLocked, decode[ErrorResponse](t, w).Kind)

	w = api.do(http.MethodPost, "/api/v1/submissions", student, map[string]interface{}{"question_id": q1.ID, "module_id": m2.ID, "submission_response": "done"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := decode[models.Submission](t, w)
	assert.Equal(t, m1.ID, sub.ModuleID, "question's module wins over the client's")

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/modules/%d/questions", m2.ID), student, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/modules/%d", m2.ID), student, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, m2.ID, decode[models.Module](t, w).ID)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/questions/%d", q2.ID), student, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, q2.ID, decode[models.Question](t, w).ID)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/modules", course.ID), student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	modules := decode[[]services.ModuleResponse](t, w)
	require.Len(t, modules, 2)
	assert.True(t, modules[0].Completed)
	assert.Equal(t, models.AccessVisible, modules[1].State)
}

func TestGradeFlow(t *testing.T) {
	api := newAPITest(t)
	course, _, _, q1, _ := api.courseWithModules()

	w := api.do(http.MethodPost, "/api/v1/submissions", student, map[string]interface{}{"question_id": q1.ID, "submission_response": "x"})
	require.Equal(t, http.StatusCreated, w.Code)
	sub := decode[models.Submission](t, w)

	gradePath := fmt.Sprintf("/api/v1/submissions/%d/grade", sub.ID)
	w = api.do(http.MethodPost, gradePath, teacher, map[string]int{"score": 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, gradePath, student, map[string]int{"score": 10})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, gradePath, teacher, map[string]int{"score": 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[services.GradeResult](t, w)
	assert.Equal(t, 7, result.CourseGrade.Score)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/grades", course.ID), student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	grade := decode[services.CourseGradeResponse](t, w)
	assert.Equal(t, 7, grade.Score)
	assert.Equal(t, 10, grade.Total)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/submissions/users/%s/questions/%d", student, q1.ID), teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sub.ID, decode[models.Submission](t, w).ID)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/submissions?question_id=%d", q1.ID), teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[services.SubmissionListResponse](t, w).Total)

	w = api.do(http.MethodGet, "/api/v1/submissions?question_id=abc", teacher, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportGradebookEndpoint(t *testing.T) {
	api := newAPITest(t)
	course, _, _, _, _ := api.courseWithModules()

	w := api.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/grades/export", course.ID), student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/grades/export", course.ID), teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("course-%d-gradebook.xlsx", course.ID))

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Gradebook")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
