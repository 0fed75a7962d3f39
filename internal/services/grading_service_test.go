package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hack4impact-upenn/odaap-f25/internal/events"
	"github.com/hack4impact-upenn/odaap-f25/internal/models"
	"github.com/hack4impact-upenn/odaap-f25/internal/repositories"
)

func TestRecordGrade_RegradeOverwrites(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Algebra")
	m := env.fx.Module(course.ID, 1, true)
	q := env.fx.Question(m.ID, 1, 10)

	env.grade(t, q, studentID, 4)
	result := env.grade(t, q, studentID, 9)

	assert.Equal(t, 9, result.QuestionGrade.Score)
	assert.Equal(t, 10, result.QuestionGrade.Total)
	require.NotNil(t, result.ModuleGrade)
	assert.Equal(t, 9, result.ModuleGrade.Score)
	require.NotNil(t, result.CourseGrade)
	assert.Equal(t, 9, result.CourseGrade.Score)

	var rows int64
	require.NoError(t, env.db.Model(&models.UserQuestionGrade{}).Where("question_id = ? AND user_id = ?", q.ID, studentID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestRecordGrade_RollupsOnlyCountGradedQuestions(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Biology")
	m1 := env.fx.Module(course.ID, 1, true)
	q1 := env.fx.Question(m1.ID, 1, 10)
	env.fx.Question(m1.ID, 2, 20)
	m2 := env.fx.Module(course.ID, 2, true)
	q3 := env.fx.Question(m2.ID, 1, 5)

	result := env.grade(t, q1, studentID, 7)
	assert.Equal(t, 7, result.ModuleGrade.Score)
	assert.Equal(t, 10, result.ModuleGrade.Total, "ungraded questions stay out of the total")

	result = env.grade(t, q3, studentID, 5)
	assert.Equal(t, 5, result.ModuleGrade.Score)
	assert.Equal(t, 5, result.ModuleGrade.Total)
	assert.Equal(t, 12, result.CourseGrade.Score)
	assert.Equal(t, 15, result.CourseGrade.Total)

	_, err := env.repo.Grade().GetCourseGrade(env.ctx, nil, course.ID, otherID)
	assert.Error(t, err, "other learners get no rollup rows")
}

func TestRecordGrade_ExplicitTotalOverridesQuestion(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Chemistry")
	m := env.fx.Module(course.ID, 1, true)
	q := env.fx.Question(m.ID, 1, 10)

	total := 4
	result, err := env.svc.Grading().RecordGrade(env.ctx, RecordGradeInput{QuestionID: q.ID, UserID: studentID, Score: 3, Total: &total, GradedBy: teacherID})
	require.NoError(t, err)
	assert.Equal(t, 4, result.QuestionGrade.Total)
	assert.Equal(t, 4, result.CourseGrade.Total)
}

func TestRecordGrade_RejectsInvalidScoresWithoutWriting(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Physics")
	m := env.fx.Module(course.ID, 1, true)
	q := env.fx.Question(m.ID, 1, 10)

	negative := -1
	tests := []struct {
		name  string
		input RecordGradeInput
	}{
		{name: "score above total", input: RecordGradeInput{QuestionID: q.ID, UserID: studentID, Score: 11}},
		{name: "negative score", input: RecordGradeInput{QuestionID: q.ID, UserID: studentID, Score: -2}},
		{name: "negative total", input: RecordGradeInput{QuestionID: q.ID, UserID: studentID, Score: 0, Total: &negative}},
		{name: "missing user", input: RecordGradeInput{QuestionID: q.ID, Score: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Grading().RecordGrade(env.ctx, tt.input)
			requireKind(t, err, KindInvalidInput)
		})
	}

	for _, table := range []interface{}{&models.UserQuestionGrade{}, &models.UserModuleGrade{}, &models.UserCourseGrade{}} {
		var n int64
		require.NoError(t, env.db.Model(table).Count(&n).Error)
		assert.Zero(t, n, "%T", table)
	}
	assert.Empty(t, env.publisher.EventsOfType(events.GradeRecorded))

	env.grade(t, q, studentID, 6)
	_, err := env.svc.Grading().RecordGrade(env.ctx, RecordGradeInput{QuestionID: q.ID, UserID: studentID, Score: 50})
	requireKind(t, err, KindInvalidInput)

	stored, err := env.repo.Grade().GetQuestionGrade(env.ctx, nil, q.ID, studentID)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.Score, "rejected regrade leaves the previous grade")
}

func TestRecordGrade_MissingQuestion(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Grading().RecordGrade(env.ctx, RecordGradeInput{QuestionID: 77, UserID: studentID, Score: 1})
	requireKind(t, err, KindNotFound)
}

func TestRecordGrade_ConcurrentGradesInOneModuleAllLand(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Concurrency")
	m := env.fx.Module(course.ID, 1, true)
	m2 := env.fx.Module(course.ID, 2, true)

	var questions []*models.Question
	for i := 0; i < 4; i++ {
		questions = append(questions, env.fx.Question(m.ID, i, 10))
	}
	questions = append(questions, env.fx.Question(m2.ID, 0, 10))

	var wg sync.WaitGroup
	errs := make(chan error, len(questions)*2)
	for _, q := range questions {
		for _, user := range []string{studentID, otherID} {
			wg.Add(1)
			go func(q *models.Question, user string) {
				defer wg.Done()
				_, err := env.svc.Grading().RecordGrade(env.ctx, RecordGradeInput{QuestionID: q.ID, UserID: user, Score: 3, GradedBy: teacherID})
				errs <- err
			}(q, user)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, user := range []string{studentID, otherID} {
		moduleGrade, err := env.repo.Grade().GetModuleGrade(env.ctx, nil, m.ID, user)
		require.NoError(t, err)
		assert.Equal(t, 12, moduleGrade.Score, user)
		assert.Equal(t, 40, moduleGrade.Total, user)

		courseGrade, err := env.repo.Grade().GetCourseGrade(env.ctx, nil, course.ID, user)
		require.NoError(t, err)
		assert.Equal(t, 15, courseGrade.Score, user)
		assert.Equal(t, 50, courseGrade.Total, user)
	}
}

func TestRecordGrade_PublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Events")
	m := env.fx.Module(course.ID, 1, true)
	q := env.fx.Question(m.ID, 1, 10)

	env.grade(t, q, studentID, 8)

	published := env.publisher.EventsOfType(events.GradeRecorded)
	require.Len(t, published, 1)
	data, ok := published[0].Data.(events.GradeRecordedData)
	require.True(t, ok)
	assert.Equal(t, q.ID, data.QuestionID)
	assert.Equal(t, course.ID, data.CourseID)
	assert.Equal(t, studentID, data.UserID)
	assert.Equal(t, teacherID, data.GradedBy)
	assert.Equal(t, 8, data.ModuleScore)
	assert.Equal(t, 10, data.CourseTotal)
}

func TestRecordGrade_PublishFailureIsNotReturned(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Broker down")
	m := env.fx.Module(course.ID, 1, true)
	q := env.fx.Question(m.ID, 1, 10)

	env.publisher.Err = errors.New("broker unavailable")
	result := env.grade(t, q, studentID, 2)
	assert.Equal(t, 2, result.QuestionGrade.Score)
	assert.NotEmpty(t, logLines(env.logs, "Failed to publish grade event"))
}

func TestGradeSubmission(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Deadlines")
	due := time.Now().UTC().Add(-time.Hour)
	m := env.fx.Module(course.ID, 1, true)
	m.DueDate = &due
	require.NoError(t, env.db.Save(m).Error)
	q := env.fx.Question(m.ID, 1, 10)

	sub := env.submit(t, q, studentID)
	score := 7

	_, err := env.svc.Grading().GradeSubmission(env.ctx, sub.ID, &GradeRequest{Score: &score}, otherID)
	requireKind(t, err, KindForbidden)

	result, err := env.svc.Grading().GradeSubmission(env.ctx, sub.ID, &GradeRequest{Score: &score}, teacherID)
	require.NoError(t, err)
	assert.Equal(t, studentID, result.QuestionGrade.UserID)
	assert.True(t, result.QuestionGrade.IsOverdue, "submitted after the due date")

	onTime := false
	result, err = env.svc.Grading().GradeSubmission(env.ctx, sub.ID, &GradeRequest{Score: &score, IsOverdue: &onTime}, teacherID)
	require.NoError(t, err)
	assert.False(t, result.QuestionGrade.IsOverdue)

	_, err = env.svc.Grading().GradeSubmission(env.ctx, sub.ID, &GradeRequest{}, teacherID)
	requireKind(t, err, KindInvalidInput)

	_, err = env.svc.Grading().GradeSubmission(env.ctx, 999, &GradeRequest{Score: &score}, teacherID)
	requireKind(t, err, KindNotFound)
}

func TestGetCourseGrade(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Report")
	m1 := env.fx.Module(course.ID, 1, true)
	q1 := env.fx.Question(m1.ID, 1, 10)
	m2 := env.fx.Module(course.ID, 2, true)
	env.fx.Question(m2.ID, 1, 10)
	env.fx.Module(course.ID, 3, false)

	env.grade(t, q1, studentID, 6)

	own, err := env.svc.Grading().GetCourseGrade(env.ctx, course.ID, "", studentID)
	require.NoError(t, err)
	assert.True(t, own.Graded)
	assert.Equal(t, 6, own.Score)
	require.Len(t, own.Modules, 2, "students only see posted modules")
	assert.True(t, own.Modules[0].Graded)
	assert.False(t, own.Modules[1].Graded)

	viaTeacher, err := env.svc.Grading().GetCourseGrade(env.ctx, course.ID, studentID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, 6, viaTeacher.Score)
	assert.Len(t, viaTeacher.Modules, 3)

	ungraded, err := env.svc.Grading().GetCourseGrade(env.ctx, course.ID, otherID, otherID)
	require.NoError(t, err)
	assert.False(t, ungraded.Graded)

	_, err = env.svc.Grading().GetCourseGrade(env.ctx, course.ID, studentID, otherID)
	requireKind(t, err, KindForbidden)

	_, err = env.svc.Grading().GetCourseGrade(env.ctx, course.ID, "", outsider)
	requireKind(t, err, KindForbidden)

	_, err = env.svc.Grading().GetCourseGrade(env.ctx, 404, "", studentID)
	requireKind(t, err, KindNotFound)
}

func TestQuestionDelete_RecomputesRollups(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Cleanup")
	m := env.fx.Module(course.ID, 1, true)
	q1 := env.fx.Question(m.ID, 1, 10)
	q2 := env.fx.Question(m.ID, 2, 20)

	env.grade(t, q1, studentID, 5)
	env.grade(t, q2, studentID, 15)

	require.NoError(t, env.svc.Question().Delete(env.ctx, q2.ID, teacherID))

	moduleGrade, err := env.repo.Grade().GetModuleGrade(env.ctx, nil, m.ID, studentID)
	require.NoError(t, err)
	assert.Equal(t, 5, moduleGrade.Score)
	assert.Equal(t, 10, moduleGrade.Total)

	require.NoError(t, env.svc.Question().Delete(env.ctx, q1.ID, teacherID))

	_, err = env.repo.Grade().GetModuleGrade(env.ctx, nil, m.ID, studentID)
	assert.Error(t, err, "rollups with nothing graded are removed")
	_, err = env.repo.Grade().GetCourseGrade(env.ctx, nil, course.ID, studentID)
	assert.Error(t, err)
}

func TestModuleDelete_RecomputesCourseRollup(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Cleanup")
	m1 := env.fx.Module(course.ID, 1, true)
	q1 := env.fx.Question(m1.ID, 1, 10)
	m2 := env.fx.Module(course.ID, 2, true)
	q2 := env.fx.Question(m2.ID, 1, 10)

	env.grade(t, q1, studentID, 4)
	env.grade(t, q2, studentID, 9)

	require.NoError(t, env.svc.Module().Delete(env.ctx, m2.ID, teacherID))

	courseGrade, err := env.repo.Grade().GetCourseGrade(env.ctx, nil, course.ID, studentID)
	require.NoError(t, err)
	assert.Equal(t, 4, courseGrade.Score)
	assert.Equal(t, 10, courseGrade.Total)
}

func TestRemoveAndRecompute_FailedRemovalRollsBack(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Rollback")
	m := env.fx.Module(course.ID, 1, true)
	q1 := env.fx.Question(m.ID, 1, 10)
	q2 := env.fx.Question(m.ID, 2, 20)

	env.grade(t, q1, studentID, 5)
	env.grade(t, q2, studentID, 15)

	boom := errors.New("boom")
	err := env.svc.Grading().RemoveAndRecompute(env.ctx, course.ID, func(txRepo repositories.Repository) error {
		if err := txRepo.Question().Delete(env.ctx, nil, q2.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = env.repo.Question().GetByID(env.ctx, nil, q2.ID)
	require.NoError(t, err, "question delete is rolled back")

	moduleGrade, err := env.repo.Grade().GetModuleGrade(env.ctx, nil, m.ID, studentID)
	require.NoError(t, err)
	assert.Equal(t, 20, moduleGrade.Score)
	assert.Equal(t, 30, moduleGrade.Total)
}

func TestModuleDelete_WaitsForGradeLock(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Locked")
	m1 := env.fx.Module(course.ID, 1, true)
	q1 := env.fx.Question(m1.ID, 1, 10)
	m2 := env.fx.Module(course.ID, 2, true)
	q2 := env.fx.Question(m2.ID, 1, 10)

	env.grade(t, q1, studentID, 4)
	env.grade(t, q2, studentID, 9)

	grading := env.svc.Grading().(*gradingService)
	unlock, err := grading.locks.Lock(env.ctx, gradeLockKey(course.ID, studentID))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(env.ctx, 50*time.Millisecond)
	defer cancel()
	err = env.svc.Module().Delete(ctx, m2.ID, teacherID)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = env.repo.Module().GetByID(env.ctx, nil, m2.ID)
	require.NoError(t, err, "nothing is deleted while a grade of the course is being written")
	courseGrade, err := env.repo.Grade().GetCourseGrade(env.ctx, nil, course.ID, studentID)
	require.NoError(t, err)
	assert.Equal(t, 13, courseGrade.Score)

	unlock()
	require.NoError(t, env.svc.Module().Delete(env.ctx, m2.ID, teacherID))

	courseGrade, err = env.repo.Grade().GetCourseGrade(env.ctx, nil, course.ID, studentID)
	require.NoError(t, err)
	assert.Equal(t, 4, courseGrade.Score)
	assert.Equal(t, 10, courseGrade.Total)
}

func TestRecomputeAll_RepairsDrift(t *testing.T) {
	env := newTestEnv(t)
	a := env.course("A")
	b := env.course("B")
	qa := env.fx.Question(env.fx.Module(a.ID, 1, true).ID, 1, 10)
	qb := env.fx.Question(env.fx.Module(b.ID, 1, true).ID, 1, 10)

	env.grade(t, qa, studentID, 3)
	env.grade(t, qa, otherID, 4)
	env.grade(t, qb, studentID, 5)

	require.NoError(t, env.db.Model(&models.UserCourseGrade{}).Where("course_id = ?", a.ID).Update("score", 999).Error)
	require.NoError(t, env.db.Model(&models.UserModuleGrade{}).Where("user_id = ?", otherID).Update("total", 1).Error)
	stale := &models.UserCourseGrade{CourseID: b.ID, UserID: outsider, Score: 1, Total: 1}
	require.NoError(t, env.db.Create(stale).Error)

	visited, err := env.svc.Grading().RecomputeAll(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, visited)

	for user, want := range map[string]int{studentID: 3, otherID: 4} {
		g, err := env.repo.Grade().GetCourseGrade(env.ctx, nil, a.ID, user)
		require.NoError(t, err)
		assert.Equal(t, want, g.Score, user)
	}
	mg, err := env.repo.Grade().GetModuleGrade(env.ctx, nil, qa.ModuleID, otherID)
	require.NoError(t, err)
	assert.Equal(t, 10, mg.Total)

	_, err = env.repo.Grade().GetCourseGrade(env.ctx, nil, b.ID, outsider)
	assert.Error(t, err, "rollups without question grades are dropped")
}

func TestRecomputeAll_StopsOnCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Cancelled")
	q := env.fx.Question(env.fx.Module(course.ID, 1, true).ID, 1, 10)
	env.grade(t, q, studentID, 1)

	ctx, cancel := context.WithCancel(env.ctx)
	cancel()
	_, err := env.svc.Grading().RecomputeAll(ctx)
	assert.Error(t, err)
}

func TestCheckScore(t *testing.T) {
	tests := []struct {
		score, total int
		ok           bool
	}{
		{0, 0, true},
		{5, 10, true},
		{10, 10, true},
		{11, 10, false},
		{-1, 10, false},
		{0, -1, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.score, tt.total), func(t *testing.T) {
			err := checkScore(tt.score, tt.total)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidInput)
			}
		})
	}
}
