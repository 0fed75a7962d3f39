package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hack4impact-upenn/odaap-f25/internal/models"
)

func TestCourseCreate_CreatorBecomesTeacher(t *testing.T) {
	env := newTestEnv(t)

	course, err := env.svc.Course().Create(env.ctx, &CreateCourseRequest{Name: "Statistics", ScoreTotal: 100}, teacherID)
	require.NoError(t, err)
	assert.Equal(t, models.CourseRoleTeacher, course.Role)

	role, err := env.svc.Enrollment().RoleOf(env.ctx, course.ID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, models.CourseRoleTeacher, role)

	_, err = env.svc.Course().Create(env.ctx, &CreateCourseRequest{}, teacherID)
	requireKind(t, err, KindInvalidInput)
}

func TestCourseGetByID(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Geometry")

	got, err := env.svc.Course().GetByID(env.ctx, course.ID, studentID)
	require.NoError(t, err)
	assert.Equal(t, "Geometry", got.Name)
	assert.Equal(t, models.CourseRoleStudent, got.Role)

	_, err = env.svc.Course().GetByID(env.ctx, course.ID, outsider)
	requireKind(t, err, KindForbidden)

	_, err = env.svc.Course().GetByID(env.ctx, 404, studentID)
	requireKind(t, err, KindNotFound)
}

func TestCourseUpdate(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Draft name")

	name := "Final name"
	updated, err := env.svc.Course().Update(env.ctx, course.ID, &UpdateCourseRequest{Name: &name}, teacherID)
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	_, err = env.svc.Course().Update(env.ctx, course.ID, &UpdateCourseRequest{Name: &name}, studentID)
	requireKind(t, err, KindForbidden)
}

func TestCourseUpdateZoomLink(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Live")

	updated, err := env.svc.Course().UpdateZoomLink(env.ctx, course.ID, &ZoomLinkRequest{ZoomLink: "https://zoom.us/j/123"}, teacherID)
	require.NoError(t, err)
	require.NotNil(t, updated.ZoomLink)
	assert.Equal(t, "https://zoom.us/j/123", *updated.ZoomLink)

	cleared, err := env.svc.Course().UpdateZoomLink(env.ctx, course.ID, &ZoomLinkRequest{}, teacherID)
	require.NoError(t, err)
	assert.Nil(t, cleared.ZoomLink)

	_, err = env.svc.Course().UpdateZoomLink(env.ctx, course.ID, &ZoomLinkRequest{ZoomLink: "not a url"}, teacherID)
	requireKind(t, err, KindInvalidInput)

	_, err = env.svc.Course().UpdateZoomLink(env.ctx, course.ID, &ZoomLinkRequest{ZoomLink: "https://zoom.us/j/9"}, studentID)
	requireKind(t, err, KindForbidden)
}

func TestCourseDelete(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Short lived")
	q := env.fx.Question(env.fx.Module(course.ID, 1, true).ID, 1, 10)
	env.grade(t, q, studentID, 5)

	err := env.svc.Course().Delete(env.ctx, course.ID, studentID)
	requireKind(t, err, KindForbidden)

	require.NoError(t, env.svc.Course().Delete(env.ctx, course.ID, teacherID))

	_, err = env.svc.Course().GetByID(env.ctx, course.ID, teacherID)
	requireKind(t, err, KindNotFound)

	var grades int64
	require.NoError(t, env.db.Model(&models.UserCourseGrade{}).Count(&grades).Error)
	assert.Zero(t, grades)
}

func TestCourseMembers(t *testing.T) {
	env := newTestEnv(t)
	course := env.course("Members")

	_, err := env.svc.Course().AddMember(env.ctx, course.ID, &EnrollRequest{UserID: "student-3", Role: models.CourseRoleStudent}, studentID)
	requireKind(t, err, KindForbidden)

	_, err = env.svc.Course().AddMember(env.ctx, course.ID, &EnrollRequest{UserID: "student-3", Role: models.CourseRoleStudent}, teacherID)
	require.NoError(t, err)

	_, err = env.svc.Course().AddMember(env.ctx, course.ID, &EnrollRequest{UserID: "student-3", Role: "owner"}, teacherID)
	requireKind(t, err, KindInvalidInput)

	role := models.CourseRoleStudent
	members, err := env.svc.Course().ListMembers(env.ctx, course.ID, &role, teacherID)
	require.NoError(t, err)
	require.Len(t, members, 3)

	profiles := map[string]*models.User{}
	for _, m := range members {
		assert.Equal(t, models.CourseRoleStudent, m.Role)
		profiles[m.UserID] = m.User
	}
	require.NotNil(t, profiles[studentID])
	assert.Equal(t, "Sam Student", profiles[studentID].FullName)
	assert.Nil(t, profiles["student-3"], "unknown identity-provider users have no profile")

	all, err := env.svc.Course().ListMembers(env.ctx, course.ID, nil, teacherID)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	bad := models.CourseRole("guest")
	_, err = env.svc.Course().ListMembers(env.ctx, course.ID, &bad, teacherID)
	requireKind(t, err, KindInvalidInput)

	require.NoError(t, env.svc.Course().RemoveMember(env.ctx, course.ID, "student-3", teacherID))
	err = env.svc.Course().RemoveMember(env.ctx, course.ID, otherID, studentID)
	requireKind(t, err, KindForbidden)
}
