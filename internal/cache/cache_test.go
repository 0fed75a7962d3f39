package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedCourse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func newTestManager(t *testing.T) (*CacheManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheManager(client), mr
}

func TestCacheOrExecute_FetchesOnceThenHits(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return &cachedCourse{ID: 7, Name: "Algebra"}, nil
	}

	var first cachedCourse
	require.NoError(t, cm.Course.CacheOrExecute(ctx, CourseKey(7), &first, time.Minute, fetch))
	assert.Equal(t, "Algebra", first.Name)
	assert.True(t, mr.Exists("course:id:7"))

	var second cachedCourse
	require.NoError(t, cm.Course.CacheOrExecute(ctx, CourseKey(7), &second, time.Minute, fetch))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestCacheOrExecute_PropagatesFetchError(t *testing.T) {
	cm, mr := newTestManager(t)
	sentinel := errors.New("boom")

	var dest cachedCourse
	err := cm.Course.CacheOrExecute(context.Background(), CourseKey(1), &dest, time.Minute, func() (interface{}, error) {
		return nil, sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, mr.Exists("course:id:1"))
}

func TestInvalidateHelpers(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, cm.Course.Set(ctx, CourseKey(3), cachedCourse{ID: 3}, time.Minute))
	require.NoError(t, cm.Enrollment.Set(ctx, EnrollmentListKey("u1"), []uint{3}, time.Minute))
	require.NoError(t, cm.Enrollment.Set(ctx, EnrollmentListKey("u2"), []uint{3}, time.Minute))

	InvalidateCourseCache(ctx, cm, 3)
	assert.False(t, mr.Exists("course:id:3"))

	InvalidateEnrollmentCache(ctx, cm, "u1", "u2")
	assert.False(t, mr.Exists("enrollment:user:u1"))
	assert.False(t, mr.Exists("enrollment:user:u2"))
}

func TestClearAll_OnlyRemovesOwnPrefixes(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("other-service:key", "keep"))
	require.NoError(t, cm.Course.Set(ctx, CourseKey(1), cachedCourse{ID: 1}, time.Minute))
	require.NoError(t, cm.User.Set(ctx, "id:u1", map[string]string{"id": "u1"}, time.Minute))

	require.NoError(t, cm.ClearAll(ctx))
	assert.False(t, mr.Exists("course:id:1"))
	assert.False(t, mr.Exists("user:id:u1"))
	assert.True(t, mr.Exists("other-service:key"))
}

func TestCacheManager_WithoutClient(t *testing.T) {
	cm := NewCacheManager(nil)
	ctx := context.Background()

	assert.False(t, cm.Enabled())
	assert.ErrorIs(t, cm.HealthCheck(ctx), ErrCacheNotAvailable)

	var dest cachedCourse
	err := cm.Course.CacheOrExecute(ctx, CourseKey(1), &dest, time.Minute, func() (interface{}, error) {
		return cachedCourse{ID: 1, Name: "Direct"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Direct", dest.Name)
	assert.NoError(t, cm.ClearAll(ctx))
}

func TestInvalidatePattern_SpansScanBatches(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	for i := uint(1); i <= 250; i++ {
		require.NoError(t, cm.Course.Set(ctx, CourseKey(i), cachedCourse{ID: i}, time.Minute))
	}
	require.NoError(t, cm.Enrollment.Set(ctx, EnrollmentListKey("u1"), []uint{1}, time.Minute))

	require.NoError(t, cm.Course.InvalidatePattern(ctx, "id:*"))
	assert.False(t, mr.Exists("course:id:1"))
	assert.False(t, mr.Exists("course:id:250"))
	assert.True(t, mr.Exists("enrollment:user:u1"))
}
