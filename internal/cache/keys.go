package cache

import (
	"context"
	"fmt"
	"log/slog"
)

func CourseKey(courseID uint) string {
	return fmt.Sprintf("id:%d", courseID)
}

func EnrollmentListKey(userID string) string {
	return "user:" + userID
}

// InvalidateCourseCache drops the cached course row. Failures are logged; the entry still expires on its TTL.
func InvalidateCourseCache(ctx context.Context, cm *CacheManager, courseID uint) {
	if err := cm.Course.Delete(ctx, CourseKey(courseID)); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate course cache", "error", err, "course_id", courseID)
	}
}

// InvalidateEnrollmentCache drops the cached enrollment list of each user
func InvalidateEnrollmentCache(ctx context.Context, cm *CacheManager, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = EnrollmentListKey(id)
	}
	if err := cm.Enrollment.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate enrollment cache", "error", err, "users", len(userIDs))
	}
}
