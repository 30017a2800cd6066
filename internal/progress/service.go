package progress

import (
	"context"
	"log/slog"
	"time"
)

// Service accumulates speaking time against the learner's active course.
// Each calendar day maps to a (week, day) pair counted from the course start;
// once the day's total crosses the speaking goal the day is marked complete.
type Service struct {
	store       Store
	goalSeconds int64
	now         func() time.Time
}

func NewService(store Store, goalSeconds int64) *Service {
	return &Service{store: store, goalSeconds: goalSeconds, now: time.Now}
}

// RecordSpeaking adds a finished session's duration to today's course
// progress. A user without an active course is skipped, not an error.
func (s *Service) RecordSpeaking(ctx context.Context, userID, durationSeconds int64) error {
	if durationSeconds <= 0 {
		return nil
	}

	course, err := s.store.ActiveCourse(ctx, userID)
	if err != nil {
		return err
	}
	if course == nil {
		slog.Debug("progress: no active course", "user_id", userID)
		return nil
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	week, day := coursePosition(course.CourseStartDate, today)
	return s.store.AddSpeakingSeconds(ctx, userID, course.ID, week, day, today, durationSeconds, s.goalSeconds)
}

// coursePosition maps a calendar date to its 1-based week and day number
// within the course. Dates before the course start count as week 1, day 1.
func coursePosition(start, date time.Time) (week, day int) {
	days := int(date.Sub(start.UTC().Truncate(24*time.Hour)).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days/7 + 1, days%7 + 1
}
