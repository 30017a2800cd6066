package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserCourse is the learner's active course enrollment.
type UserCourse struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	CourseStartDate time.Time `json:"course_start_date"`
	IsActive        bool      `json:"is_active"`
}

// Store reads course enrollments and accumulates daily speaking totals.
type Store interface {
	ActiveCourse(ctx context.Context, userID int64) (*UserCourse, error)
	AddSpeakingSeconds(ctx context.Context, userID, courseID int64, week, day int, date time.Time, seconds, goalSeconds int64) error
}

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) ActiveCourse(ctx context.Context, userID int64) (*UserCourse, error) {
	var uc UserCourse
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, course_start_date, is_active
		FROM user_courses
		WHERE user_id = $1 AND is_active = true
		ORDER BY course_start_date DESC
		LIMIT 1`,
		userID,
	).Scan(&uc.ID, &uc.UserID, &uc.CourseStartDate, &uc.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying active course: %w", err)
	}
	return &uc, nil
}

func (s *postgresStore) AddSpeakingSeconds(ctx context.Context, userID, courseID int64, week, day int, date time.Time, seconds, goalSeconds int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_progress (
			user_id, course_id, week_number, day_number, date,
			speaking_duration_seconds, speaking_completed, speaking_end_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $6 >= $7, CASE WHEN $6 >= $7 THEN NOW() END)
		ON CONFLICT (user_id, date) DO UPDATE SET
			speaking_duration_seconds = daily_progress.speaking_duration_seconds + EXCLUDED.speaking_duration_seconds,
			speaking_completed = daily_progress.speaking_completed
				OR daily_progress.speaking_duration_seconds + EXCLUDED.speaking_duration_seconds >= $7,
			speaking_end_time = CASE
				WHEN NOT daily_progress.speaking_completed
					AND daily_progress.speaking_duration_seconds + EXCLUDED.speaking_duration_seconds >= $7
				THEN NOW()
				ELSE daily_progress.speaking_end_time
			END`,
		userID, courseID, week, day, date, seconds, goalSeconds,
	)
	if err != nil {
		return fmt.Errorf("upserting daily progress: %w", err)
	}
	return nil
}
