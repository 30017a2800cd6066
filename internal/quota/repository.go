package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the durable side of the quota engine: the usage ledger and the
// subscription snapshot.
type Store interface {
	LifetimeCallSeconds(ctx context.Context, userID int64) (int64, error)
	DailyUsage(ctx context.Context, userID int64, day time.Time) (DailyUsage, error)
	ActiveSubscription(ctx context.Context, userID int64) (*Subscription, error)
	RecordUsage(ctx context.Context, rec UsageRecord) error
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates the PostgreSQL-backed quota store.
func NewStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) LifetimeCallSeconds(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(duration_seconds), 0)
		 FROM lifetime_call_usage
		 WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing lifetime call usage: %w", err)
	}
	return total, nil
}

func (s *postgresStore) DailyUsage(ctx context.Context, userID int64, day time.Time) (DailyUsage, error) {
	var usage DailyUsage
	err := s.pool.QueryRow(ctx,
		`SELECT practice_seconds, roleplay_seconds
		 FROM daily_usage
		 WHERE user_id = $1 AND usage_date = $2`,
		userID, day.UTC().Truncate(24*time.Hour),
	).Scan(&usage.PracticeSeconds, &usage.RoleplaySeconds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DailyUsage{}, nil
		}
		return DailyUsage{}, fmt.Errorf("querying daily usage: %w", err)
	}
	return usage, nil
}

func (s *postgresStore) ActiveSubscription(ctx context.Context, userID int64) (*Subscription, error) {
	sub := &Subscription{}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, plan_type, status, start_date, end_date
		 FROM subscriptions
		 WHERE user_id = $1 AND status = 'active' AND end_date > NOW()
		 ORDER BY created_at DESC
		 LIMIT 1`, userID,
	).Scan(&sub.UserID, &sub.PlanType, &sub.Status, &sub.StartDate, &sub.EndDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying active subscription: %w", err)
	}
	return sub, nil
}

func (s *postgresStore) RecordUsage(ctx context.Context, rec UsageRecord) error {
	switch rec.Kind {
	case KindCall:
		_, err := s.pool.Exec(ctx,
			`INSERT INTO lifetime_call_usage (user_id, duration_seconds)
			 VALUES ($1, $2)`,
			rec.UserID, rec.DurationSeconds)
		if err != nil {
			return fmt.Errorf("inserting call usage: %w", err)
		}
		return nil

	case KindPractice, KindRoleplay:
		column := "practice_seconds"
		if rec.Kind == KindRoleplay {
			column = "roleplay_seconds"
		}
		// Column name is one of two compile-time constants, safe to splice.
		query := fmt.Sprintf(
			`INSERT INTO daily_usage (user_id, usage_date, %[1]s, total_seconds)
			 VALUES ($1, $2, $3, $3)
			 ON CONFLICT (user_id, usage_date) DO UPDATE
			 SET %[1]s = daily_usage.%[1]s + $3,
			     total_seconds = daily_usage.total_seconds + $3,
			     updated_at = NOW()`, column)
		_, err := s.pool.Exec(ctx, query,
			rec.UserID, rec.Day.UTC().Truncate(24*time.Hour), rec.DurationSeconds)
		if err != nil {
			return fmt.Errorf("upserting %s usage: %w", rec.Kind, err)
		}
		return nil
	}

	return fmt.Errorf("unsupported session kind %q", rec.Kind)
}
