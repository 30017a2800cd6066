package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists generated speaking reports.
type Repository interface {
	SaveReport(ctx context.Context, r *Report) error
	LatestReport(ctx context.Context, userID int64) (*Report, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) SaveReport(ctx context.Context, rep *Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO speaking_reports (user_id, report, turn_count, word_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		rep.UserID, payload, rep.TurnCount, rep.WordCount,
	).Scan(&rep.ID, &rep.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

func (r *postgresRepository) LatestReport(ctx context.Context, userID int64) (*Report, error) {
	var payload []byte
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT id, report
		FROM speaking_reports
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		userID,
	).Scan(&id, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest report: %w", err)
	}

	var rep Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	rep.ID = id
	return &rep, nil
}
