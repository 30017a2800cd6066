package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Conversation is one persisted session transcript.
type Conversation struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	RoomName        string      `json:"room_name"`
	SessionKind     string      `json:"session_kind"`
	Transcript      *Transcript `json:"transcript"`
	DurationSeconds int64       `json:"duration_seconds"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Repository persists finished conversations.
type Repository interface {
	SaveConversation(ctx context.Context, conv *Conversation) error
	RecentConversations(ctx context.Context, userID int64, limit int) ([]Conversation, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) SaveConversation(ctx context.Context, conv *Conversation) error {
	payload, err := json.Marshal(conv.Transcript)
	if err != nil {
		return fmt.Errorf("marshaling transcript: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO conversations (user_id, room_name, session_kind, transcript, duration_seconds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		conv.UserID, conv.RoomName, conv.SessionKind, payload, conv.DurationSeconds,
	).Scan(&conv.ID, &conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

func (r *postgresRepository) RecentConversations(ctx context.Context, userID int64, limit int) ([]Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, room_name, session_kind, transcript, duration_seconds, created_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var conv Conversation
		var payload []byte
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.RoomName, &conv.SessionKind,
			&payload, &conv.DurationSeconds, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		if len(payload) > 0 {
			var tr Transcript
			if err := json.Unmarshal(payload, &tr); err == nil {
				conv.Transcript = &tr
			}
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return convs, nil
}
