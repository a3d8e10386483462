package chat

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/quizroom/quizroom/internal/models"
)

// Querier defines what the repository needs from the database layer.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository persists the per-room chat log with creation-time ordering.
type Repository struct {
	db Querier
}

// NewRepository creates a new chat repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// Append stores one chat message. Callers treat a failure here as
// non-fatal: the broadcast proceeds and durability degrades.
func (r *Repository) Append(ctx context.Context, msg models.ChatMessage) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO messages (room, username, message, created_at) VALUES ($1, $2, $3, $4)`,
		msg.Room, msg.User, msg.Message, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

// History returns the room's chat log ordered by creation time.
func (r *Repository) History(ctx context.Context, room string) ([]models.ChatMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT username, message, created_at FROM messages WHERE room = $1 ORDER BY created_at ASC`,
		room,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var history []models.ChatMessage
	for rows.Next() {
		msg := models.ChatMessage{Room: room}
		if err := rows.Scan(&msg.User, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		history = append(history, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	return history, nil
}
