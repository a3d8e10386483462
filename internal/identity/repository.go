package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quizroom/quizroom/internal/models"
)

// Querier defines what the repository needs from the database layer.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository resolves usernames to avatar references.
type Repository struct {
	db Querier
}

// NewRepository creates a new identity repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// Avatar returns the user's avatar reference, or the default when the user
// is unknown or has none.
func (r *Repository) Avatar(ctx context.Context, username string) (string, error) {
	var avatar *string
	err := r.db.QueryRow(ctx,
		`SELECT avatar FROM users WHERE username = $1`,
		username,
	).Scan(&avatar)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultAvatar, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up avatar: %w", err)
	}
	if avatar == nil || *avatar == "" {
		return models.DefaultAvatar, nil
	}
	return *avatar, nil
}
