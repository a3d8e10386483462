package questions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quizroom/quizroom/internal/models"
)

// Querier defines what the repository needs from the database layer.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository is the question bank backed by Postgres.
type Repository struct {
	db Querier
}

// NewRepository creates a new question bank repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// SampleRandom returns up to n questions sampled without replacement.
func (r *Repository) SampleRandom(ctx context.Context, n int) ([]models.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, text, answers, correct_index, media FROM questions ORDER BY random() LIMIT $1`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sample questions: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		var q models.Question
		var media []byte
		if err := rows.Scan(&q.ID, &q.Text, &q.Answers, &q.CorrectIndex, &media); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if len(media) > 0 {
			if err := json.Unmarshal(media, &q.Media); err != nil {
				return nil, fmt.Errorf("failed to decode question media: %w", err)
			}
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return out, nil
}
