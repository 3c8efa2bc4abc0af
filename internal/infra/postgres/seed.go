package postgres

import (
	"context"
	"fmt"
	"time"

	"ambient-quiz-service/internal/app"
	"ambient-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID        string      `bun:"id,pk"`
	Title     string      `bun:"title,notnull"`
	Data      domain.Quiz `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time   `bun:"updated_at,notnull"`
}

// Seed upserts quizzes into the quizzes table. Each quiz must carry a valid
// tier table; nothing is written if any quiz is rejected.
func Seed(ctx context.Context, db *bun.DB, quizzes ...domain.Quiz) error {
	rows := make([]quizRow, 0, len(quizzes))
	now := time.Now().UTC()
	for _, quiz := range quizzes {
		if quiz.ID == "" {
			return &domain.ValidationError{Field: "quiz.id", Reason: "must not be empty"}
		}
		if err := quiz.Validate(); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if _, err := app.NewTierTable(quiz.Tiers, len(quiz.Questions)); err != nil {
			return fmt.Errorf("seed quiz %q: %w", quiz.ID, err)
		}
		rows = append(rows, quizRow{ID: quiz.ID, Title: quiz.Title, Data: quiz, UpdatedAt: now})
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed quizzes: %w", err)
	}
	return nil
}
