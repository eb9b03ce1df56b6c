package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"live-quiz-service/internal/domain"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID           int      `bun:"id,pk"`
	Position     int      `bun:"position,notnull"`
	Text         string   `bun:"text,notnull"`
	Options      []string `bun:"options,type:jsonb,notnull"`
	CorrectIndex int      `bun:"correct_index,notnull"`
}

// OpenBun opens a bun handle over pgdriver for migrations and imports.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// ImportQuestions upserts the bank by id. Positions follow slice order so the loader returns the
// questions in the order they were authored.
func ImportQuestions(ctx context.Context, db *bun.DB, questions []domain.Question) (int, error) {
	if len(questions) == 0 {
		return 0, domain.ErrNoQuestions
	}
	rows := make([]questionRow, len(questions))
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return 0, err
		}
		rows[i] = questionRow{
			ID:           q.ID,
			Position:     i,
			Text:         q.Text,
			Options:      q.Options,
			CorrectIndex: q.Correct,
		}
	}

	_, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("position = EXCLUDED.position").
		Set("text = EXCLUDED.text").
		Set("options = EXCLUDED.options").
		Set("correct_index = EXCLUDED.correct_index").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("import questions: %w", err)
	}
	return len(rows), nil
}
