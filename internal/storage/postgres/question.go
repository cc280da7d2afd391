package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/brainduel/internal/game/question"
)

// QuestionRepository reads and imports the question bank.
type QuestionRepository struct {
	db *pgxpool.Pool
}

// NewQuestionRepository creates a QuestionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewQuestionRepository(db *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// All returns every stored question ordered by id.
func (r *QuestionRepository) All(ctx context.Context) ([]question.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, prompt, option1, option2, option3, option4, answer
		 FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying questions: %w", err)
	}
	defer rows.Close()

	var out []question.Question
	for rows.Next() {
		var q question.Question
		var answer int16
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &answer); err != nil {
			return nil, fmt.Errorf("scanning question row: %w", err)
		}
		q.Answer = int32(answer)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating questions: %w", err)
	}
	return out, nil
}

// Import inserts questions in one batch transaction.
//
// Precondition: every question passes Validate.
// Postcondition: Either all questions are stored or none are.
func (r *QuestionRepository) Import(ctx context.Context, qs []question.Question) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning question import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, q := range qs {
		batch.Queue(
			`INSERT INTO questions (prompt, option1, option2, option3, option4, answer)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			q.Prompt, q.Options[0], q.Options[1], q.Options[2], q.Options[3], int16(q.Answer),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("inserting questions: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing question import: %w", err)
	}
	return len(qs), nil
}
