package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"compliscore/internal/domain"
)

// QuestionStore reads and writes question documents stored as JSONB rows.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

func (s *QuestionStore) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	var question domain.Question
	if err := json.Unmarshal(raw, &question); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return question, nil
}

func (s *QuestionStore) ListQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var question domain.Question
		if err := json.Unmarshal(raw, &question); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		if filter.Matches(question) {
			out = append(out, question)
		}
	}
	return out, rows.Err()
}

// LoadQuestions satisfies the cache loader interfaces.
func (s *QuestionStore) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.ListQuestions(ctx, domain.QuestionFilter{})
}

func (s *QuestionStore) UpsertQuestion(ctx context.Context, q domain.Question) error {
	existing, err := s.GetQuestion(ctx, q.ID)
	switch {
	case err == nil:
		q.Version = existing.Version + 1
	case errors.Is(err, domain.ErrQuestionNotFound):
		if q.Version == 0 {
			q.Version = 1
		}
	default:
		return err
	}

	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO questions (id, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		q.ID, string(data))
	if err != nil {
		return fmt.Errorf("upsert question: %w", err)
	}
	return nil
}

// DeactivateQuestion flips the active flag; questions are never hard-deleted
// while historical answers may reference them.
func (s *QuestionStore) DeactivateQuestion(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE questions SET data = jsonb_set(data, '{active}', 'false') WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("deactivate question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}
