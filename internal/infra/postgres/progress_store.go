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

// ProgressStore persists progress documents as JSONB with a revision column
// enforcing optimistic versioning: a stale write affects zero rows and fails
// with domain.ErrRevisionConflict instead of silently losing an update.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) GetProgress(ctx context.Context, userID string) (domain.Progress, error) {
	var (
		revision int64
		raw      []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT revision, data FROM user_progress WHERE user_id=$1`, userID).Scan(&revision, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Progress{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.Progress{}, fmt.Errorf("load progress: %w", err)
	}
	var progress domain.Progress
	if err := json.Unmarshal(raw, &progress); err != nil {
		return domain.Progress{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	progress.Revision = revision
	return progress, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, p *domain.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	if p.Revision == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO user_progress (user_id, revision, data) VALUES ($1, 1, $2::jsonb)
			 ON CONFLICT (user_id) DO NOTHING`,
			p.UserID, string(data))
		if err != nil {
			return fmt.Errorf("insert progress: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrRevisionConflict
		}
		p.Revision = 1
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE user_progress SET revision=$1, data=$2::jsonb WHERE user_id=$3 AND revision=$4`,
		p.Revision+1, string(data), p.UserID, p.Revision)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRevisionConflict
	}
	p.Revision++
	return nil
}
