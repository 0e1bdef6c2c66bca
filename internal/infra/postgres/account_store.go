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

// AccountStore persists accounts as JSONB documents keyed by email.
type AccountStore struct {
	pool *pgxpool.Pool
}

func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM accounts WHERE email=$1`, email).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}
	var acct domain.Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return domain.Account{}, fmt.Errorf("unmarshal account: %w", err)
	}
	return acct, nil
}

func (s *AccountStore) Add(ctx context.Context, acct domain.Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (email, data) VALUES ($1, $2::jsonb) ON CONFLICT (email) DO NOTHING`,
		acct.Email, string(data))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEmailTaken
	}
	return nil
}

func (s *AccountStore) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM accounts ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		var acct domain.Account
		if err := json.Unmarshal(raw, &acct); err != nil {
			return nil, fmt.Errorf("unmarshal account: %w", err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}
