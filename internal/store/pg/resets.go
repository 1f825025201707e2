package pg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/jackc/pgx/v5"
)

func (s PasswordResets) Put(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO password_reset_tokens (email, token_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email)
		DO UPDATE SET token_hash = EXCLUDED.token_hash,
		              expires_at = EXCLUDED.expires_at,
		              created_at = now()`,
		strings.ToLower(strings.TrimSpace(email)), tokenHash, expiresAt.UTC())
	return err
}

func (s PasswordResets) Consume(ctx context.Context, email, tokenHash string, now time.Time) error {
	var expiresAt time.Time
	err := s.pool.QueryRow(ctx, `
		DELETE FROM password_reset_tokens
		WHERE email = $1 AND token_hash = $2
		RETURNING expires_at`, strings.ToLower(strings.TrimSpace(email)), tokenHash).Scan(&expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !now.Before(expiresAt) {
		return repository.ErrTokenExpired
	}
	return nil
}
