package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
)

func (s PasswordResets) Put(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (email, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			token_hash = excluded.token_hash,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		strings.ToLower(strings.TrimSpace(email)), tokenHash, toNanos(expiresAt), toNanos(time.Now()))
	return err
}

func (s PasswordResets) Consume(ctx context.Context, email, tokenHash string, now time.Time) error {
	var expires int64
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM password_reset_tokens
		WHERE email = ? AND token_hash = ?
		RETURNING expires_at`, strings.ToLower(strings.TrimSpace(email)), tokenHash).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !now.Before(fromNanos(expires)) {
		return repository.ErrTokenExpired
	}
	return nil
}
