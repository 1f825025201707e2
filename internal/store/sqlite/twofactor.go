package sqlite

import (
	"context"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
)

func (s TwoFactor) SetPendingSecret(ctx context.Context, userID string, secretEnc []byte) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_secret = ?, two_factor_recovery_codes = NULL, two_factor_last_step = NULL, updated_at = ?
		WHERE id = ? AND two_factor_confirmed_at IS NULL`, nullableText(secretEnc), toNanos(time.Now()), userID)
	if err != nil {
		return err
	}
	if n, _ := affected(res); n == 0 {
		return s.staleOrMissing(ctx, userID)
	}
	return nil
}

func (s TwoFactor) Confirm(ctx context.Context, userID string, secretEnc, recoveryEnc []byte, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_confirmed_at = ?, two_factor_recovery_codes = ?, updated_at = ?
		WHERE id = ? AND two_factor_secret = ? AND two_factor_confirmed_at IS NULL`,
		toNanos(at), nullableText(recoveryEnc), toNanos(time.Now()), userID, string(secretEnc))
	if err != nil {
		return err
	}
	if n, _ := affected(res); n == 0 {
		return s.staleOrMissing(ctx, userID)
	}
	return nil
}

func (s TwoFactor) Clear(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_secret = NULL, two_factor_confirmed_at = NULL, two_factor_recovery_codes = NULL,
		    two_factor_last_step = NULL, updated_at = ?
		WHERE id = ?`, toNanos(time.Now()), userID)
	if err != nil {
		return err
	}
	if n, _ := affected(res); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s TwoFactor) SwapRecoveryCodes(ctx context.Context, userID string, expectedEnc, newEnc []byte) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_recovery_codes = ?, updated_at = ?
		WHERE id = ? AND two_factor_confirmed_at IS NOT NULL AND two_factor_recovery_codes = ?`,
		nullableText(newEnc), toNanos(time.Now()), userID, string(expectedEnc))
	if err != nil {
		return err
	}
	if n, _ := affected(res); n == 0 {
		return s.staleOrMissing(ctx, userID)
	}
	return nil
}

func (s TwoFactor) ClaimStep(ctx context.Context, userID string, step int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_last_step = ?, updated_at = ?
		WHERE id = ? AND two_factor_confirmed_at IS NOT NULL
		  AND (two_factor_last_step IS NULL OR two_factor_last_step < ?)`,
		step, toNanos(time.Now()), userID, step)
	if err != nil {
		return err
	}
	if n, _ := affected(res); n == 0 {
		return s.staleOrMissing(ctx, userID)
	}
	return nil
}

func (s TwoFactor) staleOrMissing(ctx context.Context, userID string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStale
}
