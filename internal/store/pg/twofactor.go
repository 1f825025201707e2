package pg

import (
	"context"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
)

func (s TwoFactor) SetPendingSecret(ctx context.Context, userID string, secretEnc []byte) error {
	if !validID(userID) {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET two_factor_secret = $2,
		    two_factor_recovery_codes = NULL,
		    two_factor_last_step = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND two_factor_confirmed_at IS NULL`, userID, nullableText(secretEnc))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, userID)
	}
	return nil
}

func (s TwoFactor) Confirm(ctx context.Context, userID string, secretEnc, recoveryEnc []byte, at time.Time) error {
	if !validID(userID) {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET two_factor_confirmed_at = $3,
		    two_factor_recovery_codes = $4,
		    updated_at = now()
		WHERE id = $1
		  AND two_factor_secret = $2
		  AND two_factor_confirmed_at IS NULL`, userID, string(secretEnc), at.UTC(), nullableText(recoveryEnc))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, userID)
	}
	return nil
}

func (s TwoFactor) Clear(ctx context.Context, userID string) error {
	if !validID(userID) {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET two_factor_secret = NULL,
		    two_factor_confirmed_at = NULL,
		    two_factor_recovery_codes = NULL,
		    two_factor_last_step = NULL,
		    updated_at = now()
		WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s TwoFactor) SwapRecoveryCodes(ctx context.Context, userID string, expectedEnc, newEnc []byte) error {
	if !validID(userID) {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET two_factor_recovery_codes = $3, updated_at = now()
		WHERE id = $1
		  AND two_factor_confirmed_at IS NOT NULL
		  AND two_factor_recovery_codes = $2`, userID, string(expectedEnc), nullableText(newEnc))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, userID)
	}
	return nil
}

func (s TwoFactor) ClaimStep(ctx context.Context, userID string, step int64) error {
	if !validID(userID) {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET two_factor_last_step = $2, updated_at = now()
		WHERE id = $1
		  AND two_factor_confirmed_at IS NOT NULL
		  AND (two_factor_last_step IS NULL OR two_factor_last_step < $2)`, userID, step)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, userID)
	}
	return nil
}

func (s TwoFactor) staleOrMissing(ctx context.Context, userID string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStale
}
