package pg

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id::text, email, name, password_hash,
	two_factor_secret, two_factor_confirmed_at, two_factor_recovery_codes, two_factor_last_step,
	created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var (
		u        repository.User
		secret   *string
		recovery *string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash,
		&secret, &u.TwoFactor.ConfirmedAt, &recovery, &u.TwoFactor.LastUsedStep,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.TwoFactor.SecretEncrypted = textBytes(secret)
	u.TwoFactor.RecoveryCodesEncrypted = textBytes(recovery)
	return &u, nil
}

func (s Users) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s Users) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	if !validID(userID) {
		return nil, repository.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

func (s Users) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, email))
}

func (s Users) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, repository.ErrInvalidInput
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, uuid.NewString(), email, in.Name, in.PasswordHash)
	u, err := scanUser(row)
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	return u, err
}

func (s Users) UpdateProfile(ctx context.Context, userID string, in repository.UpdateProfileInput) error {
	if !validID(userID) {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET name = $2, email = $3, updated_at = now()
		WHERE id = $1`, userID, in.Name, strings.ToLower(strings.TrimSpace(in.Email)))
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s Users) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	if !validID(userID) {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, newHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
