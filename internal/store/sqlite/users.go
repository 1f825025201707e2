package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/google/uuid"
)

const userColumns = `id, email, name, password_hash,
	two_factor_secret, two_factor_confirmed_at, two_factor_recovery_codes, two_factor_last_step,
	created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*repository.User, error) {
	var (
		u                repository.User
		secret, recovery sql.NullString
		confirmed, step  sql.NullInt64
		created, updated int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &secret, &confirmed, &recovery, &step, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.TwoFactor = repository.TwoFactorProfile{
		SecretEncrypted:        textBytes(secret),
		ConfirmedAt:            fromNullNanos(confirmed),
		RecoveryCodesEncrypted: textBytes(recovery),
	}
	if step.Valid {
		u.TwoFactor.LastUsedStep = &step.Int64
	}
	u.CreatedAt = fromNanos(created)
	u.UpdatedAt = fromNanos(updated)
	return &u, nil
}

func (s Users) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s Users) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
}

func (s Users) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (s Users) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, repository.ErrInvalidInput
	}
	now := toNanos(time.Now())
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, id, email, in.Name, in.PasswordHash, now, now)
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s Users) UpdateProfile(ctx context.Context, userID string, in repository.UpdateProfileInput) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ?`,
		in.Name, strings.ToLower(strings.TrimSpace(in.Email)), toNanos(time.Now()), userID)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return err
	}
	if n, _ := affected(res); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s Users) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, toNanos(time.Now()), userID)
	if err != nil {
		return err
	}
	if n, _ := affected(res); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
