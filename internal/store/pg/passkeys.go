package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const passkeyColumns = `id::text, user_id::text, name, credential_id, public_key, attestation_type,
	aaguid, sign_count, transports, backup_eligible, backup_state, last_used_at, created_at, updated_at`

func scanPasskey(row pgx.Row) (*repository.PasskeyCredential, error) {
	var (
		p     repository.PasskeyCredential
		count int64
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CredentialID, &p.PublicKey, &p.AttestationType,
		&p.AAGUID, &count, &p.Transports, &p.BackupEligible, &p.BackupState, &p.LastUsedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	p.SignCount = uint32(count)
	return &p, nil
}

func (s Passkeys) Create(ctx context.Context, in repository.CreatePasskeyInput) (*repository.PasskeyCredential, error) {
	if len(in.CredentialID) == 0 || len(in.PublicKey) == 0 {
		return nil, repository.ErrInvalidInput
	}
	if !validID(in.UserID) {
		return nil, repository.ErrNotFound
	}
	transports := in.Transports
	if transports == nil {
		transports = []string{}
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO passkeys (id, user_id, name, credential_id, public_key, attestation_type,
		                      aaguid, sign_count, transports, backup_eligible, backup_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+passkeyColumns,
		uuid.NewString(), in.UserID, in.Name, in.CredentialID, in.PublicKey, in.AttestationType,
		in.AAGUID, int64(in.SignCount), transports, in.BackupEligible, in.BackupState)
	p, err := scanPasskey(row)
	switch {
	case isUniqueViolation(err):
		return nil, repository.ErrConflict
	case isForeignKeyViolation(err):
		return nil, repository.ErrNotFound
	}
	return p, err
}

func (s Passkeys) ListByUser(ctx context.Context, userID string) ([]repository.PasskeyCredential, error) {
	out := make([]repository.PasskeyCredential, 0)
	if !validID(userID) {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+passkeyColumns+` FROM passkeys WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPasskey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s Passkeys) CountByUser(ctx context.Context, userID string) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM passkeys WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (s Passkeys) GetByCredentialID(ctx context.Context, credentialID []byte) (*repository.PasskeyCredential, error) {
	return scanPasskey(s.pool.QueryRow(ctx, `SELECT `+passkeyColumns+` FROM passkeys WHERE credential_id = $1`, credentialID))
}

func (s Passkeys) Rename(ctx context.Context, userID, id, name string) error {
	if !validID(userID) || !validID(id) {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `UPDATE passkeys SET name = $3, updated_at = now() WHERE id = $2 AND user_id = $1`, userID, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s Passkeys) Delete(ctx context.Context, userID, id string) error {
	if !validID(userID) || !validID(id) {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM passkeys WHERE id = $2 AND user_id = $1`, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s Passkeys) UpdateSignCount(ctx context.Context, credentialID []byte, expected, newCount uint32, usedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE passkeys
		SET sign_count = $3, last_used_at = $4, updated_at = now()
		WHERE credential_id = $1 AND sign_count = $2`,
		credentialID, int64(expected), int64(newCount), usedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM passkeys WHERE credential_id = $1)`, credentialID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStale
}
