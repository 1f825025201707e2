package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/google/uuid"
)

const passkeyColumns = `id, user_id, name, credential_id, public_key, attestation_type,
	aaguid, sign_count, transports, backup_eligible, backup_state, last_used_at, created_at, updated_at`

func scanPasskey(row scanner) (*repository.PasskeyCredential, error) {
	var (
		p                repository.PasskeyCredential
		count            int64
		transports       string
		lastUsed         sql.NullInt64
		created, updated int64
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CredentialID, &p.PublicKey, &p.AttestationType,
		&p.AAGUID, &count, &transports, &p.BackupEligible, &p.BackupState, &lastUsed, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(transports), &p.Transports); err != nil {
		return nil, err
	}
	p.SignCount = uint32(count)
	p.LastUsedAt = fromNullNanos(lastUsed)
	p.CreatedAt = fromNanos(created)
	p.UpdatedAt = fromNanos(updated)
	return &p, nil
}

func (s Passkeys) Create(ctx context.Context, in repository.CreatePasskeyInput) (*repository.PasskeyCredential, error) {
	if len(in.CredentialID) == 0 || len(in.PublicKey) == 0 {
		return nil, repository.ErrInvalidInput
	}
	transports := in.Transports
	if transports == nil {
		transports = []string{}
	}
	tj, err := json.Marshal(transports)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	now := toNanos(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO passkeys (id, user_id, name, credential_id, public_key, attestation_type,
		                      aaguid, sign_count, transports, backup_eligible, backup_state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.UserID, in.Name, in.CredentialID, in.PublicKey, in.AttestationType,
		in.AAGUID, int64(in.SignCount), string(tj), in.BackupEligible, in.BackupState, now, now)
	switch {
	case isUniqueViolation(err):
		return nil, repository.ErrConflict
	case isForeignKeyViolation(err):
		return nil, repository.ErrNotFound
	case err != nil:
		return nil, err
	}
	return scanPasskey(s.db.QueryRowContext(ctx, `SELECT `+passkeyColumns+` FROM passkeys WHERE id = ?`, id))
}

func (s Passkeys) ListByUser(ctx context.Context, userID string) ([]repository.PasskeyCredential, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+passkeyColumns+` FROM passkeys WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]repository.PasskeyCredential, 0)
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
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM passkeys WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func (s Passkeys) GetByCredentialID(ctx context.Context, credentialID []byte) (*repository.PasskeyCredential, error) {
	return scanPasskey(s.db.QueryRowContext(ctx, `SELECT `+passkeyColumns+` FROM passkeys WHERE credential_id = ?`, credentialID))
}

func (s Passkeys) Rename(ctx context.Context, userID, id, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE passkeys SET name = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		name, toNanos(time.Now()), id, userID)
	if err != nil {
		return err
	}
	if n, _ := affected(res); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s Passkeys) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM passkeys WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := affected(res); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s Passkeys) UpdateSignCount(ctx context.Context, credentialID []byte, expected, newCount uint32, usedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE passkeys SET sign_count = ?, last_used_at = ?, updated_at = ?
		WHERE credential_id = ? AND sign_count = ?`,
		int64(newCount), toNanos(usedAt), toNanos(time.Now()), credentialID, int64(expected))
	if err != nil {
		return err
	}
	if n, _ := affected(res); n == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM passkeys WHERE credential_id = ?)`, credentialID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStale
}
