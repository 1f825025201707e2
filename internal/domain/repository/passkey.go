package repository

import (
	"context"
	"time"
)

// PasskeyCredential es una credencial WebAuthn registrada por un usuario.
// CredentialID y PublicKey no cambian después del alta.
type PasskeyCredential struct {
	ID              string
	UserID          string
	Name            string
	CredentialID    []byte
	PublicKey       []byte
	AttestationType string
	AAGUID          []byte
	SignCount       uint32
	Transports      []string
	BackupEligible  bool
	BackupState     bool
	LastUsedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreatePasskeyInput contiene los datos de una credencial recién atestada.
type CreatePasskeyInput struct {
	UserID          string
	Name            string
	CredentialID    []byte
	PublicKey       []byte
	AttestationType string
	AAGUID          []byte
	SignCount       uint32
	Transports      []string
	BackupEligible  bool
	BackupState     bool
}

// PasskeyRepository define operaciones sobre credenciales WebAuthn.
type PasskeyRepository interface {
	// Create inserta la credencial completa en una sola escritura.
	// Retorna ErrConflict si el credential_id ya existe.
	Create(ctx context.Context, input CreatePasskeyInput) (*PasskeyCredential, error)

	// ListByUser devuelve las credenciales del usuario, más antiguas primero.
	ListByUser(ctx context.Context, userID string) ([]PasskeyCredential, error)

	// CountByUser cuenta las credenciales del usuario.
	CountByUser(ctx context.Context, userID string) (int, error)

	// GetByCredentialID busca por el id opaco del autenticador.
	// Retorna ErrNotFound si no existe.
	GetByCredentialID(ctx context.Context, credentialID []byte) (*PasskeyCredential, error)

	// Rename cambia el nombre. Retorna ErrNotFound si id no pertenece a userID.
	Rename(ctx context.Context, userID, id, name string) error

	// Delete elimina la credencial. Retorna ErrNotFound si id no pertenece a userID.
	Delete(ctx context.Context, userID, id string) error

	// UpdateSignCount escribe newCount sólo si el valor guardado sigue siendo
	// expected. Si no, ErrStale y el contador queda intacto.
	UpdateSignCount(ctx context.Context, credentialID []byte, expected, newCount uint32, usedAt time.Time) error
}
