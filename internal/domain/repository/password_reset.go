package repository

import (
	"context"
	"time"
)

// PasswordResetRepository guarda un token de reset por email (sólo el hash).
type PasswordResetRepository interface {
	// Put reemplaza cualquier token previo del email.
	Put(ctx context.Context, email, tokenHash string, expiresAt time.Time) error

	// Consume borra el token si coincide. ErrNotFound si no coincide,
	// ErrTokenExpired si coincidía pero ya venció (también se borra).
	Consume(ctx context.Context, email, tokenHash string, now time.Time) error
}
