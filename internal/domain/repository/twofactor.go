package repository

import (
	"context"
	"time"
)

// TwoFactorProfile son las tres columnas de 2FA del usuario, siempre cifradas.
//
// Estados válidos:
//   - sin secreto: todo vacío
//   - pendiente de confirmación: SecretEncrypted != nil, ConfirmedAt == nil, sin recovery codes
//   - habilitado: los tres presentes
type TwoFactorProfile struct {
	SecretEncrypted        []byte
	ConfirmedAt            *time.Time
	RecoveryCodesEncrypted []byte
	// LastUsedStep es el último time-step TOTP aceptado en un challenge.
	LastUsedStep *int64
}

// HasSecret indica si hay un secreto guardado (confirmado o no).
func (p TwoFactorProfile) HasSecret() bool { return len(p.SecretEncrypted) > 0 }

// Enabled indica 2FA activo para el login: secreto presente y confirmado.
func (p TwoFactorProfile) Enabled() bool {
	return p.HasSecret() && p.ConfirmedAt != nil
}

// TwoFactorRepository persiste TwoFactorProfile.
type TwoFactorRepository interface {
	// SetPendingSecret guarda un secreto nuevo sin confirmar y borra
	// recovery codes y last step en la misma escritura. Si el perfil ya está
	// confirmado no escribe nada y devuelve ErrStale.
	SetPendingSecret(ctx context.Context, userID string, secretEnc []byte) error

	// Confirm marca confirmed_at y guarda el set inicial de recovery codes en
	// una sola escritura, sólo si el secreto guardado sigue siendo secretEnc y
	// aún no está confirmado. Si no, ErrStale.
	Confirm(ctx context.Context, userID string, secretEnc, recoveryEnc []byte, at time.Time) error

	// Clear borra secreto, confirmed_at y recovery codes juntos.
	Clear(ctx context.Context, userID string) error

	// SwapRecoveryCodes reemplaza el blob sólo si el actual es expectedEnc.
	// Si otro request lo cambió primero, ErrStale.
	SwapRecoveryCodes(ctx context.Context, userID string, expectedEnc, newEnc []byte) error

	// ClaimStep registra step como usado sólo si es mayor que el último
	// aceptado y el perfil está confirmado. Si no, ErrStale.
	ClaimStep(ctx context.Context, userID string, step int64) error
}
