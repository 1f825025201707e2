// Package audit emite eventos de seguridad como logs estructurados.
package audit

import (
	"context"

	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	LoginSucceeded = "login.succeeded"
	LoginFailed    = "login.failed"
	Logout         = "logout"

	PasswordConfirmed = "password.confirmed"
	PasswordResetSent = "password.reset_link_sent"
	PasswordReset     = "password.reset"

	TwoFactorEnabled             = "two_factor.enabled"
	TwoFactorConfirmed           = "two_factor.confirmed"
	TwoFactorDisabled            = "two_factor.disabled"
	TwoFactorChallengeFailed     = "two_factor.challenge_failed"
	TwoFactorRecoveryUsed        = "two_factor.recovery_used"
	TwoFactorRecoveryRegenerated = "two_factor.recovery_regenerated"

	PasskeyRegistered      = "passkey.registered"
	PasskeyRegisterFailed  = "passkey.register_failed"
	PasskeyRenamed         = "passkey.renamed"
	PasskeyDeleted         = "passkey.deleted"
	PasskeyAuthenticated   = "passkey.authenticated"
	PasskeyAssertionFailed = "passkey.assertion_failed"
	PasskeyCloneDetected   = "passkey.clone_detected"

	ProfileUpdated = "profile.updated"
)

// Log escribe un evento de auditoría con el logger del request.
// Los eventos de clon y fallos de aserción salen en warn.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	l := logger.From(ctx).With(logger.Layer("audit"), logger.Event(event))
	switch event {
	case PasskeyCloneDetected, PasskeyAssertionFailed, PasskeyRegisterFailed, TwoFactorChallengeFailed, LoginFailed:
		l.Warn("audit", fields...)
	default:
		l.Info("audit", fields...)
	}
}
