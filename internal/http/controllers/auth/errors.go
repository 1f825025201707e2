package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	httperrors "github.com/dropDatabas3/accountd/internal/http/errors"
	svc "github.com/dropDatabas3/accountd/internal/http/services/auth"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// handleServiceError traduce los errores de los services a AppError.
// Los fallos criptográficos de una ceremonia comparten una sola respuesta.
func handleServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	var policy *svc.PolicyError
	switch {
	case errors.As(err, &policy):
		httperrors.WriteError(w, httperrors.Validation("password", strings.Join(policy.Reasons, " ")))

	case errors.Is(err, svc.ErrInvalidCredentials):
		httperrors.WriteError(w, httperrors.Validation("email", "Las credenciales no coinciden con nuestros registros."))
	case errors.Is(err, svc.ErrInvalidPassword):
		httperrors.WriteError(w, httperrors.Validation("password", "La contraseña es incorrecta."))
	case errors.Is(err, svc.ErrPasswordConfirmationRequired):
		httperrors.WriteError(w, httperrors.ErrPasswordConfirmationRequired)

	case errors.Is(err, svc.ErrInvalidCode):
		httperrors.WriteError(w, httperrors.Validation("code", "El código de autenticación no es válido."))
	case errors.Is(err, svc.ErrInvalidRecoveryCode):
		httperrors.WriteError(w, httperrors.Validation("recovery_code", "El código de recuperación no es válido."))
	case errors.Is(err, svc.ErrNoPendingChallenge):
		httperrors.WriteError(w, httperrors.ErrNoPendingChallenge)
	case errors.Is(err, svc.ErrTwoFactorNotSetUp):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("two factor authentication is not set up"))
	case errors.Is(err, svc.ErrTwoFactorNotEnabled):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("two factor authentication is not enabled"))
	case errors.Is(err, svc.ErrTwoFactorConfirmed):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("two factor authentication is already confirmed"))
	case errors.Is(err, svc.ErrSecretUnusable):
		log.Error("stored secret unusable", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)

	case errors.Is(err, svc.ErrChallengeExpired):
		httperrors.WriteError(w, httperrors.ErrChallengeExpired)
	case errors.Is(err, svc.ErrChallengeMismatch),
		errors.Is(err, svc.ErrInvalidAttestation),
		errors.Is(err, svc.ErrInvalidAssertion),
		errors.Is(err, svc.ErrPossibleCloneDetected),
		errors.Is(err, svc.ErrUnknownCredential):
		httperrors.WriteError(w, httperrors.ErrCeremonyFailed)
	case errors.Is(err, svc.ErrDuplicateCredential):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("passkey already registered"))
	case errors.Is(err, svc.ErrPasskeyNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound)

	case errors.Is(err, svc.ErrEmailTaken):
		httperrors.WriteError(w, httperrors.Validation("email", "El email ya está en uso."))
	case errors.Is(err, svc.ErrInvalidResetToken):
		httperrors.WriteError(w, httperrors.Validation("email", "El token de recuperación no es válido."))
	case errors.Is(err, svc.ErrConcurrentModification):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("concurrent update, retry"))

	default:
		var appErr *httperrors.AppError
		if errors.As(err, &appErr) {
			httperrors.WriteError(w, appErr)
			return
		}
		log.Error("unexpected error", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
