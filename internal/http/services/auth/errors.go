package auth

import "errors"

// Errores de negocio; los controllers los traducen con errors.Is.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("invalid password")

	ErrPasswordConfirmationRequired = errors.New("password confirmation required")

	ErrTwoFactorNotSetUp   = errors.New("two factor not set up")
	ErrTwoFactorNotEnabled = errors.New("two factor not enabled")
	ErrTwoFactorConfirmed  = errors.New("two factor already confirmed")
	ErrInvalidCode         = errors.New("invalid two factor code")
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")
	ErrNoPendingChallenge  = errors.New("no pending two factor challenge")

	// ErrSecretUnusable: el secreto guardado no descifra. Nunca se trata como "sin secreto".
	ErrSecretUnusable = errors.New("stored two factor secret unusable")

	ErrChallengeMismatch      = errors.New("challenge mismatch")
	ErrChallengeExpired       = errors.New("challenge expired")
	ErrInvalidAttestation     = errors.New("invalid attestation")
	ErrInvalidAssertion       = errors.New("invalid assertion signature")
	ErrPossibleCloneDetected  = errors.New("possible cloned authenticator")
	ErrDuplicateCredential    = errors.New("duplicate credential")
	ErrUnknownCredential      = errors.New("unknown credential")
	ErrPasskeyNotFound        = errors.New("passkey not found")
	ErrConcurrentModification = errors.New("concurrent modification")

	ErrEmailTaken        = errors.New("email already in use")
	ErrInvalidResetToken = errors.New("invalid password reset token")
	ErrWeakPassword      = errors.New("password does not meet policy")
)

// PolicyError lleva los motivos por los que un password nuevo se rechazó.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string { return ErrWeakPassword.Error() }
func (e *PolicyError) Unwrap() error { return ErrWeakPassword }
