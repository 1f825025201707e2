// Package auth contiene los services de cuenta: login, 2FA, passkeys,
// confirmación y reset de password, perfil.
package auth

import (
	"context"
	"time"

	"github.com/dropDatabas3/accountd/internal/cache"
	"github.com/dropDatabas3/accountd/internal/domain/repository"
	jwtx "github.com/dropDatabas3/accountd/internal/jwt"
	"github.com/dropDatabas3/accountd/internal/metrics"
	"github.com/dropDatabas3/accountd/internal/security/password"
	"github.com/dropDatabas3/accountd/internal/security/secretbox"
	"github.com/dropDatabas3/accountd/internal/session"
)

// ResetMailer envía el link de reset. Implementado por email.ResetMailer.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, token string, ttl time.Duration) error
}

// Config son los parámetros de comportamiento de los services.
type Config struct {
	Issuer                 string        // issuer del otpauth://
	TOTPSkew               uint          // pasos de 30s aceptados a cada lado
	QRSize                 int
	CeremonyTimeout        time.Duration // vida de un challenge WebAuthn
	PasswordConfirmTimeout time.Duration
	ResetTTL               time.Duration
	TwoFactorFlagTTL       time.Duration
	HomePath               string
	ChallengePath          string
	PasswordParams         password.Params
	PasswordPolicy         password.Policy
}

func (c *Config) applyDefaults() {
	if c.Issuer == "" {
		c.Issuer = "accountd"
	}
	if c.CeremonyTimeout <= 0 {
		c.CeremonyTimeout = 60 * time.Second
	}
	if c.PasswordConfirmTimeout <= 0 {
		c.PasswordConfirmTimeout = 3 * time.Hour
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = 60 * time.Minute
	}
	if c.TwoFactorFlagTTL <= 0 {
		c.TwoFactorFlagTTL = 5 * time.Minute
	}
	if c.HomePath == "" {
		c.HomePath = "/dashboard"
	}
	if c.ChallengePath == "" {
		c.ChallengePath = "/two-factor-challenge"
	}
	if c.PasswordParams.KeyLen == 0 {
		c.PasswordParams = password.Default
	}
	if c.PasswordPolicy.MinLength == 0 {
		c.PasswordPolicy = password.DefaultPolicy
	}
}

// Deps contiene las dependencias para crear los services auth.
type Deps struct {
	Users     repository.UserRepository
	TwoFactor repository.TwoFactorRepository
	Passkeys  repository.PasskeyRepository
	Resets    repository.PasswordResetRepository

	Secrets  secretbox.SecretStore
	Sessions *session.Manager
	Remember *jwtx.RememberIssuer // nil = remember-me deshabilitado
	Cache    cache.Client         // nil = memoria
	WebAuthn WebAuthnEngine
	Mailer   ResetMailer
	Metrics  *metrics.Metrics

	Config Config
	Now    func() time.Time
}

// Services agrupa todos los services del dominio auth.
type Services struct {
	Login           LoginService
	TwoFactor       TwoFactorService
	Passkeys        PasskeyService
	PasswordConfirm PasswordConfirmService
	PasswordReset   PasswordResetService
	Profile         ProfileService
}

// NewServices crea el agregador de services auth.
func NewServices(d Deps) Services {
	d.Config.applyDefaults()
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Cache == nil {
		d.Cache = cache.NewMemory("accountd", d.Config.TwoFactorFlagTTL, time.Minute)
	}

	est := &establisher{sessions: d.Sessions, remember: d.Remember, now: d.Now}
	flag := &twoFactorFlag{cache: d.Cache, users: d.Users, ttl: d.Config.TwoFactorFlagTTL}
	confirm := NewPasswordConfirmService(PasswordConfirmDeps{
		Users:    d.Users,
		Sessions: d.Sessions,
		Timeout:  d.Config.PasswordConfirmTimeout,
		Now:      d.Now,
	})
	twoFactor := NewTwoFactorService(TwoFactorDeps{
		Users:       d.Users,
		Repo:        d.TwoFactor,
		Secrets:     d.Secrets,
		Sessions:    d.Sessions,
		Confirm:     confirm,
		Flag:        flag,
		Establisher: est,
		Metrics:     d.Metrics,
		Config:      d.Config,
		Now:         d.Now,
	})

	return Services{
		Login: NewLoginService(LoginDeps{
			Users:       d.Users,
			TwoFactor:   twoFactor,
			Sessions:    d.Sessions,
			Establisher: est,
			Remember:    d.Remember,
			Config:      d.Config,
		}),
		TwoFactor: twoFactor,
		Passkeys: NewPasskeyService(PasskeyDeps{
			Users:       d.Users,
			Repo:        d.Passkeys,
			Engine:      d.WebAuthn,
			Sessions:    d.Sessions,
			Establisher: est,
			Metrics:     d.Metrics,
			Config:      d.Config,
			Now:         d.Now,
		}),
		PasswordConfirm: confirm,
		PasswordReset: NewPasswordResetService(PasswordResetDeps{
			Users:  d.Users,
			Resets: d.Resets,
			Mailer: d.Mailer,
			Config: d.Config,
			Now:    d.Now,
		}),
		Profile: NewProfileService(ProfileDeps{Users: d.Users}),
	}
}
