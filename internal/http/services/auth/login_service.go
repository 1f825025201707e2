package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/accountd/internal/audit"
	"github.com/dropDatabas3/accountd/internal/domain/repository"
	jwtx "github.com/dropDatabas3/accountd/internal/jwt"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/security/password"
	tokens "github.com/dropDatabas3/accountd/internal/security/token"
	"github.com/dropDatabas3/accountd/internal/session"
)

// LoginService autentica con password y administra el remember-me.
type LoginService interface {
	Login(ctx context.Context, current *session.Session, in LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	// ResumeRemembered recrea la sesión autenticada desde un remember token válido.
	ResumeRemembered(ctx context.Context, current *session.Session, token string) (*Establishment, error)
}

type LoginInput struct {
	Email    string
	Password string
	Remember bool
}

// LoginResult: con TwoFactorRequired la sesión queda con el challenge pendiente
// y Establishment es nil.
type LoginResult struct {
	TwoFactorRequired bool
	Redirect          string
	Establishment     *Establishment
}

type LoginDeps struct {
	Users       repository.UserRepository
	TwoFactor   TwoFactorService
	Sessions    *session.Manager
	Establisher *establisher
	Remember    *jwtx.RememberIssuer
	Config      Config
}

type loginService struct {
	deps LoginDeps
}

func NewLoginService(deps LoginDeps) LoginService {
	deps.Config.applyDefaults()
	return &loginService{deps: deps}
}

func (s *loginService) Login(ctx context.Context, current *session.Session, in LoginInput) (*LoginResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth.login"), logger.Op("Login"))

	email := strings.ToLower(strings.TrimSpace(in.Email))
	u, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if !repository.IsNotFound(err) {
			return nil, fmt.Errorf("load user: %w", err)
		}
		// Mismo costo que un usuario real.
		password.VerifyDummy(s.deps.Config.PasswordParams, in.Password)
		audit.Log(ctx, audit.LoginFailed, logger.Email(email))
		return nil, ErrInvalidCredentials
	}
	if !password.Verify(in.Password, u.PasswordHash) {
		audit.Log(ctx, audit.LoginFailed, logger.UserID(u.ID))
		return nil, ErrInvalidCredentials
	}

	if u.TwoFactor.Enabled() {
		if current == nil {
			return nil, errors.New("login requires a session")
		}
		if err := s.deps.TwoFactor.Challenge(ctx, current.ID, u.ID, in.Remember); err != nil {
			return nil, err
		}
		log.Debug("two factor challenge issued", logger.UserID(u.ID))
		return &LoginResult{TwoFactorRequired: true, Redirect: s.deps.Config.ChallengePath}, nil
	}

	est, err := s.deps.Establisher.establish(ctx, current, u, in.Remember, false)
	if err != nil {
		return nil, err
	}
	est.Redirect = s.deps.Config.HomePath
	audit.Log(ctx, audit.LoginSucceeded, logger.UserID(u.ID))
	return &LoginResult{Redirect: est.Redirect, Establishment: est}, nil
}

func (s *loginService) Logout(ctx context.Context, sessionID string) error {
	if err := s.deps.Sessions.Destroy(ctx, sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	audit.Log(ctx, audit.Logout)
	return nil
}

func (s *loginService) ResumeRemembered(ctx context.Context, current *session.Session, token string) (*Establishment, error) {
	if s.deps.Remember == nil || token == "" {
		return nil, ErrInvalidCredentials
	}
	claims, err := s.deps.Remember.Parse(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	u, err := s.deps.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !tokens.Equal(claims.Fingerprint, passwordFingerprint(u.PasswordHash)) {
		return nil, ErrInvalidCredentials
	}

	// El marcador 2FA sólo se restaura si el token lo llevaba al emitirse.
	est, err := s.deps.Establisher.establish(ctx, current, u, true, claims.TwoFactor && u.TwoFactor.Enabled())
	if err != nil {
		return nil, err
	}
	// El token existente sigue valiendo; no se rota.
	est.RememberToken = ""
	return est, nil
}
