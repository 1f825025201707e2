package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/accountd/internal/audit"
	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/security/password"
	"github.com/dropDatabas3/accountd/internal/session"
)

// PasswordConfirmService maneja la confirmación reciente de password que piden
// las operaciones sensibles (disable 2FA, regenerar recovery codes).
type PasswordConfirmService interface {
	// Confirm verifica la password y marca la sesión.
	Confirm(ctx context.Context, sessionID, userID, plain string) error
	// Status indica si la sesión tiene una confirmación fresca.
	Status(ctx context.Context, sessionID string) (bool, error)
	// RequireFresh confirma con plain si viene, y después exige frescura.
	RequireFresh(ctx context.Context, sessionID, userID, plain string) error
}

type PasswordConfirmDeps struct {
	Users    repository.UserRepository
	Sessions *session.Manager
	Timeout  time.Duration
	Now      func() time.Time
}

type passwordConfirmService struct {
	deps PasswordConfirmDeps
}

func NewPasswordConfirmService(deps PasswordConfirmDeps) PasswordConfirmService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 3 * time.Hour
	}
	return &passwordConfirmService{deps: deps}
}

func (s *passwordConfirmService) Confirm(ctx context.Context, sessionID, userID, plain string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("password.confirm"), logger.UserID(userID))

	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !password.Verify(plain, u.PasswordHash) {
		log.Debug("password confirmation rejected")
		return ErrInvalidPassword
	}

	now := s.deps.Now().UTC()
	if _, err := s.deps.Sessions.Update(ctx, sessionID, func(ss *session.Session) error {
		ss.PasswordConfirmedAt = &now
		return nil
	}); err != nil {
		return fmt.Errorf("mark password confirmed: %w", err)
	}
	audit.Log(ctx, audit.PasswordConfirmed, logger.UserID(userID))
	return nil
}

func (s *passwordConfirmService) Status(ctx context.Context, sessionID string) (bool, error) {
	ss, err := s.deps.Sessions.Store().Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return ss.PasswordConfirmedWithin(s.deps.Now(), s.deps.Timeout), nil
}

func (s *passwordConfirmService) RequireFresh(ctx context.Context, sessionID, userID, plain string) error {
	if plain != "" {
		if err := s.Confirm(ctx, sessionID, userID, plain); err != nil {
			return err
		}
	}
	ok, err := s.Status(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPasswordConfirmationRequired
	}
	return nil
}
