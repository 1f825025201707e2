package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/accountd/internal/audit"
	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/security/password"
	tokens "github.com/dropDatabas3/accountd/internal/security/token"
)

// PasswordResetService emite y consume tokens de reset de un solo uso.
type PasswordResetService interface {
	// SendResetLink responde igual exista o no el email.
	SendResetLink(ctx context.Context, email string) error
	Reset(ctx context.Context, in ResetInput) error
}

type ResetInput struct {
	Email    string
	Token    string
	Password string
}

type PasswordResetDeps struct {
	Users  repository.UserRepository
	Resets repository.PasswordResetRepository
	Mailer ResetMailer
	Config Config
	Now    func() time.Time
}

type passwordResetService struct {
	deps PasswordResetDeps
}

func NewPasswordResetService(deps PasswordResetDeps) PasswordResetService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Config.applyDefaults()
	return &passwordResetService{deps: deps}
}

func (s *passwordResetService) SendResetLink(ctx context.Context, email string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("password.forgot"))

	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return err
	}
	exp := s.deps.Now().UTC().Add(s.deps.Config.ResetTTL)
	if err := s.deps.Resets.Put(ctx, u.Email, tokens.SHA256Base64URL(raw), exp); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if s.deps.Mailer != nil {
		if err := s.deps.Mailer.SendPasswordReset(ctx, u.Email, raw, s.deps.Config.ResetTTL); err != nil {
			// No se propaga: la respuesta no debe delatar que el email existe.
			log.Error("send reset email failed", logger.UserID(u.ID), logger.Err(err))
			return nil
		}
	}
	audit.Log(ctx, audit.PasswordResetSent, logger.UserID(u.ID))
	return nil
}

func (s *passwordResetService) Reset(ctx context.Context, in ResetInput) error {
	if ok, reasons := s.deps.Config.PasswordPolicy.Validate(in.Password); !ok {
		return &PolicyError{Reasons: reasons}
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.deps.Resets.Consume(ctx, email, tokens.SHA256Base64URL(in.Token), s.deps.Now().UTC()); err != nil {
		if repository.IsNotFound(err) || errors.Is(err, repository.ErrTokenExpired) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}
	u, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("load user: %w", err)
	}
	hash, err := password.Hash(s.deps.Config.PasswordParams, in.Password)
	if err != nil {
		return err
	}
	if err := s.deps.Users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	audit.Log(ctx, audit.PasswordReset, logger.UserID(u.ID))
	return nil
}
