package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	jwtx "github.com/dropDatabas3/accountd/internal/jwt"
	tokens "github.com/dropDatabas3/accountd/internal/security/token"
	"github.com/dropDatabas3/accountd/internal/session"
)

// Establishment es el resultado de promover una sesión a autenticada.
// El controller escribe la cookie de SessionID y, si hay, la de RememberToken.
type Establishment struct {
	SessionID     string
	UserID        string
	RememberToken string
	Redirect      string
}

type establisher struct {
	sessions *session.Manager
	remember *jwtx.RememberIssuer
	now      func() time.Time
}

// establish regenera el id de sesión (anti fixation) y la deja autenticada para user.
func (e *establisher) establish(ctx context.Context, current *session.Session, user *repository.User, remember, twoFactor bool) (*Establishment, error) {
	if current == nil {
		current = &session.Session{}
	}
	now := e.now().UTC()
	ns, err := e.sessions.Regenerate(ctx, current, func(s *session.Session) {
		s.UserID = user.ID
		s.Remember = remember
		s.TwoFactorPending = nil
		s.TwoFactorVerified = ""
		if twoFactor {
			s.TwoFactorVerified = user.ID
		}
		s.PasswordConfirmedAt = nil
		s.Ceremony = nil
		s.CreatedAt = now
	})
	if err != nil {
		return nil, fmt.Errorf("regenerate session: %w", err)
	}

	out := &Establishment{SessionID: ns.ID, UserID: user.ID}
	if remember && e.remember != nil {
		tok, err := e.remember.Issue(user.ID, twoFactor, passwordFingerprint(user.PasswordHash))
		if err != nil {
			return nil, err
		}
		out.RememberToken = tok
	}
	return out, nil
}

// passwordFingerprint ata el remember token al hash actual: cambiar la password lo invalida.
func passwordFingerprint(hash string) string {
	return tokens.SHA256Base64URL(hash)[:16]
}
