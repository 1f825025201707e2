// Package session guarda el estado efímero por navegador: login, challenge 2FA
// pendiente, marca de verificación, confirmación de password y ceremonias WebAuthn.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	tokens "github.com/dropDatabas3/accountd/internal/security/token"
)

var (
	ErrNotFound = errors.New("session: not found")
	// ErrAbort se devuelve desde un UpdateFunc para cancelar sin escribir.
	ErrAbort = errors.New("session: update aborted")
	// ErrConflict indica que se agotaron los reintentos optimistas.
	ErrConflict = errors.New("session: concurrent update")
)

// TwoFactorPending existe entre el password correcto y el código 2FA.
type TwoFactorPending struct {
	UserID   string    `json:"user_id"`
	Remember bool      `json:"remember"`
	IssuedAt time.Time `json:"issued_at"`
}

// Ceremony es un challenge WebAuthn en vuelo. Data es el SessionData serializado.
type Ceremony struct {
	Kind      string          `json:"kind"` // registration | authentication
	UserID    string          `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired indica si la ceremonia venció en now.
func (c *Ceremony) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt) }

const (
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"
)

// Session es el registro completo guardado en el Store.
type Session struct {
	ID string `json:"-"`

	// UserID no vacío = sesión autenticada.
	UserID   string `json:"user_id,omitempty"`
	Remember bool   `json:"remember,omitempty"`

	TwoFactorPending *TwoFactorPending `json:"two_factor_pending,omitempty"`
	// TwoFactorVerified guarda el user id para el que pasó el segundo factor.
	TwoFactorVerified   string     `json:"two_factor_verified,omitempty"`
	PasswordConfirmedAt *time.Time `json:"password_confirmed_at,omitempty"`

	Ceremony *Ceremony `json:"ceremony,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Authenticated indica una sesión con usuario logueado.
func (s *Session) Authenticated() bool { return s != nil && s.UserID != "" }

// TwoFactorVerifiedFor indica si el segundo factor pasó para userID.
func (s *Session) TwoFactorVerifiedFor(userID string) bool {
	return s != nil && userID != "" && tokens.Equal(s.TwoFactorVerified, userID)
}

// PasswordConfirmedWithin indica una confirmación de password más reciente que timeout.
func (s *Session) PasswordConfirmedWithin(now time.Time, timeout time.Duration) bool {
	if s == nil || s.PasswordConfirmedAt == nil {
		return false
	}
	return now.Sub(*s.PasswordConfirmedAt) < timeout
}

// UpdateFunc muta la sesión dentro del read-modify-write atómico del Store.
// Devolver un error cancela la escritura y se propaga a quien llamó a Update.
type UpdateFunc func(s *Session) error

// Store es el backend key-value. Los ids que recibe son los crudos de la cookie.
type Store interface {
	// Get devuelve ErrNotFound si no existe o expiró.
	Get(ctx context.Context, id string) (*Session, error)
	// Save crea o reemplaza.
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	// Update aplica fn de forma atómica respecto de otros Update sobre el mismo id.
	Update(ctx context.Context, id string, ttl time.Duration, fn UpdateFunc) (*Session, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// NewID genera un id de sesión de 256 bits.
func NewID() (string, error) {
	return tokens.GenerateOpaqueToken(32)
}

// storageKey evita guardar el id crudo de la cookie en el backend.
func storageKey(id string) string {
	return tokens.SHA256Base64URL(id)
}

func encode(s *Session) ([]byte, error) { return json.Marshal(s) }

func decode(id string, b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	s.ID = id
	return &s, nil
}
