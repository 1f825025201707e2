// Package memory implementa los repositorios en memoria (dev y tests).
// Un único mutex serializa todas las escrituras, así que los compare-and-swap
// tienen la misma semántica que en SQL.
package memory

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/google/uuid"
)

type resetEntry struct {
	hash      string
	expiresAt time.Time
}

// Store guarda el estado compartido; cada repositorio es una vista tipada.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*repository.User
	byEmail  map[string]string
	passkeys map[string]*repository.PasskeyCredential
	resets   map[string]resetEntry
	now      func() time.Time
}

// Users implementa repository.UserRepository.
type Users struct{ *Store }

// TwoFactor implementa repository.TwoFactorRepository.
type TwoFactor struct{ *Store }

// Passkeys implementa repository.PasskeyRepository.
type Passkeys struct{ *Store }

// PasswordResets implementa repository.PasswordResetRepository.
type PasswordResets struct{ *Store }

var (
	_ repository.UserRepository          = Users{}
	_ repository.TwoFactorRepository     = TwoFactor{}
	_ repository.PasskeyRepository       = Passkeys{}
	_ repository.PasswordResetRepository = PasswordResets{}
)

func (s *Store) Users() Users                   { return Users{s} }
func (s *Store) TwoFactor() TwoFactor           { return TwoFactor{s} }
func (s *Store) Passkeys() Passkeys             { return Passkeys{s} }
func (s *Store) PasswordResets() PasswordResets { return PasswordResets{s} }

func New() *Store {
	return &Store{
		users:    map[string]*repository.User{},
		byEmail:  map[string]string{},
		passkeys: map[string]*repository.PasskeyCredential{},
		resets:   map[string]resetEntry{},
		now:      time.Now,
	}
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func cloneUser(u *repository.User) *repository.User {
	c := *u
	c.TwoFactor.SecretEncrypted = cloneBytes(u.TwoFactor.SecretEncrypted)
	c.TwoFactor.RecoveryCodesEncrypted = cloneBytes(u.TwoFactor.RecoveryCodesEncrypted)
	if u.TwoFactor.LastUsedStep != nil {
		step := *u.TwoFactor.LastUsedStep
		c.TwoFactor.LastUsedStep = &step
	}
	if u.TwoFactor.ConfirmedAt != nil {
		t := *u.TwoFactor.ConfirmedAt
		c.TwoFactor.ConfirmedAt = &t
	}
	return &c
}

func clonePasskey(p *repository.PasskeyCredential) repository.PasskeyCredential {
	c := *p
	c.CredentialID = cloneBytes(p.CredentialID)
	c.PublicKey = cloneBytes(p.PublicKey)
	c.AAGUID = cloneBytes(p.AAGUID)
	c.Transports = append([]string(nil), p.Transports...)
	if p.LastUsedAt != nil {
		t := *p.LastUsedAt
		c.LastUsedAt = &t
	}
	return c
}

func (s Users) Ping(ctx context.Context) error { return ctx.Err() }

// ─── Users ───

func (s Users) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s Users) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s Users) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := normEmail(in.Email)
	if email == "" {
		return nil, repository.ErrInvalidInput
	}
	if _, dup := s.byEmail[email]; dup {
		return nil, repository.ErrConflict
	}
	now := s.now().UTC()
	u := &repository.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	return cloneUser(u), nil
}

func (s Users) UpdateProfile(ctx context.Context, userID string, in repository.UpdateProfileInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	email := normEmail(in.Email)
	if owner, taken := s.byEmail[email]; taken && owner != userID {
		return repository.ErrConflict
	}
	delete(s.byEmail, u.Email)
	u.Email = email
	u.Name = in.Name
	u.UpdatedAt = s.now().UTC()
	s.byEmail[email] = userID
	return nil
}

func (s Users) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = newHash
	u.UpdatedAt = s.now().UTC()
	return nil
}

// ─── Two-factor ───

func (s TwoFactor) SetPendingSecret(ctx context.Context, userID string, secretEnc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if u.TwoFactor.ConfirmedAt != nil {
		return repository.ErrStale
	}
	u.TwoFactor = repository.TwoFactorProfile{SecretEncrypted: cloneBytes(secretEnc)}
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s TwoFactor) Confirm(ctx context.Context, userID string, secretEnc, recoveryEnc []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if u.TwoFactor.ConfirmedAt != nil || !bytes.Equal(u.TwoFactor.SecretEncrypted, secretEnc) {
		return repository.ErrStale
	}
	t := at.UTC()
	u.TwoFactor.ConfirmedAt = &t
	u.TwoFactor.RecoveryCodesEncrypted = cloneBytes(recoveryEnc)
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s TwoFactor) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.TwoFactor = repository.TwoFactorProfile{}
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s TwoFactor) SwapRecoveryCodes(ctx context.Context, userID string, expectedEnc, newEnc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if u.TwoFactor.ConfirmedAt == nil || !bytes.Equal(u.TwoFactor.RecoveryCodesEncrypted, expectedEnc) {
		return repository.ErrStale
	}
	u.TwoFactor.RecoveryCodesEncrypted = cloneBytes(newEnc)
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s TwoFactor) ClaimStep(ctx context.Context, userID string, step int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	last := u.TwoFactor.LastUsedStep
	if u.TwoFactor.ConfirmedAt == nil || (last != nil && *last >= step) {
		return repository.ErrStale
	}
	u.TwoFactor.LastUsedStep = &step
	u.UpdatedAt = s.now().UTC()
	return nil
}
