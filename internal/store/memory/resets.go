package memory

import (
	"context"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	tokens "github.com/dropDatabas3/accountd/internal/security/token"
)

func (s PasswordResets) Put(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[normEmail(email)] = resetEntry{hash: tokenHash, expiresAt: expiresAt}
	return nil
}

func (s PasswordResets) Consume(ctx context.Context, email, tokenHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normEmail(email)
	e, ok := s.resets[key]
	if !ok || !tokens.Equal(e.hash, tokenHash) {
		return repository.ErrNotFound
	}
	delete(s.resets, key)
	if !now.Before(e.expiresAt) {
		return repository.ErrTokenExpired
	}
	return nil
}
