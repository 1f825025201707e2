package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/google/uuid"
)

func (s Passkeys) Create(ctx context.Context, in repository.CreatePasskeyInput) (*repository.PasskeyCredential, error) {
	if len(in.CredentialID) == 0 || len(in.PublicKey) == 0 {
		return nil, repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[in.UserID]; !ok {
		return nil, repository.ErrNotFound
	}
	for _, p := range s.passkeys {
		if bytes.Equal(p.CredentialID, in.CredentialID) {
			return nil, repository.ErrConflict
		}
	}
	now := s.now().UTC()
	p := &repository.PasskeyCredential{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		Name:            in.Name,
		CredentialID:    cloneBytes(in.CredentialID),
		PublicKey:       cloneBytes(in.PublicKey),
		AttestationType: in.AttestationType,
		AAGUID:          cloneBytes(in.AAGUID),
		SignCount:       in.SignCount,
		Transports:      append([]string(nil), in.Transports...),
		BackupEligible:  in.BackupEligible,
		BackupState:     in.BackupState,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.passkeys[p.ID] = p
	out := clonePasskey(p)
	return &out, nil
}

func (s Passkeys) ListByUser(ctx context.Context, userID string) ([]repository.PasskeyCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.PasskeyCredential, 0)
	for _, p := range s.passkeys {
		if p.UserID == userID {
			out = append(out, clonePasskey(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return strings.Compare(out[i].ID, out[j].ID) < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s Passkeys) CountByUser(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.passkeys {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s Passkeys) GetByCredentialID(ctx context.Context, credentialID []byte) (*repository.PasskeyCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.passkeys {
		if bytes.Equal(p.CredentialID, credentialID) {
			out := clonePasskey(p)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s Passkeys) owned(userID, id string) (*repository.PasskeyCredential, bool) {
	p, ok := s.passkeys[id]
	if !ok || p.UserID != userID {
		return nil, false
	}
	return p, true
}

func (s Passkeys) Rename(ctx context.Context, userID, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.owned(userID, id)
	if !ok {
		return repository.ErrNotFound
	}
	p.Name = name
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s Passkeys) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owned(userID, id); !ok {
		return repository.ErrNotFound
	}
	delete(s.passkeys, id)
	return nil
}

func (s Passkeys) UpdateSignCount(ctx context.Context, credentialID []byte, expected, newCount uint32, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.passkeys {
		if !bytes.Equal(p.CredentialID, credentialID) {
			continue
		}
		if p.SignCount != expected {
			return repository.ErrStale
		}
		t := usedAt.UTC()
		p.SignCount = newCount
		p.LastUsedAt = &t
		p.UpdatedAt = s.now().UTC()
		return nil
	}
	return repository.ErrNotFound
}
