// Package storetest contiene la suite de conformidad que corre contra cada driver.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Repos agrupa las implementaciones bajo prueba.
type Repos struct {
	Users          repository.UserRepository
	TwoFactor      repository.TwoFactorRepository
	Passkeys       repository.PasskeyRepository
	PasswordResets repository.PasswordResetRepository
}

// Run ejecuta la suite. newRepos debe devolver un storage vacío en cada llamada.
func Run(t *testing.T, newRepos func(t *testing.T) Repos) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newRepos(t)) })
	t.Run("TwoFactorLifecycle", func(t *testing.T) { testTwoFactor(t, newRepos(t)) })
	t.Run("RecoveryCodesCAS", func(t *testing.T) { testRecoveryCAS(t, newRepos(t)) })
	t.Run("TOTPStepCAS", func(t *testing.T) { testClaimStep(t, newRepos(t)) })
	t.Run("Passkeys", func(t *testing.T) { testPasskeys(t, newRepos(t)) })
	t.Run("PasskeyOwnership", func(t *testing.T) { testPasskeyOwnership(t, newRepos(t)) })
	t.Run("SignCountCAS", func(t *testing.T) { testSignCount(t, newRepos(t)) })
	t.Run("PasswordResets", func(t *testing.T) { testResets(t, newRepos(t)) })
}

func mkUser(t *testing.T, r Repos, email string) *repository.User {
	t.Helper()
	u, err := r.Users.Create(context.Background(), repository.CreateUserInput{Email: email, Name: "Test", PasswordHash: "$argon2id$x"})
	require.NoError(t, err)
	return u
}

func testUsers(t *testing.T, r Repos) {
	ctx := context.Background()
	require.NoError(t, r.Users.Ping(ctx))

	u := mkUser(t, r, "Ana@Example.com")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.False(t, u.TwoFactor.Enabled())

	got, err := r.Users.GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = r.Users.Create(ctx, repository.CreateUserInput{Email: "ana@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = r.Users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = r.Users.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	other := mkUser(t, r, "bob@example.com")
	err = r.Users.UpdateProfile(ctx, other.ID, repository.UpdateProfileInput{Name: "Bob", Email: "ana@example.com"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, r.Users.UpdateProfile(ctx, u.ID, repository.UpdateProfileInput{Name: "Ana B", Email: "ana.b@example.com"}))
	got, err = r.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana B", got.Name)
	assert.Equal(t, "ana.b@example.com", got.Email)

	require.NoError(t, r.Users.UpdatePasswordHash(ctx, u.ID, "$argon2id$new"))
	got, err = r.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$new", got.PasswordHash)
}

func testTwoFactor(t *testing.T, r Repos) {
	ctx := context.Background()
	u := mkUser(t, r, "tf@example.com")

	require.NoError(t, r.TwoFactor.SetPendingSecret(ctx, u.ID, []byte("secret-1")))
	got, err := r.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.TwoFactor.HasSecret())
	assert.False(t, got.TwoFactor.Enabled())
	assert.Empty(t, got.TwoFactor.RecoveryCodesEncrypted)

	// re-enable antes de confirmar rota el secreto pendiente
	require.NoError(t, r.TwoFactor.SetPendingSecret(ctx, u.ID, []byte("secret-1")))

	// confirmar contra un secreto viejo pierde
	err = r.TwoFactor.Confirm(ctx, u.ID, []byte("secret-0"), []byte("codes"), time.Now())
	assert.ErrorIs(t, err, repository.ErrStale)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, r.TwoFactor.Confirm(ctx, u.ID, []byte("secret-1"), []byte("codes"), at))
	got, err = r.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.TwoFactor.Enabled())
	require.NotNil(t, got.TwoFactor.ConfirmedAt)
	assert.WithinDuration(t, at, *got.TwoFactor.ConfirmedAt, time.Second)
	assert.Equal(t, []byte("codes"), got.TwoFactor.RecoveryCodesEncrypted)

	// doble confirmación no re-escribe
	err = r.TwoFactor.Confirm(ctx, u.ID, []byte("secret-1"), []byte("other"), at)
	assert.ErrorIs(t, err, repository.ErrStale)

	// un secreto pendiente nunca pisa un perfil confirmado
	err = r.TwoFactor.SetPendingSecret(ctx, u.ID, []byte("secret-2"))
	assert.ErrorIs(t, err, repository.ErrStale)
	got, err = r.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.TwoFactor.Enabled())
	assert.Equal(t, []byte("secret-1"), got.TwoFactor.SecretEncrypted)
	assert.Equal(t, []byte("codes"), got.TwoFactor.RecoveryCodesEncrypted)

	require.NoError(t, r.TwoFactor.Clear(ctx, u.ID))
	got, err = r.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TwoFactor.SecretEncrypted)
	assert.Nil(t, got.TwoFactor.ConfirmedAt)
	assert.Empty(t, got.TwoFactor.RecoveryCodesEncrypted)

	assert.ErrorIs(t, r.TwoFactor.Clear(ctx, "00000000-0000-0000-0000-000000000000"), repository.ErrNotFound)
	assert.ErrorIs(t, r.TwoFactor.SetPendingSecret(ctx, "00000000-0000-0000-0000-000000000000", []byte("s")), repository.ErrNotFound)

	// después de Clear se puede volver a empezar
	require.NoError(t, r.TwoFactor.SetPendingSecret(ctx, u.ID, []byte("secret-3")))
}

func testClaimStep(t *testing.T, r Repos) {
	ctx := context.Background()
	u := mkUser(t, r, "step@example.com")
	require.NoError(t, r.TwoFactor.SetPendingSecret(ctx, u.ID, []byte("s")))

	// sin confirmar no hay steps
	assert.ErrorIs(t, r.TwoFactor.ClaimStep(ctx, u.ID, 10), repository.ErrStale)
	require.NoError(t, r.TwoFactor.Confirm(ctx, u.ID, []byte("s"), []byte("c"), time.Now()))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.TwoFactor.ClaimStep(ctx, u.ID, 100); err == nil {
				atomic.AddInt32(&wins, 1)
			} else {
				assert.ErrorIs(t, err, repository.ErrStale)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)

	assert.ErrorIs(t, r.TwoFactor.ClaimStep(ctx, u.ID, 99), repository.ErrStale)
	require.NoError(t, r.TwoFactor.ClaimStep(ctx, u.ID, 101))
	got, err := r.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TwoFactor.LastUsedStep)
	assert.EqualValues(t, 101, *got.TwoFactor.LastUsedStep)

	require.NoError(t, r.TwoFactor.Clear(ctx, u.ID))
	got, err = r.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TwoFactor.LastUsedStep)
	assert.ErrorIs(t, r.TwoFactor.ClaimStep(ctx, "00000000-0000-0000-0000-000000000000", 1), repository.ErrNotFound)
}

func testRecoveryCAS(t *testing.T, r Repos) {
	ctx := context.Background()
	u := mkUser(t, r, "cas@example.com")
	require.NoError(t, r.TwoFactor.SetPendingSecret(ctx, u.ID, []byte("s")))
	require.NoError(t, r.TwoFactor.Confirm(ctx, u.ID, []byte("s"), []byte("v1"), time.Now()))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.TwoFactor.SwapRecoveryCodes(ctx, u.ID, []byte("v1"), []byte("v2")); err == nil {
				atomic.AddInt32(&wins, 1)
			} else {
				assert.ErrorIs(t, err, repository.ErrStale)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)

	got, err := r.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got.TwoFactor.RecoveryCodesEncrypted)
}

func mkPasskey(t *testing.T, r Repos, userID string, credID string, count uint32) *repository.PasskeyCredential {
	t.Helper()
	p, err := r.Passkeys.Create(context.Background(), repository.CreatePasskeyInput{
		UserID:       userID,
		Name:         "Key " + credID,
		CredentialID: []byte(credID),
		PublicKey:    []byte("pk-" + credID),
		SignCount:    count,
		Transports:   []string{"usb", "nfc"},
		AAGUID:       make([]byte, 16),
	})
	require.NoError(t, err)
	return p
}

func testPasskeys(t *testing.T, r Repos) {
	ctx := context.Background()
	u := mkUser(t, r, "pk@example.com")

	p1 := mkPasskey(t, r, u.ID, "cred-1", 0)
	time.Sleep(5 * time.Millisecond)
	mkPasskey(t, r, u.ID, "cred-2", 3)

	_, err := r.Passkeys.Create(ctx, repository.CreatePasskeyInput{UserID: u.ID, Name: "dup", CredentialID: []byte("cred-1"), PublicKey: []byte("x")})
	assert.ErrorIs(t, err, repository.ErrConflict)

	list, err := r.Passkeys.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, p1.ID, list[0].ID)
	assert.Equal(t, []string{"usb", "nfc"}, list[0].Transports)

	n, err := r.Passkeys.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := r.Passkeys.GetByCredentialID(ctx, []byte("cred-2"))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), got.SignCount)
	assert.Equal(t, []byte("pk-cred-2"), got.PublicKey)

	_, err = r.Passkeys.GetByCredentialID(ctx, []byte("missing"))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, r.Passkeys.Rename(ctx, u.ID, p1.ID, "Laptop"))
	require.NoError(t, r.Passkeys.Delete(ctx, u.ID, p1.ID))
	n, err = r.Passkeys.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testPasskeyOwnership(t *testing.T, r Repos) {
	ctx := context.Background()
	a := mkUser(t, r, "a@example.com")
	b := mkUser(t, r, "b@example.com")
	pb := mkPasskey(t, r, b.ID, "cred-b", 0)

	assert.ErrorIs(t, r.Passkeys.Rename(ctx, a.ID, pb.ID, "mine now"), repository.ErrNotFound)
	assert.ErrorIs(t, r.Passkeys.Delete(ctx, a.ID, pb.ID), repository.ErrNotFound)
	assert.ErrorIs(t, r.Passkeys.Delete(ctx, a.ID, "00000000-0000-0000-0000-000000000000"), repository.ErrNotFound)

	list, err := r.Passkeys.ListByUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := r.Passkeys.GetByCredentialID(ctx, []byte("cred-b"))
	require.NoError(t, err)
	assert.Equal(t, "Key cred-b", got.Name)
}

func testSignCount(t *testing.T, r Repos) {
	ctx := context.Background()
	u := mkUser(t, r, "sc@example.com")
	mkPasskey(t, r, u.ID, "cred-sc", 5)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Passkeys.UpdateSignCount(ctx, []byte("cred-sc"), 5, 6, time.Now()); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)

	err := r.Passkeys.UpdateSignCount(ctx, []byte("cred-sc"), 5, 7, time.Now())
	assert.ErrorIs(t, err, repository.ErrStale)

	got, err := r.Passkeys.GetByCredentialID(ctx, []byte("cred-sc"))
	require.NoError(t, err)
	assert.Equal(t, uint32(6), got.SignCount)
	assert.NotNil(t, got.LastUsedAt)

	assert.ErrorIs(t, r.Passkeys.UpdateSignCount(ctx, []byte("nope"), 0, 1, time.Now()), repository.ErrNotFound)
}

func testResets(t *testing.T, r Repos) {
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.PasswordResets.Put(ctx, "r@example.com", "hash-1", now.Add(time.Hour)))
	require.NoError(t, r.PasswordResets.Put(ctx, "r@example.com", "hash-2", now.Add(time.Hour)))

	assert.ErrorIs(t, r.PasswordResets.Consume(ctx, "r@example.com", "hash-1", now), repository.ErrNotFound)
	require.NoError(t, r.PasswordResets.Consume(ctx, "r@example.com", "hash-2", now))
	assert.ErrorIs(t, r.PasswordResets.Consume(ctx, "r@example.com", "hash-2", now), repository.ErrNotFound)

	require.NoError(t, r.PasswordResets.Put(ctx, "r@example.com", "hash-3", now.Add(-time.Minute)))
	assert.ErrorIs(t, r.PasswordResets.Consume(ctx, "r@example.com", "hash-3", now), repository.ErrTokenExpired)
	assert.ErrorIs(t, r.PasswordResets.Consume(ctx, "r@example.com", "hash-3", now), repository.ErrNotFound)
}
