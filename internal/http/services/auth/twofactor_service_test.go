package auth

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/security/secretbox"
	"github.com/dropDatabas3/accountd/internal/security/totp"
)

// enableAndConfirm deja 2FA activo para e.user y devuelve el secreto.
func enableAndConfirm(t *testing.T, e *testEnv) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.svc.TwoFactor.Enable(ctx, e.user.ID))
	secret, err := e.svc.TwoFactor.SecretKey(ctx, e.user.ID)
	require.NoError(t, err)
	code, err := totp.CurrentCode(secret, e.clock.Now())
	require.NoError(t, err)
	require.NoError(t, e.svc.TwoFactor.Confirm(ctx, "", e.user.ID, code))
	// el step del código de confirmación queda consumido
	e.clock.Advance(totp.Period * time.Second)
	return secret
}

// snapshotUsers responde GetByID con una lectura previa, como un request que
// cargó el usuario antes de una escritura concurrente.
type snapshotUsers struct {
	repository.UserRepository
	u repository.User
}

func (s snapshotUsers) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	u := s.u
	return &u, nil
}

func TestTwoFactor_EnableLeavesUnconfirmed(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, e.svc.TwoFactor.Enable(ctx, e.user.ID))

	u := e.reloadUser(t)
	assert.True(t, u.TwoFactor.HasSecret())
	assert.Nil(t, u.TwoFactor.ConfirmedAt)
	assert.Empty(t, u.TwoFactor.RecoveryCodesEncrypted)

	on, err := e.svc.TwoFactor.Enabled(ctx, e.user.ID)
	require.NoError(t, err)
	assert.False(t, on)

	_, err = e.svc.TwoFactor.RecoveryCodes(ctx, e.user.ID)
	assert.ErrorIs(t, err, ErrTwoFactorNotSetUp)
}

func TestTwoFactor_SecretEncryptedAtRest(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.svc.TwoFactor.Enable(ctx, e.user.ID))

	secret, err := e.svc.TwoFactor.SecretKey(ctx, e.user.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(e.reloadUser(t).TwoFactor.SecretEncrypted), secret)
}

func TestTwoFactor_ConfirmStaleCode(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.svc.TwoFactor.Enable(ctx, e.user.ID))
	secret, err := e.svc.TwoFactor.SecretKey(ctx, e.user.ID)
	require.NoError(t, err)

	stale, err := totp.CurrentCode(secret, e.clock.Now().Add(-5*time.Minute))
	require.NoError(t, err)
	err = e.svc.TwoFactor.Confirm(ctx, "", e.user.ID, stale)
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Nil(t, e.reloadUser(t).TwoFactor.ConfirmedAt)
}

func TestTwoFactor_ConfirmCreatesRecoveryCodes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	s := e.startSession(t)

	require.NoError(t, e.svc.TwoFactor.Enable(ctx, e.user.ID))
	secret, err := e.svc.TwoFactor.SecretKey(ctx, e.user.ID)
	require.NoError(t, err)
	code, err := totp.CurrentCode(secret, e.clock.Now())
	require.NoError(t, err)
	require.NoError(t, e.svc.TwoFactor.Confirm(ctx, s.ID, e.user.ID, code))

	assert.NotNil(t, e.reloadUser(t).TwoFactor.ConfirmedAt)
	codes, err := e.svc.TwoFactor.RecoveryCodes(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Len(t, codes, 8)
	assert.True(t, e.loadSession(t, s.ID).TwoFactorVerifiedFor(e.user.ID))

	on, err := e.svc.TwoFactor.Enabled(ctx, e.user.ID)
	require.NoError(t, err)
	assert.True(t, on)

	st, err := e.svc.TwoFactor.Status(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, TwoFactorStatus{Enabled: true, Confirmed: true, RecoveryCodesRemaining: 8}, *st)

	assert.ErrorIs(t, e.svc.TwoFactor.Enable(ctx, e.user.ID), ErrTwoFactorConfirmed)
}

func TestTwoFactor_QRCode(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.svc.TwoFactor.QRCode(ctx, e.user.ID)
	assert.ErrorIs(t, err, ErrTwoFactorNotSetUp)

	require.NoError(t, e.svc.TwoFactor.Enable(ctx, e.user.ID))
	svg, err := e.svc.TwoFactor.QRCode(ctx, e.user.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(svg, "<svg"))
}

func TestTwoFactor_TamperedSecretIsUnusable(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.TwoFactor().SetPendingSecret(ctx, e.user.ID, []byte("not-a-ciphertext")))

	_, err := e.svc.TwoFactor.SecretKey(ctx, e.user.ID)
	assert.ErrorIs(t, err, ErrSecretUnusable)
	assert.True(t, secretbox.IsDecryptionError(err))
	err = e.svc.TwoFactor.Confirm(ctx, "", e.user.ID, "123456")
	assert.ErrorIs(t, err, ErrSecretUnusable)
	assert.True(t, secretbox.IsDecryptionError(err))
}

func TestTwoFactor_EnableAfterConcurrentConfirm(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	before := *e.reloadUser(t)
	enableAndConfirm(t, e)

	// Enable leyó el usuario antes de que Confirm escribiera.
	racing := NewTwoFactorService(TwoFactorDeps{
		Users:   snapshotUsers{UserRepository: e.store.Users(), u: before},
		Repo:    e.store.TwoFactor(),
		Secrets: e.box,
		Now:     e.clock.Now,
	})
	assert.ErrorIs(t, racing.Enable(ctx, e.user.ID), ErrTwoFactorConfirmed)

	u := e.reloadUser(t)
	assert.True(t, u.TwoFactor.Enabled())
	assert.NotEmpty(t, u.TwoFactor.RecoveryCodesEncrypted)
	on, err := e.svc.TwoFactor.Enabled(ctx, e.user.ID)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestTwoFactor_RecoveryCodeSingleUse(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	enableAndConfirm(t, e)

	codes, err := e.svc.TwoFactor.RecoveryCodes(ctx, e.user.ID)
	require.NoError(t, err)

	ok, err := e.svc.TwoFactor.VerifyRecoveryCode(ctx, e.user.ID, codes[0])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.svc.TwoFactor.VerifyRecoveryCode(ctx, e.user.ID, codes[0])
	require.NoError(t, err)
	assert.False(t, ok)

	left, err := e.svc.TwoFactor.RecoveryCodes(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Len(t, left, 7)
	assert.NotContains(t, left, codes[0])

	ok, err = e.svc.TwoFactor.VerifyRecoveryCode(ctx, e.user.ID, "NOTACODE")
	require.NoError(t, err)
	assert.False(t, ok)
	left, err = e.svc.TwoFactor.RecoveryCodes(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Len(t, left, 7)
}

func TestTwoFactor_RecoveryCodeConcurrentConsumption(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	enableAndConfirm(t, e)
	codes, err := e.svc.TwoFactor.RecoveryCodes(ctx, e.user.ID)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := e.svc.TwoFactor.VerifyRecoveryCode(ctx, e.user.ID, codes[3])
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	left, err := e.svc.TwoFactor.RecoveryCodes(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Len(t, left, 7)
}

func TestTwoFactor_RegenerateInvalidatesOldCodes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	enableAndConfirm(t, e)
	s := e.startSession(t)

	old, err := e.svc.TwoFactor.RecoveryCodes(ctx, e.user.ID)
	require.NoError(t, err)

	_, err = e.svc.TwoFactor.RegenerateRecoveryCodes(ctx, s.ID, e.user.ID, "")
	assert.ErrorIs(t, err, ErrPasswordConfirmationRequired)

	fresh, err := e.svc.TwoFactor.RegenerateRecoveryCodes(ctx, s.ID, e.user.ID, testPassword)
	require.NoError(t, err)
	assert.Len(t, fresh, 8)

	for _, c := range old {
		ok, err := e.svc.TwoFactor.VerifyRecoveryCode(ctx, e.user.ID, c)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestTwoFactor_DisableClearsEverything(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	enableAndConfirm(t, e)
	s := e.startSession(t)

	assert.ErrorIs(t, e.svc.TwoFactor.Disable(ctx, s.ID, e.user.ID, ""), ErrPasswordConfirmationRequired)
	assert.ErrorIs(t, e.svc.TwoFactor.Disable(ctx, s.ID, e.user.ID, "wrong password"), ErrInvalidPassword)
	assert.True(t, e.reloadUser(t).TwoFactor.Enabled())

	require.NoError(t, e.svc.PasswordConfirm.Confirm(ctx, s.ID, e.user.ID, testPassword))
	require.NoError(t, e.svc.TwoFactor.Disable(ctx, s.ID, e.user.ID, ""))

	u := e.reloadUser(t)
	assert.Empty(t, u.TwoFactor.SecretEncrypted)
	assert.Nil(t, u.TwoFactor.ConfirmedAt)
	assert.Empty(t, u.TwoFactor.RecoveryCodesEncrypted)

	on, err := e.svc.TwoFactor.Enabled(ctx, e.user.ID)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestTwoFactor_PasswordConfirmationExpires(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	s := e.startSession(t)

	require.NoError(t, e.svc.PasswordConfirm.Confirm(ctx, s.ID, e.user.ID, testPassword))
	ok, err := e.svc.PasswordConfirm.Status(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	e.clock.Advance(4 * time.Hour)
	ok, err = e.svc.PasswordConfirm.Status(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTwoFactor_ChallengeWithRecoveryCode(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	enableAndConfirm(t, e)
	codes, err := e.svc.TwoFactor.RecoveryCodes(ctx, e.user.ID)
	require.NoError(t, err)

	s := e.startSession(t)
	res, err := e.svc.Login.Login(ctx, s, LoginInput{Email: "ADA@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.True(t, res.TwoFactorRequired)
	assert.Equal(t, "/two-factor-challenge", res.Redirect)
	assert.Nil(t, res.Establishment)
	assert.False(t, e.loadSession(t, s.ID).Authenticated())

	p, err := e.svc.TwoFactor.Pending(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, e.user.ID, p.UserID)

	// Un código inválido deja el challenge vivo.
	_, err = e.svc.TwoFactor.Verify(ctx, s.ID, VerifyInput{RecoveryCode: "WRONG000"})
	assert.ErrorIs(t, err, ErrInvalidRecoveryCode)
	_, err = e.svc.TwoFactor.Pending(ctx, s.ID)
	require.NoError(t, err)

	est, err := e.svc.TwoFactor.Verify(ctx, s.ID, VerifyInput{RecoveryCode: codes[0]})
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", est.Redirect)
	assert.NotEqual(t, s.ID, est.SessionID)

	ns := e.loadSession(t, est.SessionID)
	assert.Equal(t, e.user.ID, ns.UserID)
	assert.True(t, ns.TwoFactorVerifiedFor(e.user.ID))
	assert.Nil(t, ns.TwoFactorPending)

	_, err = e.sessions.Store().Get(ctx, s.ID)
	assert.Error(t, err)

	left, err := e.svc.TwoFactor.RecoveryCodes(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Len(t, left, 7)

	_, err = e.svc.TwoFactor.Verify(ctx, est.SessionID, VerifyInput{RecoveryCode: codes[0]})
	assert.ErrorIs(t, err, ErrNoPendingChallenge)
}

func TestTwoFactor_ChallengeWithTOTP(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	secret := enableAndConfirm(t, e)

	s := e.startSession(t)
	_, err := e.svc.Login.Login(ctx, s, LoginInput{Email: e.user.Email, Password: testPassword, Remember: true})
	require.NoError(t, err)

	_, err = e.svc.TwoFactor.Verify(ctx, s.ID, VerifyInput{Code: "abc"})
	assert.ErrorIs(t, err, ErrInvalidCode)

	code, err := totp.CurrentCode(secret, e.clock.Now())
	require.NoError(t, err)
	est, err := e.svc.TwoFactor.Verify(ctx, s.ID, VerifyInput{Code: code})
	require.NoError(t, err)
	assert.NotEmpty(t, est.RememberToken)

	claims, err := e.remember.Parse(est.RememberToken)
	require.NoError(t, err)
	assert.True(t, claims.TwoFactor)
}

func TestTwoFactor_TOTPStepSingleUse(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	secret := enableAndConfirm(t, e)
	code, err := totp.CurrentCode(secret, e.clock.Now())
	require.NoError(t, err)

	first := e.startSession(t)
	_, err = e.svc.Login.Login(ctx, first, LoginInput{Email: e.user.Email, Password: testPassword})
	require.NoError(t, err)
	_, err = e.svc.TwoFactor.Verify(ctx, first.ID, VerifyInput{Code: code})
	require.NoError(t, err)

	// mismo código desde otra sesión, dentro de la ventana
	second := e.startSession(t)
	_, err = e.svc.Login.Login(ctx, second, LoginInput{Email: e.user.Email, Password: testPassword})
	require.NoError(t, err)
	_, err = e.svc.TwoFactor.Verify(ctx, second.ID, VerifyInput{Code: code})
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = e.svc.TwoFactor.Pending(ctx, second.ID)
	require.NoError(t, err)

	e.clock.Advance(totp.Period * time.Second)
	next, err := totp.CurrentCode(secret, e.clock.Now())
	require.NoError(t, err)
	_, err = e.svc.TwoFactor.Verify(ctx, second.ID, VerifyInput{Code: next})
	require.NoError(t, err)
}

func TestTwoFactor_ConfirmCodeNotReusableAtChallenge(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.svc.TwoFactor.Enable(ctx, e.user.ID))
	secret, err := e.svc.TwoFactor.SecretKey(ctx, e.user.ID)
	require.NoError(t, err)
	code, err := totp.CurrentCode(secret, e.clock.Now())
	require.NoError(t, err)
	require.NoError(t, e.svc.TwoFactor.Confirm(ctx, "", e.user.ID, code))
	require.NotNil(t, e.reloadUser(t).TwoFactor.LastUsedStep)

	s := e.startSession(t)
	_, err = e.svc.Login.Login(ctx, s, LoginInput{Email: e.user.Email, Password: testPassword})
	require.NoError(t, err)
	_, err = e.svc.TwoFactor.Verify(ctx, s.ID, VerifyInput{Code: code})
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestTwoFactor_ParallelVerifyEstablishesOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	secret := enableAndConfirm(t, e)

	s := e.startSession(t)
	_, err := e.svc.Login.Login(ctx, s, LoginInput{Email: e.user.Email, Password: testPassword})
	require.NoError(t, err)
	code, err := totp.CurrentCode(secret, e.clock.Now())
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.svc.TwoFactor.Verify(ctx, s.ID, VerifyInput{Code: code}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
