package auth

import (
	"bytes"
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	jwtx "github.com/dropDatabas3/accountd/internal/jwt"
	"github.com/dropDatabas3/accountd/internal/security/password"
	"github.com/dropDatabas3/accountd/internal/security/secretbox"
	"github.com/dropDatabas3/accountd/internal/session"
	"github.com/dropDatabas3/accountd/internal/store/memory"
)

const testPassword = "correct horse battery"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentReset struct {
	to, token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentReset
	err  error
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, to, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentReset{to: to, token: token})
	return m.err
}

// fakeEngine simula la librería WebAuthn: emite challenges conocidos y delega la
// verificación criptográfica en errores configurables.
type fakeEngine struct {
	challenge   string
	credential  *webauthn.Credential
	createErr   error
	validateErr error
	beganLogin  int
	beganDisc   int
}

func (f *fakeEngine) BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	cc := &protocol.CredentialCreation{}
	cc.Response.Challenge = protocol.URLEncodedBase64(f.challenge)
	cc.Response.User = protocol.UserEntity{ID: user.WebAuthnID(), DisplayName: user.WebAuthnDisplayName()}
	return cc, &webauthn.SessionData{Challenge: f.challenge, UserID: user.WebAuthnID()}, nil
}

func (f *fakeEngine) CreateCredential(user webauthn.User, sd webauthn.SessionData, parsed *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.credential, nil
}

func (f *fakeEngine) BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	f.beganLogin++
	ca := &protocol.CredentialAssertion{}
	ca.Response.Challenge = protocol.URLEncodedBase64(f.challenge)
	for _, c := range user.WebAuthnCredentials() {
		ca.Response.AllowedCredentials = append(ca.Response.AllowedCredentials, c.Descriptor())
	}
	return ca, &webauthn.SessionData{Challenge: f.challenge, UserID: user.WebAuthnID()}, nil
}

func (f *fakeEngine) BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	f.beganDisc++
	ca := &protocol.CredentialAssertion{}
	ca.Response.Challenge = protocol.URLEncodedBase64(f.challenge)
	return ca, &webauthn.SessionData{Challenge: f.challenge}, nil
}

func (f *fakeEngine) ValidateLogin(user webauthn.User, sd webauthn.SessionData, parsed *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return &webauthn.Credential{ID: parsed.RawID}, nil
}

func (f *fakeEngine) ValidateDiscoverableLogin(handler webauthn.DiscoverableUserHandler, sd webauthn.SessionData, parsed *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	if _, err := handler(parsed.RawID, parsed.Response.UserHandle); err != nil {
		return nil, err
	}
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return &webauthn.Credential{ID: parsed.RawID}, nil
}

type testEnv struct {
	store    *memory.Store
	sessions *session.Manager
	box      *secretbox.Box
	engine   *fakeEngine
	mailer   *fakeMailer
	clock    *testClock
	remember *jwtx.RememberIssuer
	svc      Services
	user     *repository.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith usa engine como motor WebAuthn; nil deja el fakeEngine.
func newTestEnvWith(t *testing.T, engine WebAuthnEngine) *testEnv {
	t.Helper()

	box, err := secretbox.New(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	remember, err := jwtx.NewRememberIssuer(bytes.Repeat([]byte("r"), 32), "accountd", 24*time.Hour)
	require.NoError(t, err)

	e := &testEnv{
		store:    memory.New(),
		sessions: session.NewManager(session.NewMemoryStore(time.Minute), session.CookieConfig{}, time.Hour),
		box:      box,
		engine:   &fakeEngine{challenge: "server-challenge"},
		mailer:   &fakeMailer{},
		clock:    &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		remember: remember,
	}
	if engine == nil {
		engine = e.engine
	}
	e.svc = NewServices(Deps{
		Users:     e.store.Users(),
		TwoFactor: e.store.TwoFactor(),
		Passkeys:  e.store.Passkeys(),
		Resets:    e.store.PasswordResets(),
		Secrets:   box,
		Sessions:  e.sessions,
		Remember:  remember,
		WebAuthn:  engine,
		Mailer:    e.mailer,
		Config: Config{
			Issuer:         "accountd",
			TOTPSkew:       1,
			PasswordParams: password.Fast,
		},
		Now: e.clock.Now,
	})
	e.user = e.createUser(t, "ada@example.com")
	return e
}

func (e *testEnv) createUser(t *testing.T, email string) *repository.User {
	t.Helper()
	hash, err := password.Hash(password.Fast, testPassword)
	require.NoError(t, err)
	u, err := e.store.Users().Create(context.Background(), repository.CreateUserInput{
		Email:        email,
		Name:         "Ada",
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) startSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := e.sessions.Start(context.Background(), httptest.NewRecorder())
	require.NoError(t, err)
	return s
}

func (e *testEnv) loadSession(t *testing.T, id string) *session.Session {
	t.Helper()
	s, err := e.sessions.Store().Get(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (e *testEnv) reloadUser(t *testing.T) *repository.User {
	t.Helper()
	u, err := e.store.Users().GetByID(context.Background(), e.user.ID)
	require.NoError(t, err)
	return u
}
