package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountd/internal/config"
	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/security/password"
	"github.com/dropDatabas3/accountd/internal/security/totp"
)

const testPassword = "correct horse battery"

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
	csrf   string
}

func newBrowser(t *testing.T, base string) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: base,
		client: &http.Client{
			Jar:           jar,
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

func (b *browser) do(method, path string, body any) (int, []byte) {
	b.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.base+path, rd)
	require.NoError(b.t, err)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.csrf != "" {
		req.Header.Set("X-CSRF-Token", b.csrf)
	}
	res, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(b.t, err)
	return res.StatusCode, out
}

func (b *browser) fetchCSRF() {
	b.t.Helper()
	status, body := b.do(http.MethodGet, "/csrf", nil)
	require.Equal(b.t, http.StatusOK, status)
	var tok struct {
		Token string `json:"csrf_token"`
	}
	require.NoError(b.t, json.Unmarshal(body, &tok))
	b.csrf = tok.Token
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func buildApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	t.Setenv("APP_ENV", "dev")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SESSION_DRIVER", "memory")

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Metrics.Enabled = true

	app, err := Build(context.Background(), cfg, Options{Version: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	hash, err := password.Hash(password.Default, testPassword)
	require.NoError(t, err)
	_, err = app.Repos.Users.Create(context.Background(), repository.CreateUserInput{
		Email: "ana@example.com", Name: "Ana", PasswordHash: hash,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(app.Handler)
	t.Cleanup(srv.Close)
	return app, srv
}

func TestBuild_HealthAndMetrics(t *testing.T) {
	_, srv := buildApp(t)
	b := newBrowser(t, srv.URL)

	status, body := b.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"ok"`)

	status, body = b.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"ready"`)

	b.fetchCSRF()
	status, body = b.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "accountd_http_requests_total")
}

func TestBuild_CSRFRequired(t *testing.T) {
	_, srv := buildApp(t)
	b := newBrowser(t, srv.URL)

	status, body := b.do(http.MethodPost, "/login", map[string]any{"email": "ana@example.com", "password": testPassword})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, string(body), "INVALID_CSRF_TOKEN")
}

func TestBuild_LoginTwoFactorLifecycle(t *testing.T) {
	_, srv := buildApp(t)
	b := newBrowser(t, srv.URL)
	b.fetchCSRF()

	// login sin 2FA
	status, body := b.do(http.MethodPost, "/login", map[string]any{"email": "ana@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, status, string(body))
	login := decode[map[string]any](t, body)
	assert.Equal(t, false, login["two_factor"])
	assert.Equal(t, "/dashboard", login["redirect"])

	status, _ = b.do(http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, status)

	// enable exige confirmación de password
	status, _ = b.do(http.MethodPost, "/user/two-factor-authentication", nil)
	require.Equal(t, http.StatusLocked, status)
	status, _ = b.do(http.MethodPost, "/user/confirm-password", map[string]any{"password": testPassword})
	require.Equal(t, http.StatusCreated, status)
	status, _ = b.do(http.MethodPost, "/user/two-factor-authentication", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = b.do(http.MethodGet, "/user/two-factor-secret-key", nil)
	require.Equal(t, http.StatusOK, status)
	secret := decode[map[string]string](t, body)["secretKey"]
	require.NotEmpty(t, secret)

	status, body = b.do(http.MethodGet, "/user/two-factor-qr-code", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, decode[map[string]string](t, body)["svg"], "<svg")

	// código incorrecto: error de campo
	status, body = b.do(http.MethodPost, "/user/confirmed-two-factor-authentication", map[string]any{"code": "000000x"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(body), `"code"`)

	code, err := totp.CurrentCode(secret, time.Now())
	require.NoError(t, err)
	status, body = b.do(http.MethodPost, "/user/confirmed-two-factor-authentication", map[string]any{"code": code})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = b.do(http.MethodGet, "/user/two-factor-recovery-codes", nil)
	require.Equal(t, http.StatusOK, status)
	codes := decode[[]string](t, body)
	require.Len(t, codes, 8)

	// logout y login de nuevo: ahora hay challenge
	status, _ = b.do(http.MethodPost, "/logout", nil)
	require.Equal(t, http.StatusNoContent, status)
	b.fetchCSRF()

	status, body = b.do(http.MethodPost, "/login", map[string]any{"email": "ana@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, status)
	login = decode[map[string]any](t, body)
	assert.Equal(t, true, login["two_factor"])
	assert.Equal(t, "/two-factor-challenge", login["redirect"])

	status, _ = b.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = b.do(http.MethodGet, "/two-factor-challenge", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, body)["pending"])

	status, body = b.do(http.MethodPost, "/two-factor-challenge", map[string]any{"recovery_code": codes[0]})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "/dashboard", decode[map[string]string](t, body)["redirect"])

	status, _ = b.do(http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = b.do(http.MethodGet, "/user/two-factor-status", nil)
	require.Equal(t, http.StatusOK, status)
	st := decode[map[string]any](t, body)
	assert.Equal(t, true, st["enabled"])
	assert.Equal(t, true, st["confirmed"])
	assert.EqualValues(t, 7, st["recoveryCodesRemaining"])

	// el challenge ya se consumió
	status, _ = b.do(http.MethodGet, "/two-factor-challenge", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestBuild_LoginInvalidCredentialsUniform(t *testing.T) {
	_, srv := buildApp(t)
	b := newBrowser(t, srv.URL)
	b.fetchCSRF()

	s1, wrong := b.do(http.MethodPost, "/login", map[string]any{"email": "ana@example.com", "password": "nope"})
	s2, unknown := b.do(http.MethodPost, "/login", map[string]any{"email": "nadie@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, s1)
	assert.Equal(t, s1, s2)
	assert.JSONEq(t, string(wrong), string(unknown))
}

func TestBuild_PasskeyCheckUserUniform(t *testing.T) {
	_, srv := buildApp(t)
	b := newBrowser(t, srv.URL)
	b.fetchCSRF()

	_, known := b.do(http.MethodPost, "/passkeys/check-user", map[string]any{"email": "ana@example.com"})
	status, unknown := b.do(http.MethodPost, "/passkeys/check-user", map[string]any{"email": "nadie@example.com"})
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"hasPasskeys":false,"passkeyCount":0}`, string(unknown))
	assert.JSONEq(t, string(known), string(unknown))

	status, body := b.do(http.MethodPost, "/passkeys/authentication-options", map[string]any{})
	require.Equal(t, http.StatusOK, status, string(body))
	opts := decode[map[string]any](t, body)
	assert.NotEmpty(t, opts["challenge"])
	assert.Equal(t, []any{}, opts["allowCredentials"])
}
