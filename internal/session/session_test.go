package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func stores(t *testing.T) map[string]Store {
	_, rdb := newTestRedis(t)
	return map[string]Store{
		"memory": NewMemoryStore(time.Minute),
		"redis":  NewRedisStore(rdb, "test:"),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := NewID()
			require.NoError(t, err)

			_, err = st.Get(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound)

			now := time.Now().UTC().Truncate(time.Second)
			s := &Session{
				ID:               id,
				UserID:           "u1",
				TwoFactorPending: &TwoFactorPending{UserID: "u1", Remember: true, IssuedAt: now},
				Ceremony: &Ceremony{
					Kind:      CeremonyRegistration,
					UserID:    "u1",
					Data:      json.RawMessage(`{"challenge":"abc"}`),
					ExpiresAt: now.Add(time.Minute),
				},
				CreatedAt: now,
			}
			require.NoError(t, st.Save(ctx, s, time.Minute))

			got, err := st.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, got.ID)
			assert.Equal(t, "u1", got.UserID)
			require.NotNil(t, got.TwoFactorPending)
			assert.True(t, got.TwoFactorPending.Remember)
			require.NotNil(t, got.Ceremony)
			assert.JSONEq(t, `{"challenge":"abc"}`, string(got.Ceremony.Data))

			require.NoError(t, st.Delete(ctx, id))
			_, err = st.Get(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, st.Ping(ctx))
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := st.Update(ctx, "nope", time.Minute, func(s *Session) error { return nil })
			assert.ErrorIs(t, err, ErrNotFound)

			s := &Session{ID: "sid"}
			require.NoError(t, st.Save(ctx, s, time.Minute))

			out, err := st.Update(ctx, "sid", time.Minute, func(s *Session) error {
				s.UserID = "u2"
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, "u2", out.UserID)

			// un error en fn no escribe
			boom := errors.New("boom")
			_, err = st.Update(ctx, "sid", time.Minute, func(s *Session) error {
				s.UserID = "other"
				return boom
			})
			assert.ErrorIs(t, err, boom)

			got, err := st.Get(ctx, "sid")
			require.NoError(t, err)
			assert.Equal(t, "u2", got.UserID)
		})
	}
}

// Consumir una ceremonia debe pasar una sola vez aunque haya carreras.
func TestStoreUpdateConsumesOnce(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := &Session{ID: "race", Ceremony: &Ceremony{Kind: CeremonyAuthentication}}
			require.NoError(t, st.Save(ctx, s, time.Minute))

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := st.Update(ctx, "race", time.Minute, func(s *Session) error {
						if s.Ceremony == nil {
							return ErrAbort
						}
						s.Ceremony = nil
						return nil
					})
					if err == nil {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestRedisStoreHashesKeysAndExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	st := NewRedisStore(rdb, "acc:")
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, &Session{ID: "raw-cookie"}, time.Minute))
	assert.False(t, mr.Exists("acc:sess:raw-cookie"))
	assert.True(t, mr.Exists("acc:sess:"+storageKey("raw-cookie")))

	mr.FastForward(2 * time.Minute)
	_, err := st.Get(ctx, "raw-cookie")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionPredicates(t *testing.T) {
	now := time.Now()
	var nilSess *Session
	assert.False(t, nilSess.Authenticated())

	s := &Session{UserID: "u1", TwoFactorVerified: "u1"}
	assert.True(t, s.Authenticated())
	assert.True(t, s.TwoFactorVerifiedFor("u1"))
	assert.False(t, s.TwoFactorVerifiedFor("u2"))
	assert.False(t, s.TwoFactorVerifiedFor(""))

	assert.False(t, s.PasswordConfirmedWithin(now, time.Hour))
	at := now.Add(-30 * time.Minute)
	s.PasswordConfirmedAt = &at
	assert.True(t, s.PasswordConfirmedWithin(now, time.Hour))
	assert.False(t, s.PasswordConfirmedWithin(now, 10*time.Minute))

	c := &Ceremony{ExpiresAt: now}
	assert.True(t, c.Expired(now))
	assert.False(t, c.Expired(now.Add(-time.Second)))
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(NewMemoryStore(time.Minute), CookieConfig{Name: "sid", Secure: true}, time.Hour)

	// sin cookie
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := m.Load(r)
	assert.ErrorIs(t, err, ErrNotFound)

	w := httptest.NewRecorder()
	s, err := m.LoadOrStart(w, r)
	require.NoError(t, err)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	ck := cookies[0]
	assert.Equal(t, "sid", ck.Name)
	assert.Equal(t, s.ID, ck.Value)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, 3600, ck.MaxAge)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(ck)
	got, err := m.Load(r2)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = m.Update(context.Background(), s.ID, func(s *Session) error {
		s.UserID = "u1"
		return nil
	})
	require.NoError(t, err)

	// Regenerate conserva el contenido con otro id
	got, err = m.Load(r2)
	require.NoError(t, err)
	ns, err := m.Regenerate(context.Background(), got, func(s *Session) { s.Remember = true })
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, ns.ID)
	assert.Equal(t, "u1", ns.UserID)
	assert.True(t, ns.Remember)
	_, err = m.Store().Get(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	w = httptest.NewRecorder()
	m.WriteCookie(w, ns.ID)
	assert.Equal(t, ns.ID, w.Result().Cookies()[0].Value)

	w = httptest.NewRecorder()
	require.NoError(t, m.Destroy(context.Background(), ns.ID))
	m.ClearCookie(w)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	_, err = m.Store().Get(context.Background(), ns.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingDelete struct {
	Store
}

func (failingDelete) Delete(ctx context.Context, id string) error {
	return errors.New("redis: connection refused")
}

func TestManagerRegenerate_LogsFailedDelete(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	mem := NewMemoryStore(time.Minute)
	m := NewManager(failingDelete{Store: mem}, CookieConfig{}, time.Hour)
	old, err := m.Start(ctx, httptest.NewRecorder())
	require.NoError(t, err)

	ns, err := m.Regenerate(ctx, old, nil)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, ns.ID)

	entries := logs.FilterMessage("delete previous session failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.NotEmpty(t, fields["session"])
	assert.NotEqual(t, old.ID, fields["session"])
	assert.Contains(t, fields["error"], "connection refused")
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, ParseSameSite("Strict"))
	assert.Equal(t, http.SameSiteNoneMode, ParseSameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite(""))
}
