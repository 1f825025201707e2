package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// CookieConfig describe la cookie que transporta el id de sesión.
type CookieConfig struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// Manager une el Store con la cookie del navegador.
type Manager struct {
	store  Store
	cookie CookieConfig
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(store Store, cookie CookieConfig, ttl time.Duration) *Manager {
	if cookie.Name == "" {
		cookie.Name = "accountd_session"
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	if cookie.SameSite == 0 {
		cookie.SameSite = http.SameSiteLaxMode
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Manager{store: store, cookie: cookie, ttl: ttl, now: time.Now}
}

func (m *Manager) Store() Store       { return m.store }
func (m *Manager) TTL() time.Duration { return m.ttl }

// ParseSameSite traduce "lax" | "strict" | "none" a http.SameSite.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Load devuelve la sesión de la cookie o ErrNotFound.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	ck, err := r.Cookie(m.cookie.Name)
	if err != nil || strings.TrimSpace(ck.Value) == "" {
		return nil, ErrNotFound
	}
	return m.store.Get(r.Context(), ck.Value)
}

// Start crea una sesión vacía y escribe la cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter) (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	s := &Session{ID: id, CreatedAt: now, LastSeenAt: now}
	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return nil, err
	}
	m.writeCookie(w, id, m.ttl)
	return s, nil
}

// LoadOrStart devuelve la sesión existente o inicia una nueva.
func (m *Manager) LoadOrStart(w http.ResponseWriter, r *http.Request) (*Session, error) {
	s, err := m.Load(r)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return m.Start(r.Context(), w)
}

// Update aplica fn atómicamente y renueva el TTL.
func (m *Manager) Update(ctx context.Context, id string, fn UpdateFunc) (*Session, error) {
	return m.store.Update(ctx, id, m.ttl, func(s *Session) error {
		if err := fn(s); err != nil {
			return err
		}
		s.LastSeenAt = m.now().UTC()
		return nil
	})
}

// Regenerate mueve el contenido a un id nuevo y borra el anterior.
// El contenido se puede ajustar con fn antes de guardarlo. La cookie la
// escribe quien llama con WriteCookie.
func (m *Manager) Regenerate(ctx context.Context, old *Session, fn func(*Session)) (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	ns := *old
	ns.ID = id
	ns.LastSeenAt = m.now().UTC()
	if fn != nil {
		fn(&ns)
	}
	if err := m.store.Save(ctx, &ns, m.ttl); err != nil {
		return nil, err
	}
	if old.ID != "" {
		if err := m.store.Delete(ctx, old.ID); err != nil {
			// el id anterior sigue válido hasta su TTL
			logger.From(ctx).Warn("delete previous session failed", logger.SessionID(old.ID), logger.Err(err))
		}
	}
	return &ns, nil
}

// Destroy borra la sesión del Store.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return m.store.Delete(ctx, id)
}

// WriteCookie apunta la cookie de sesión a id.
func (m *Manager) WriteCookie(w http.ResponseWriter, id string) {
	m.writeCookie(w, id, m.ttl)
}

// ClearCookie expira la cookie de sesión.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	m.writeCookie(w, "", -1)
}

func (m *Manager) writeCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	ck := &http.Cookie{
		Name:     m.cookie.Name,
		Value:    value,
		Path:     m.cookie.Path,
		Domain:   m.cookie.Domain,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: m.cookie.SameSite,
	}
	if ttl < 0 {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	} else {
		ck.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, ck)
}
