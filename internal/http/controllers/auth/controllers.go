// Package auth contiene los controllers HTTP de login, 2FA, passkeys y cuenta.
package auth

import (
	"encoding/json"
	"net/http"
	"time"

	mw "github.com/dropDatabas3/accountd/internal/http/middlewares"
	svc "github.com/dropDatabas3/accountd/internal/http/services/auth"
	"github.com/dropDatabas3/accountd/internal/session"
)

// Cookies agrupa lo necesario para escribir las cookies de sesión, remember y csrf.
type Cookies struct {
	Sessions     *session.Manager
	RememberName string        // Default: "accountd_remember"
	RememberTTL  time.Duration // Default: 30 días
	CSRFName     string        // Default: "csrf_token"
	Secure       bool
}

func (c *Cookies) withDefaults() *Cookies {
	out := *c
	if out.RememberName == "" {
		out.RememberName = "accountd_remember"
	}
	if out.RememberTTL <= 0 {
		out.RememberTTL = 30 * 24 * time.Hour
	}
	if out.CSRFName == "" {
		out.CSRFName = "csrf_token"
	}
	return &out
}

// establish apunta la cookie de sesión al id regenerado y, si corresponde,
// escribe la cookie remember.
func (c *Cookies) establish(w http.ResponseWriter, est *svc.Establishment) {
	c.Sessions.WriteCookie(w, est.SessionID)
	if est.RememberToken == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.RememberName,
		Value:    est.RememberToken,
		Path:     "/",
		MaxAge:   int(c.RememberTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *Cookies) clear(w http.ResponseWriter) {
	c.Sessions.ClearCookie(w)
	mw.ClearRememberCookie(w, c.RememberName, c.Secure)
}

// Paths son los destinos de redirección que ven los clientes.
type Paths struct {
	Home      string // Default: "/dashboard"
	Login     string // Default: "/login"
	Challenge string // Default: "/two-factor-challenge"
}

func (p Paths) withDefaults() Paths {
	if p.Home == "" {
		p.Home = "/dashboard"
	}
	if p.Login == "" {
		p.Login = "/login"
	}
	if p.Challenge == "" {
		p.Challenge = "/two-factor-challenge"
	}
	return p
}

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Login     *LoginController
	TwoFactor *TwoFactorController
	Passkeys  *PasskeyController
	Password  *PasswordController
	Profile   *ProfileController
	Session   *SessionController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(s svc.Services, cookies Cookies, paths Paths) *Controllers {
	ck := cookies.withDefaults()
	paths = paths.withDefaults()
	return &Controllers{
		Login:     NewLoginController(s.Login, ck),
		TwoFactor: NewTwoFactorController(s.TwoFactor, ck, paths),
		Passkeys:  NewPasskeyController(s.Passkeys, ck, paths),
		Password:  NewPasswordController(s.PasswordConfirm, s.PasswordReset),
		Profile:   NewProfileController(s.Profile),
		Session:   NewSessionController(s.Profile, ck),
	}
}

// writeSensitive escribe JSON con los headers anti-cache de las respuestas con secretos.
func writeSensitive(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
