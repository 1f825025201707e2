package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/accountd/internal/http/middlewares"
)

// registerGuestRoutes registra login, reset de password, challenge 2FA y el
// login con passkey. No exigen sesión autenticada.
func registerGuestRoutes(r chi.Router, d Deps) {
	c := d.Auth

	r.Get("/csrf", c.Session.CSRF)

	r.With(limit(d.Limits.Login, mw.IPEmailRateKey)).Post("/login", c.Login.Login)
	r.Post("/logout", c.Login.Logout)

	r.With(limit(d.Limits.Forgot, mw.IPEmailRateKey)).Post("/forgot-password", c.Password.Forgot)
	r.With(limit(d.Limits.General, mw.IPPathRateKey)).Post("/reset-password", c.Password.Reset)

	r.Get(d.ChallengePath, c.TwoFactor.ChallengeView)
	r.With(limit(d.Limits.Verify, mw.SessionRateKey)).Post(d.ChallengePath, c.TwoFactor.Verify)

	r.Group(func(r chi.Router) {
		r.Use(mw.WithNoStore())
		r.With(limit(d.Limits.General, mw.IPPathRateKey)).Post("/passkeys/authentication-options", c.Passkeys.AuthenticationOptions)
		r.With(limit(d.Limits.Login, mw.SessionRateKey)).Post("/passkeys/authenticate", c.Passkeys.Authenticate)
		r.With(limit(d.Limits.General, mw.IPPathRateKey)).Post("/passkeys/check-user", c.Passkeys.CheckUser)
	})
}

// registerAccountRoutes registra lo que requiere sesión autenticada y la
// verificación 2FA completa.
func registerAccountRoutes(r chi.Router, d Deps) {
	c := d.Auth

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth(), mw.RequireTwoFactor(d.TwoFactorGate, d.ChallengePath))

		r.Get("/dashboard", c.Session.Dashboard)

		r.Post("/user/confirm-password", c.Password.Confirm)
		r.Get("/user/confirmed-password-status", c.Password.Status)

		r.Get("/user/profile", c.Profile.Get)
		r.Patch("/user/profile", c.Profile.Update)

		registerTwoFactorRoutes(r, d)

		r.Get("/passkeys", c.Passkeys.List)
		r.Post("/passkeys", c.Passkeys.Register)
		r.Post("/passkeys/registration-options", c.Passkeys.RegistrationOptions)
		r.Put("/passkeys/{id}", c.Passkeys.Rename)
		r.Delete("/passkeys/{id}", c.Passkeys.Delete)
	})
}

func registerTwoFactorRoutes(r chi.Router, d Deps) {
	c := d.Auth.TwoFactor
	confirmed := mw.RequirePasswordConfirmed(d.PasswordConfirm)

	r.With(confirmed).Post("/user/two-factor-authentication", c.Enable)
	// disable y regenerate validan la password del body si la confirmación no está fresca
	r.Delete("/user/two-factor-authentication", c.Disable)
	r.With(limit(d.Limits.Verify, mw.SessionRateKey)).Post("/user/confirmed-two-factor-authentication", c.Confirm)

	r.With(confirmed).Get("/user/two-factor-qr-code", c.QRCode)
	r.With(confirmed).Get("/user/two-factor-secret-key", c.SecretKey)
	r.With(confirmed).Get("/user/two-factor-recovery-codes", c.RecoveryCodes)
	r.Post("/user/two-factor-recovery-codes", c.RegenerateRecoveryCodes)
	r.Get("/user/two-factor-status", c.Status)
}
