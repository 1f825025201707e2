package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/accountd/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/accountd/internal/http/errors"
	mw "github.com/dropDatabas3/accountd/internal/http/middlewares"
	svc "github.com/dropDatabas3/accountd/internal/http/services/auth"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	tokens "github.com/dropDatabas3/accountd/internal/security/token"
)

// SessionController sirve el token CSRF y la página protegida de inicio.
type SessionController struct {
	profile svc.ProfileService
	cookies *Cookies
}

func NewSessionController(profile svc.ProfileService, cookies *Cookies) *SessionController {
	return &SessionController{profile: profile, cookies: cookies}
}

// CSRF maneja GET /csrf: emite la cookie double-submit y devuelve el mismo valor.
func (c *SessionController) CSRF(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("csrf"))

	tok, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		log.Error("csrf token generation failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	// legible desde JS: el cliente lo copia al header
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookies.CSRFName,
		Value:    tok,
		Path:     "/",
		Secure:   c.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeSensitive(w, http.StatusOK, dto.CSRFResponse{Token: tok})
}

// Dashboard maneja GET /dashboard. Llega acá sólo pasando auth y el gate 2FA.
func (c *SessionController) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("dashboard"))

	u, err := c.profile.Get(ctx, mw.GetUserID(ctx))
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeSensitive(w, http.StatusOK, dto.NewProfileResponse(u))
}
