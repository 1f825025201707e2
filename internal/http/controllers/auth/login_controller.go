package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/accountd/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/accountd/internal/http/errors"
	"github.com/dropDatabas3/accountd/internal/http/helpers"
	mw "github.com/dropDatabas3/accountd/internal/http/middlewares"
	svc "github.com/dropDatabas3/accountd/internal/http/services/auth"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// LoginController maneja login por password y logout.
type LoginController struct {
	service svc.LoginService
	cookies *Cookies
}

func NewLoginController(service svc.LoginService, cookies *Cookies) *LoginController {
	return &LoginController{service: service, cookies: cookies}
}

// Login maneja POST /login.
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("login"))

	var req dto.LoginRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := helpers.Validate(&req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.Login(ctx, mw.GetSession(ctx), svc.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
	})
	if err != nil {
		handleServiceError(w, err, log)
		return
	}

	if res.Establishment != nil {
		c.cookies.establish(w, res.Establishment)
	}
	writeSensitive(w, http.StatusOK, dto.LoginResponse{TwoFactor: res.TwoFactorRequired, Redirect: res.Redirect})
}

// Logout maneja POST /logout. Borra la sesión entera, challenge pendiente incluido.
func (c *LoginController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("logout"))

	if s := mw.GetSession(ctx); s != nil {
		if err := c.service.Logout(ctx, s.ID); err != nil {
			handleServiceError(w, err, log)
			return
		}
	}
	c.cookies.clear(w)
	w.WriteHeader(http.StatusNoContent)
}
