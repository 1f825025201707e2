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

// PasswordController maneja confirmación de password y el flujo de reset.
type PasswordController struct {
	confirm svc.PasswordConfirmService
	reset   svc.PasswordResetService
}

func NewPasswordController(confirm svc.PasswordConfirmService, reset svc.PasswordResetService) *PasswordController {
	return &PasswordController{confirm: confirm, reset: reset}
}

// Confirm maneja POST /user/confirm-password.
func (c *PasswordController) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("password.confirm"))

	var req dto.PasswordRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if req.Password == "" {
		httperrors.WriteError(w, httperrors.Validation("password", "El campo es obligatorio."))
		return
	}

	s := mw.GetSession(ctx)
	if err := c.confirm.Confirm(ctx, s.ID, s.UserID, req.Password); err != nil {
		handleServiceError(w, err, log)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Status maneja GET /user/confirmed-password-status.
func (c *PasswordController) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("password.confirmed_status"))

	ok, err := c.confirm.Status(ctx, mw.GetSession(ctx).ID)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ConfirmedPasswordStatusResponse{Confirmed: ok})
}

// Forgot maneja POST /forgot-password. Emails conocidos y desconocidos reciben
// la misma respuesta.
func (c *PasswordController) Forgot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("password.forgot"))

	var req dto.ForgotPasswordRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := helpers.Validate(&req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	if err := c.reset.SendResetLink(ctx, req.Email); err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "password_reset_link_sent"})
}

// Reset maneja POST /reset-password.
func (c *PasswordController) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("password.reset"))

	var req dto.ResetPasswordRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := helpers.Validate(&req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	if err := c.reset.Reset(ctx, svc.ResetInput{Email: req.Email, Token: req.Token, Password: req.Password}); err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "password_reset"})
}
