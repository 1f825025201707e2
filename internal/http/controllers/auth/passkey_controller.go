package auth

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-webauthn/webauthn/protocol"

	dto "github.com/dropDatabas3/accountd/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/accountd/internal/http/errors"
	"github.com/dropDatabas3/accountd/internal/http/helpers"
	mw "github.com/dropDatabas3/accountd/internal/http/middlewares"
	svc "github.com/dropDatabas3/accountd/internal/http/services/auth"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// PasskeyController maneja las ceremonias WebAuthn y la gestión de credenciales.
type PasskeyController struct {
	service svc.PasskeyService
	cookies *Cookies
	paths   Paths
}

func NewPasskeyController(service svc.PasskeyService, cookies *Cookies, paths Paths) *PasskeyController {
	return &PasskeyController{service: service, cookies: cookies, paths: paths}
}

// List maneja GET /passkeys.
func (c *PasskeyController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("passkeys.list"))

	creds, err := c.service.List(ctx, mw.GetUserID(ctx))
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.NewPasskeyListResponse(creds))
}

// RegistrationOptions maneja POST /passkeys/registration-options.
func (c *PasskeyController) RegistrationOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("passkeys.registration_options"))

	s := mw.GetSession(ctx)
	opts, err := c.service.RegistrationOptions(ctx, s.ID, s.UserID)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeSensitive(w, http.StatusOK, dto.NewRegistrationOptionsResponse(opts))
}

// Register maneja POST /passkeys.
func (c *PasskeyController) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("passkeys.register"))

	var req dto.RegisterPasskeyRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := helpers.Validate(&req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		log.Debug("attestation parse failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrCeremonyFailed)
		return
	}

	s := mw.GetSession(ctx)
	cred, err := c.service.Register(ctx, s.ID, s.UserID, req.Name, parsed)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.NewPasskeyItem(*cred))
}

// Rename maneja PUT /passkeys/{id}.
func (c *PasskeyController) Rename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("passkeys.rename"))

	var req dto.RenamePasskeyRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := helpers.Validate(&req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	if err := c.service.Rename(ctx, mw.GetUserID(ctx), chi.URLParam(r, "id"), req.Name); err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// Delete maneja DELETE /passkeys/{id}.
func (c *PasskeyController) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("passkeys.delete"))

	if err := c.service.Delete(ctx, mw.GetUserID(ctx), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// AuthenticationOptions maneja POST /passkeys/authentication-options.
func (c *PasskeyController) AuthenticationOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("passkeys.authentication_options"))

	var req dto.PasskeyOptionsRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := helpers.Validate(&req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	opts, err := c.service.AuthenticationOptions(ctx, mw.GetSession(ctx).ID, req.Email)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeSensitive(w, http.StatusOK, dto.NewAuthenticationOptionsResponse(opts))
}

// Authenticate maneja POST /passkeys/authenticate.
func (c *PasskeyController) Authenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("passkeys.authenticate"))

	var req dto.AuthenticatePasskeyRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := helpers.Validate(&req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		log.Debug("assertion parse failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrCeremonyFailed)
		return
	}

	est, err := c.service.Authenticate(ctx, mw.GetSession(ctx), parsed)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	c.cookies.establish(w, est)
	writeSensitive(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// CheckUser maneja POST /passkeys/check-user. Un email desconocido responde
// igual que uno sin passkeys.
func (c *PasskeyController) CheckUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("passkeys.check_user"))

	var req dto.CheckUserRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := helpers.Validate(&req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	p, err := c.service.CheckUser(ctx, req.Email)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.CheckUserResponse{HasPasskeys: p.HasPasskeys, PasskeyCount: p.Count})
}
