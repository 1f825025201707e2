package auth

import (
	"errors"
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/accountd/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/accountd/internal/http/errors"
	"github.com/dropDatabas3/accountd/internal/http/helpers"
	mw "github.com/dropDatabas3/accountd/internal/http/middlewares"
	svc "github.com/dropDatabas3/accountd/internal/http/services/auth"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// TwoFactorController maneja el ciclo de vida TOTP y el challenge de login.
type TwoFactorController struct {
	service svc.TwoFactorService
	cookies *Cookies
	paths   Paths
}

func NewTwoFactorController(service svc.TwoFactorService, cookies *Cookies, paths Paths) *TwoFactorController {
	return &TwoFactorController{service: service, cookies: cookies, paths: paths}
}

// Enable maneja POST /user/two-factor-authentication.
func (c *TwoFactorController) Enable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("twofactor.enable"))

	if err := c.service.Enable(ctx, mw.GetUserID(ctx)); err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "two-factor-authentication-enabled"})
}

// Confirm maneja POST /user/confirmed-two-factor-authentication.
func (c *TwoFactorController) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("twofactor.confirm"))

	var req dto.ConfirmTwoFactorRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if err := helpers.Validate(&req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	s := mw.GetSession(ctx)
	if err := c.service.Confirm(ctx, s.ID, s.UserID, req.Code); err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "two-factor-authentication-confirmed"})
}

// Disable maneja DELETE /user/two-factor-authentication.
func (c *TwoFactorController) Disable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("twofactor.disable"))

	var req dto.PasswordRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	s := mw.GetSession(ctx)
	if err := c.service.Disable(ctx, s.ID, s.UserID, req.Password); err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "two-factor-authentication-disabled"})
}

// QRCode maneja GET /user/two-factor-qr-code.
func (c *TwoFactorController) QRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("twofactor.qr"))

	svg, err := c.service.QRCode(ctx, mw.GetUserID(ctx))
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeSensitive(w, http.StatusOK, dto.QRCodeResponse{SVG: svg})
}

// SecretKey maneja GET /user/two-factor-secret-key.
func (c *TwoFactorController) SecretKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("twofactor.secret"))

	secret, err := c.service.SecretKey(ctx, mw.GetUserID(ctx))
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeSensitive(w, http.StatusOK, dto.SecretKeyResponse{SecretKey: secret})
}

// RecoveryCodes maneja GET /user/two-factor-recovery-codes.
func (c *TwoFactorController) RecoveryCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("twofactor.recovery_codes"))

	codes, err := c.service.RecoveryCodes(ctx, mw.GetUserID(ctx))
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	if codes == nil {
		codes = []string{}
	}
	writeSensitive(w, http.StatusOK, codes)
}

// RegenerateRecoveryCodes maneja POST /user/two-factor-recovery-codes.
func (c *TwoFactorController) RegenerateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("twofactor.recovery_regenerate"))

	var req dto.PasswordRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	s := mw.GetSession(ctx)
	if _, err := c.service.RegenerateRecoveryCodes(ctx, s.ID, s.UserID, req.Password); err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeSensitive(w, http.StatusOK, dto.StatusResponse{Status: "recovery-codes-generated"})
}

// Status maneja GET /user/two-factor-status.
func (c *TwoFactorController) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("twofactor.status"))

	st, err := c.service.Status(ctx, mw.GetUserID(ctx))
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.TwoFactorStatusResponse{
		Enabled:                st.Enabled,
		Confirmed:              st.Confirmed,
		RecoveryCodesRemaining: st.RecoveryCodesRemaining,
	})
}

// ChallengeView maneja GET /two-factor-challenge. Sin challenge pendiente
// el navegador vuelve al login y la API recibe 409.
func (c *TwoFactorController) ChallengeView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("twofactor.challenge_view"))

	p, err := c.service.Pending(ctx, mw.GetSession(ctx).ID)
	if err != nil {
		if errors.Is(err, svc.ErrNoPendingChallenge) && strings.Contains(r.Header.Get("Accept"), "text/html") {
			http.Redirect(w, r, c.paths.Login, http.StatusFound)
			return
		}
		handleServiceError(w, err, log)
		return
	}
	writeSensitive(w, http.StatusOK, dto.TwoFactorChallengeView{
		Pending:  true,
		Remember: p.Remember,
		Action:   c.paths.Challenge,
	})
}

// Verify maneja POST /two-factor-challenge.
func (c *TwoFactorController) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("twofactor.verify"))

	var req dto.TwoFactorChallengeRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	req.RecoveryCode = strings.TrimSpace(req.RecoveryCode)
	if req.Code == "" && req.RecoveryCode == "" {
		httperrors.WriteError(w, httperrors.Validation("code", "El campo es obligatorio."))
		return
	}

	est, err := c.service.Verify(ctx, mw.GetSession(ctx).ID, svc.VerifyInput{Code: req.Code, RecoveryCode: req.RecoveryCode})
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	c.cookies.establish(w, est)

	redirect := est.Redirect
	if redirect == "" {
		redirect = c.paths.Home
	}
	writeSensitive(w, http.StatusOK, dto.RedirectResponse{Redirect: redirect})
}
