package auth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/accountd/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/accountd/internal/http/errors"
	"github.com/dropDatabas3/accountd/internal/http/helpers"
	mw "github.com/dropDatabas3/accountd/internal/http/middlewares"
	svc "github.com/dropDatabas3/accountd/internal/http/services/auth"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// ProfileController maneja GET/PATCH /user/profile.
type ProfileController struct {
	service svc.ProfileService
}

func NewProfileController(service svc.ProfileService) *ProfileController {
	return &ProfileController{service: service}
}

func (c *ProfileController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("profile.get"))

	u, err := c.service.Get(ctx, mw.GetUserID(ctx))
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeSensitive(w, http.StatusOK, dto.NewProfileResponse(u))
}

func (c *ProfileController) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("profile.update"))

	var req dto.UpdateProfileRequest
	if err := helpers.ReadJSON(w, r, &req, 0); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := helpers.Validate(&req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	u, err := c.service.Update(ctx, mw.GetUserID(ctx), svc.ProfileInput{Name: req.Name, Email: req.Email})
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeSensitive(w, http.StatusOK, dto.NewProfileResponse(u))
}
