package auth

import (
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
)

// ProfileResponse es la vista pública del usuario.
type ProfileResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

// UpdateProfileRequest es el body de PATCH /user/profile.
type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
}

// NewProfileResponse mapea la entidad a la respuesta.
func NewProfileResponse(u *repository.User) ProfileResponse {
	return ProfileResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		TwoFactorEnabled: u.TwoFactor.Enabled(),
		CreatedAt:        u.CreatedAt,
	}
}
