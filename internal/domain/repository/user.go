package repository

import (
	"context"
	"time"
)

// User es la cuenta. Los datos de 2FA viven en TwoFactor.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	TwoFactor    TwoFactorProfile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Email        string
	Name         string
	PasswordHash string
}

// UpdateProfileInput contiene los campos editables del perfil.
type UpdateProfileInput struct {
	Name  string
	Email string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// GetByID busca un usuario por ID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, userID string) (*User, error)

	// GetByEmail busca un usuario por email (case-insensitive).
	// Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create crea un nuevo usuario.
	// Retorna ErrConflict si el email ya existe.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// UpdateProfile actualiza nombre y email.
	// Retorna ErrConflict si el email pertenece a otro usuario.
	UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) error

	// UpdatePasswordHash reemplaza el hash del password.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// Ping verifica la conexión con el storage.
	Ping(ctx context.Context) error
}
