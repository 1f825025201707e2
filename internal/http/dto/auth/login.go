// Package auth contiene DTOs para endpoints de autenticación.
package auth

// LoginRequest es el body de POST /login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

// LoginResponse: TwoFactor=true significa que falta el segundo factor.
type LoginResponse struct {
	TwoFactor bool   `json:"two_factor"`
	Redirect  string `json:"redirect"`
}

// RedirectResponse es la respuesta de las acciones que en un navegador redirigen.
type RedirectResponse struct {
	Redirect string `json:"redirect"`
}

// StatusResponse es un acuse genérico ({status: "..."}).
type StatusResponse struct {
	Status string `json:"status"`
}

// CSRFResponse devuelve el token también en el body para clientes SPA.
type CSRFResponse struct {
	Token string `json:"csrf_token"`
}
