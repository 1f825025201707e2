package auth

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
)

// RegisterPasskeyRequest es el body de POST /passkeys. Credential es el
// PublicKeyCredential que devolvió navigator.credentials.create().
type RegisterPasskeyRequest struct {
	Name       string          `json:"name" validate:"required,max=255"`
	Credential json.RawMessage `json:"credential" validate:"required"`
}

// RenamePasskeyRequest es el body de PUT /passkeys/{id}.
type RenamePasskeyRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// AuthenticatePasskeyRequest es el body de POST /passkeys/authenticate.
type AuthenticatePasskeyRequest struct {
	Credential json.RawMessage `json:"credential" validate:"required"`
}

// PasskeyOptionsRequest acepta un email opcional para acotar allowCredentials.
type PasskeyOptionsRequest struct {
	Email string `json:"email,omitempty" validate:"omitempty,email,max=255"`
}

type CheckUserRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type CheckUserResponse struct {
	HasPasskeys  bool `json:"hasPasskeys"`
	PasskeyCount int  `json:"passkeyCount"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// RegistrationOptionsResponse siempre serializa excludeCredentials, también vacío.
type RegistrationOptionsResponse struct {
	*protocol.PublicKeyCredentialCreationOptions
	ExcludeCredentials []protocol.CredentialDescriptor `json:"excludeCredentials"`
}

func NewRegistrationOptionsResponse(o *protocol.PublicKeyCredentialCreationOptions) RegistrationOptionsResponse {
	ex := o.CredentialExcludeList
	if ex == nil {
		ex = []protocol.CredentialDescriptor{}
	}
	return RegistrationOptionsResponse{PublicKeyCredentialCreationOptions: o, ExcludeCredentials: ex}
}

// AuthenticationOptionsResponse siempre serializa allowCredentials, también vacío
// (flujo de credencial descubrible).
type AuthenticationOptionsResponse struct {
	*protocol.PublicKeyCredentialRequestOptions
	AllowCredentials []protocol.CredentialDescriptor `json:"allowCredentials"`
}

func NewAuthenticationOptionsResponse(o *protocol.PublicKeyCredentialRequestOptions) AuthenticationOptionsResponse {
	allow := o.AllowedCredentials
	if allow == nil {
		allow = []protocol.CredentialDescriptor{}
	}
	return AuthenticationOptionsResponse{PublicKeyCredentialRequestOptions: o, AllowCredentials: allow}
}

// PasskeyItem es una credencial en el listado. Nunca incluye la clave pública.
type PasskeyItem struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	CredentialID string     `json:"credential_id"`
	Transports   []string   `json:"transports"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at"`
}

type PasskeyListResponse struct {
	Passkeys []PasskeyItem `json:"passkeys"`
}

func NewPasskeyItem(c repository.PasskeyCredential) PasskeyItem {
	tr := c.Transports
	if tr == nil {
		tr = []string{}
	}
	return PasskeyItem{
		ID:           c.ID,
		Name:         c.Name,
		CredentialID: base64.RawURLEncoding.EncodeToString(c.CredentialID),
		Transports:   tr,
		CreatedAt:    c.CreatedAt,
		LastUsedAt:   c.LastUsedAt,
	}
}

func NewPasskeyListResponse(creds []repository.PasskeyCredential) PasskeyListResponse {
	out := PasskeyListResponse{Passkeys: make([]PasskeyItem, 0, len(creds))}
	for _, c := range creds {
		out.Passkeys = append(out.Passkeys, NewPasskeyItem(c))
	}
	return out
}
