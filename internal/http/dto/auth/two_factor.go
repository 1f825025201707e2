package auth

// ConfirmTwoFactorRequest es el body de POST /user/confirmed-two-factor-authentication.
type ConfirmTwoFactorRequest struct {
	Code string `json:"code" validate:"required"`
}

// TwoFactorChallengeRequest acepta un código TOTP o un recovery code.
type TwoFactorChallengeRequest struct {
	Code         string `json:"code,omitempty"`
	RecoveryCode string `json:"recovery_code,omitempty"`
}

// PasswordRequest se usa en disable 2FA, regenerar recovery codes y confirm-password.
// En los dos primeros la password es opcional si la sesión ya tiene una confirmación fresca.
type PasswordRequest struct {
	Password string `json:"password"`
}

type QRCodeResponse struct {
	SVG string `json:"svg"`
}

type SecretKeyResponse struct {
	SecretKey string `json:"secretKey"`
}

type TwoFactorStatusResponse struct {
	Enabled                bool `json:"enabled"`
	Confirmed              bool `json:"confirmed"`
	RecoveryCodesRemaining int  `json:"recoveryCodesRemaining"`
}

// TwoFactorChallengeView describe el challenge pendiente (GET /two-factor-challenge).
type TwoFactorChallengeView struct {
	Pending  bool   `json:"pending"`
	Remember bool   `json:"remember"`
	Action   string `json:"action"`
}

type ConfirmedPasswordStatusResponse struct {
	Confirmed bool `json:"confirmed"`
}
