// Package totp genera y verifica códigos RFC 6238 y los recovery codes de respaldo.
package totp

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period es el time-step en segundos.
	Period = 30
	// Digits es la longitud del código.
	Digits = 6
	// SecretSize en bytes (160 bits).
	SecretSize = 20
	// DefaultSkew acepta t-30s, t y t+30s.
	DefaultSkew = 1
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

func validateOpts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateSecret retorna 20 bytes aleatorios en base32 sin padding.
func GenerateSecret() (string, error) {
	raw := make([]byte, SecretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("totp: random: %w", err)
	}
	return b32.EncodeToString(raw), nil
}

// CurrentCode devuelve el código de 6 dígitos vigente en t.
func CurrentCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, validateOpts(0))
}

// VerifyCode verifica con la ventana por defecto (±1 step).
func VerifyCode(secret, code string, t time.Time) bool {
	return VerifyCodeWindow(secret, code, t, DefaultSkew)
}

// VerifyCodeWindow compara en tiempo constante contra cada step de la ventana.
// Input malformado devuelve false.
func VerifyCodeWindow(secret, code string, t time.Time, skew uint) bool {
	code = strings.TrimSpace(code)
	if !wellFormed(code) || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t, validateOpts(skew))
	if err != nil {
		return false
	}
	return ok
}

// Step es el contador RFC 6238 de t.
func Step(t time.Time) int64 { return t.Unix() / Period }

// MatchStep es VerifyCodeWindow pero devuelve el step que coincidió, saltando
// los steps <= *after (ya usados).
func MatchStep(secret, code string, t time.Time, skew uint, after *int64) (int64, bool) {
	code = strings.TrimSpace(code)
	if !wellFormed(code) || secret == "" {
		return 0, false
	}
	current := Step(t)
	for step := current - int64(skew); step <= current+int64(skew); step++ {
		if after != nil && step <= *after {
			continue
		}
		ok, err := totp.ValidateCustom(code, secret, time.Unix(step*Period, 0), validateOpts(0))
		if err == nil && ok {
			return step, true
		}
	}
	return 0, false
}

func wellFormed(code string) bool {
	if len(code) != Digits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ErrMissingLabel se devuelve si falta issuer o account.
var ErrMissingLabel = errors.New("totp: issuer and account name are required")

// OTPAuthURL construye otpauth://totp/{issuer}:{account}?secret=...&issuer=...
func OTPAuthURL(issuer, accountName, secret string) (string, error) {
	if issuer == "" || accountName == "" {
		return "", ErrMissingLabel
	}
	raw, err := b32.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil {
		return "", fmt.Errorf("totp: decode secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      Period,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("totp: build key: %w", err)
	}
	return key.URL(), nil
}
