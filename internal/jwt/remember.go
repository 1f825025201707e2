// Package jwt firma y valida el token de la cookie "remember me".
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidRemember = errors.New("invalid_remember_token")
	ErrWeakSigningKey  = errors.New("remember signing key must be at least 32 bytes")
)

// RememberClaims viaja dentro de la cookie.
// TwoFactor indica que el segundo factor ya se verificó cuando se emitió.
// Fingerprint deriva del hash de password: cambiarla invalida los tokens.
type RememberClaims struct {
	TwoFactor   bool   `json:"tfa,omitempty"`
	Fingerprint string `json:"fp,omitempty"`
	jwtv5.RegisteredClaims
}

// RememberIssuer emite tokens HS256 de larga duración.
type RememberIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewRememberIssuer(key []byte, issuer string, ttl time.Duration) (*RememberIssuer, error) {
	if len(key) < 32 {
		return nil, ErrWeakSigningKey
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RememberIssuer{key: key, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// TTL es la vida del token (y de la cookie).
func (i *RememberIssuer) TTL() time.Duration { return i.ttl }

// Issue firma un token para userID.
func (i *RememberIssuer) Issue(userID string, twoFactor bool, fingerprint string) (string, error) {
	now := i.now()
	claims := RememberClaims{
		TwoFactor:   twoFactor,
		Fingerprint: fingerprint,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign remember token: %w", err)
	}
	return signed, nil
}

// Parse valida firma, issuer y exp. Cualquier falla es ErrInvalidRemember.
func (i *RememberIssuer) Parse(raw string) (*RememberClaims, error) {
	claims := &RememberClaims{}
	tok, err := jwtv5.ParseWithClaims(raw, claims, func(t *jwtv5.Token) (any, error) {
		return i.key, nil
	},
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(i.issuer),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid || claims.Subject == "" {
		return nil, ErrInvalidRemember
	}
	return claims, nil
}
