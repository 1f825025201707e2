// Package secretbox cifra secretos por usuario (TOTP, recovery codes) antes de persistirlos.
//
// El formato en reposo es base64(nonce)|base64(ciphertext) con AES-256-GCM, de modo que
// el valor entra en columnas de texto sin escapes.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSizeGCM      = 12  // AES-GCM nonce size recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

// ErrInvalidKey se devuelve cuando la clave maestra no decodifica a 32 bytes.
var ErrInvalidKey = errors.New("secretbox: master key must decode to 32 bytes")

// SecretStore es el contrato que consumen los servicios de 2FA.
type SecretStore interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// DecryptionError indica un ciphertext malformado o adulterado.
// Nunca debe interpretarse como "no hay secreto".
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return "secretbox: decrypt: " + e.Reason + ": " + e.Err.Error()
	}
	return "secretbox: decrypt: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// IsDecryptionError reports whether err (or anything it wraps) is a *DecryptionError.
func IsDecryptionError(err error) bool {
	var de *DecryptionError
	return errors.As(err, &de)
}

// Box implementa SecretStore con una clave fija.
type Box struct {
	aead cipher.AEAD
	rand io.Reader
}

var _ SecretStore = (*Box)(nil)

// New construye un Box a partir de una clave cruda de 32 bytes.
func New(key []byte) (*Box, error) {
	if len(key) != requiredKeyLength {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aead, rand: rand.Reader}, nil
}

// NewFromString acepta la clave en base64 (std o raw) o hex de 64 caracteres.
func NewFromString(key string) (*Box, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return New(k)
}

// ParseKey decodifica una clave maestra en base64 o hex.
func ParseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w; genere una con: accountctl keygen", ErrInvalidKey)
	}
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if len(key) == 64 {
		if h, err := hex.DecodeString(key); err == nil {
			return h, nil
		}
	}
	return nil, ErrInvalidKey
}

// GenerateKey devuelve una clave nueva en base64 estándar.
func GenerateKey() (string, error) {
	k := make([]byte, requiredKeyLength)
	if _, err := rand.Read(k); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k), nil
}

// Encrypt cifra plaintext y devuelve base64(nonce)|base64(ciphertext).
func (b *Box) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(b.rand, nonce); err != nil {
		return nil, fmt.Errorf("nonce random: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, plaintext, nil)

	out := base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct)
	return []byte(out), nil
}

// Decrypt recibe base64(nonce)|base64(ciphertext) y devuelve el texto plano.
func (b *Box) Decrypt(ciphertext []byte) ([]byte, error) {
	parts := strings.Split(string(ciphertext), sep)
	if len(parts) != 2 {
		return nil, &DecryptionError{Reason: "formato inválido: esperado base64(nonce)|base64(ciphertext)"}
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, &DecryptionError{Reason: "decode nonce", Err: err}
	}
	if len(nonce) != nonceSizeGCM {
		return nil, &DecryptionError{Reason: fmt.Sprintf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))}
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, &DecryptionError{Reason: "decode ciphertext", Err: err}
	}
	pt, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, &DecryptionError{Reason: "gcm auth", Err: err}
	}
	return pt, nil
}
