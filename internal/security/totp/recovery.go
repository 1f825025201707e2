package totp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"
)

const (
	RecoveryCodeCount  = 8
	RecoveryCodeLength = 8

	// 32 símbolos, sin 0/O/1/I
	recoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateRecoveryCodes devuelve RecoveryCodeCount códigos distintos.
func GenerateRecoveryCodes() ([]string, error) {
	seen := make(map[string]struct{}, RecoveryCodeCount)
	codes := make([]string, 0, RecoveryCodeCount)
	for len(codes) < RecoveryCodeCount {
		c, err := recoveryCode()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	return codes, nil
}

func recoveryCode() (string, error) {
	buf := make([]byte, RecoveryCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("totp: random: %w", err)
	}
	for i := range buf {
		buf[i] = recoveryAlphabet[int(buf[i])%len(recoveryAlphabet)]
	}
	return string(buf), nil
}

// NormalizeRecoveryCode pasa a mayúsculas y quita espacios y guiones.
func NormalizeRecoveryCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// MatchRecoveryCode devuelve el índice del código o -1.
// Recorre el set completo para no filtrar la posición por timing.
func MatchRecoveryCode(codes []string, submitted string) int {
	submitted = NormalizeRecoveryCode(submitted)
	if len(submitted) != RecoveryCodeLength {
		return -1
	}
	idx := -1
	for i, c := range codes {
		if subtle.ConstantTimeCompare([]byte(c), []byte(submitted)) == 1 && idx == -1 {
			idx = i
		}
	}
	return idx
}

// RemoveRecoveryCode devuelve una copia del set sin el índice i.
func RemoveRecoveryCode(codes []string, i int) []string {
	out := make([]string, 0, len(codes))
	out = append(out, codes[:i]...)
	return append(out, codes[i+1:]...)
}
