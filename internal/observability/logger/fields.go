package logger

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"go.uber.org/zap"
)

// ── HTTP ──

func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

func Method(v string) zap.Field {
	return zap.String("method", v)
}

func Path(v string) zap.Field {
	return zap.String("path", v)
}

func Status(v int) zap.Field {
	return zap.Int("status", v)
}

func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// UserAgent se recorta a 128 caracteres.
func UserAgent(v string) zap.Field {
	if len(v) > 128 {
		v = v[:128]
	}
	return zap.String("user_agent", v)
}

// Route es el patrón chi que atendió el request (cardinalidad acotada).
func Route(v string) zap.Field {
	return zap.String("route", v)
}

// ── cuentas ──

func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// SessionID loguea un hash corto del id de sesión; el id crudo es la cookie.
func SessionID(v string) zap.Field {
	sum := sha256.Sum256([]byte(v))
	return zap.String("session", base64.RawURLEncoding.EncodeToString(sum[:6]))
}

// CredentialID crea un campo para el id de una passkey (base64url).
func CredentialID(v []byte) zap.Field {
	return zap.String("credential_id", base64.RawURLEncoding.EncodeToString(v))
}

// Event crea un campo para eventos de seguridad (auditoría).
func Event(v string) zap.Field {
	return zap.String("event", v)
}

// Email enmascara la parte local: "ana@example.com" -> "a***@example.com".
func Email(v string) zap.Field {
	if at := strings.LastIndexByte(v, '@'); at > 0 {
		v = v[:1] + "***" + v[at:]
	}
	return zap.String("email", v)
}

// ── sistema ──

func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op es "<dominio>.<acción>", p.ej. "twofactor.confirm".
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer: controller, service, store.
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

func Err(err error) zap.Field {
	return zap.Error(err)
}

// ── genéricos ──

func Count(v int) zap.Field {
	return zap.Int("count", v)
}

func ID(v string) zap.Field {
	return zap.String("id", v)
}

func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

func String(key, v string) zap.Field {
	return zap.String(key, v)
}

func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
