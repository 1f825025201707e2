package helpers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/accountd/internal/http/errors"
)

// DefaultMaxBody limita los bodies JSON. Las ceremonias WebAuthn caben sobradas.
const DefaultMaxBody int64 = 64 << 10

// ReadJSON decodifica JSON de forma tolerante (no falla por campos desconocidos).
// Un body vacío deja v intacto. Devuelve un *AppError listo para WriteError.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any, max int64) error {
	if max <= 0 {
		max = DefaultMaxBody
	}
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		return httperrors.ErrUnsupportedMediaType
	}

	r.Body = http.MaxBytesReader(w, r.Body, max)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return httperrors.ErrBodyTooLarge
		}
		return httperrors.ErrInvalidJSON.WithCause(err)
	}
	return nil
}

// WriteJSON escribe una respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
