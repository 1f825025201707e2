package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe (o no pertenece al usuario).
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrStale indica que un compare-and-swap perdió contra una escritura concurrente.
	ErrStale = errors.New("stale value")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTokenExpired indica que el token ya expiró.
	ErrTokenExpired = errors.New("token expired")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsStale verifica si el error es ErrStale.
func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}
