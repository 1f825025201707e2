package helpers

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	httperrors "github.com/dropDatabas3/accountd/internal/http/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// los errores se reportan con el nombre JSON del campo
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate corre las reglas `validate:"..."` del DTO y devuelve un 422 con
// un mensaje por campo, o nil.
func Validate(dst any) error {
	err := instance().Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return httperrors.ErrBadRequest.WithCause(err)
	}
	out := httperrors.ErrValidation
	for _, fe := range verrs {
		if _, dup := out.Fields[fe.Field()]; dup {
			continue
		}
		out = out.WithField(fe.Field(), message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "El campo es obligatorio."
	case "email":
		return "Debe ser un email válido."
	case "max":
		return "Supera el largo máximo de " + fe.Param() + "."
	case "min":
		return "Debe tener al menos " + fe.Param() + " caracteres."
	case "len":
		return "Debe tener " + fe.Param() + " caracteres."
	case "numeric":
		return "Debe ser numérico."
	case "lowercase":
		return "Debe estar en minúsculas."
	case "eqfield":
		return "No coincide con " + fe.Param() + "."
	default:
		return "El valor no es válido."
	}
}
