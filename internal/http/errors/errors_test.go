package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, Validation("code", "El código no es válido."))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	assert.Equal(t, map[string]any{"code": "El código no es válido."}, body["fields"])
}

func TestWriteErrorGenericHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, stderrors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestFromErrorUnwrapsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("controller: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, FromError(wrapped).HTTPStatus)
}

func TestCopiesDoNotMutateBase(t *testing.T) {
	a := ErrValidation.WithField("email", "x")
	b := a.WithField("name", "y")

	assert.Nil(t, ErrValidation.Fields)
	assert.Len(t, a.Fields, 1)
	assert.Len(t, b.Fields, 2)

	cause := stderrors.New("boom")
	c := ErrInternalServerError.WithCause(cause)
	assert.ErrorIs(t, c, cause)
	assert.Nil(t, ErrInternalServerError.Err)
}
