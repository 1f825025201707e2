package helpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httperrors "github.com/dropDatabas3/accountd/internal/http/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Name  string `json:"name" validate:"required,max=5"`
}

func jsonReq(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestReadJSON(t *testing.T) {
	var s sample
	require.NoError(t, ReadJSON(httptest.NewRecorder(), jsonReq(`{"email":"a@b.co","extra":1}`), &s, 0))
	assert.Equal(t, "a@b.co", s.Email)

	err := ReadJSON(httptest.NewRecorder(), jsonReq(`{"email":`), &s, 0)
	assert.Equal(t, http.StatusBadRequest, httperrors.FromError(err).HTTPStatus)

	err = ReadJSON(httptest.NewRecorder(), jsonReq(`{"email":"`+strings.Repeat("a", 100)+`"}`), &s, 16)
	assert.Equal(t, http.StatusRequestEntityTooLarge, httperrors.FromError(err).HTTPStatus)

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "text/plain")
	err = ReadJSON(httptest.NewRecorder(), r, &s, 0)
	assert.Equal(t, http.StatusUnsupportedMediaType, httperrors.FromError(err).HTTPStatus)

	// body vacío no es error
	r = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.NoError(t, ReadJSON(httptest.NewRecorder(), r, &s, 0))
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := Validate(&sample{Email: "nope", Name: "toolong"})
	require.Error(t, err)
	ae := httperrors.FromError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, ae.HTTPStatus)
	assert.Contains(t, ae.Fields, "email")
	assert.Contains(t, ae.Fields, "name")

	assert.NoError(t, Validate(&sample{Email: "a@b.co", Name: "ana"}))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(r))
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", ClientIP(r))
}
