package jwt

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T) *RememberIssuer {
	t.Helper()
	i, err := NewRememberIssuer(bytes.Repeat([]byte("k"), 32), "accountd", time.Hour)
	require.NoError(t, err)
	return i
}

func TestRemember_IssueParse(t *testing.T) {
	i := newIssuer(t)
	raw, err := i.Issue("user-1", true, "fp1")
	require.NoError(t, err)

	c, err := i.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.Subject)
	assert.True(t, c.TwoFactor)
	assert.Equal(t, "fp1", c.Fingerprint)
}

func TestRemember_Expired(t *testing.T) {
	i := newIssuer(t)
	raw, err := i.Issue("user-1", false, "")
	require.NoError(t, err)

	i.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = i.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidRemember)
}

func TestRemember_WrongKey(t *testing.T) {
	raw, err := newIssuer(t).Issue("user-1", false, "")
	require.NoError(t, err)

	other, err := NewRememberIssuer(bytes.Repeat([]byte("x"), 32), "accountd", time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidRemember)
}

func TestRemember_WeakKey(t *testing.T) {
	_, err := NewRememberIssuer([]byte("short"), "accountd", time.Hour)
	assert.ErrorIs(t, err, ErrWeakSigningKey)
}
