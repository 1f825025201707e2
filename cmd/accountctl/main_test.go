package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func useSQLite(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("STORAGE_DSN", filepath.Join(t.TempDir(), "ctl.db"))
}

func TestKeygen_JSON(t *testing.T) {
	out, err := run(t, "keygen", "--out", "json")
	require.NoError(t, err)

	var keys map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	assert.Len(t, keys["secretbox_master_key"], 44) // base64(32)
	assert.GreaterOrEqual(t, len(keys["remember_signing_key"]), 32)
}

func TestUserLifecycle(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite:")

	_, err = run(t, "user", "create", "--email", "Ana@Example.com", "--password", "correct horse")
	require.NoError(t, err)

	_, err = run(t, "user", "create", "--email", "ana@example.com", "--password", "correct horse")
	assert.ErrorContains(t, err, "ya existe")

	out, err = run(t, "user", "twofactor-status", "--email", "ana@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "two_factor=off passkeys=0")

	out, err = run(t, "user", "reset-twofactor", "--email", "ana@example.com", "--out", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"reset": true`)
}

func TestUserCreate_WeakPassword(t *testing.T) {
	useSQLite(t)
	_, err := run(t, "user", "create", "--email", "a@example.com", "--password", "short")
	assert.ErrorContains(t, err, "password rechazado")
}

func TestOpen_RejectsMemory(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	_, err := run(t, "migrate")
	assert.ErrorContains(t, err, "memory")
}
