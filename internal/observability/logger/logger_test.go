package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFrom_FallsBackToGlobal(t *testing.T) {
	assert.NotNil(t, From(context.Background()))
	//nolint:staticcheck // nil ctx es parte del contrato
	assert.NotNil(t, From(nil))
}

func TestAddFields_VisibleToScopeOwner(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ToContext(context.Background(), zap.New(core).With(RequestID("req-1")))

	// un middleware interno agrega campos...
	AddFields(ctx, UserID("u-1"))
	// ...y el dueño del scope los ve al loguear después
	From(ctx).Info("request completed", Op("test"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "u-1", fields["user_id"])
	assert.Equal(t, "test", fields["op"])
}

func TestAddFields_NoScopeIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { AddFields(context.Background(), UserID("x")) })
}

func TestBuild_ProdJSON(t *testing.T) {
	var buf bytes.Buffer
	lvl := zap.NewAtomicLevel()
	l := build(Config{Env: "prod", Level: "warn", Version: "1.2.3", Output: &buf}, lvl)

	l.Info("dropped")
	l.Warn("kept", Email("ana@example.com"))
	require.NoError(t, l.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line), buf.String())
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "accountd", line["service"])
	assert.Equal(t, "1.2.3", line["version"])
	assert.Equal(t, "a***@example.com", line["email"])

	buf.Reset()
	lvl.SetLevel(zapcore.DebugLevel)
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel(" DEBUG "))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestSessionID_Hashed(t *testing.T) {
	f := SessionID("abcdefghijklmnopqrstuvwxyz")
	assert.Len(t, f.String, 8)
	assert.NotContains(t, "abcdefghijklmnopqrstuvwxyz", f.String)
	assert.Equal(t, f.String, SessionID("abcdefghijklmnopqrstuvwxyz").String)
}

func TestCredentialIDEncodes(t *testing.T) {
	f := CredentialID([]byte{0xff, 0xee})
	assert.Equal(t, "_-4", f.String)
}

func TestReplace_Restores(t *testing.T) {
	prev := L()
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	L().Info("captured")
	restore()

	assert.Equal(t, 1, logs.Len())
	assert.Same(t, prev, L())
}
