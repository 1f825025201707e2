package audit

import (
	"context"
	"testing"

	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogUsesContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	Log(ctx, PasskeyRegistered, logger.UserID("u1"))
	Log(ctx, PasskeyCloneDetected, logger.UserID("u1"))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, PasskeyRegistered, entries[0].ContextMap()["event"])
	assert.Equal(t, "u1", entries[0].ContextMap()["user_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, PasskeyCloneDetected, entries[1].ContextMap()["event"])
}
