package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	r, err := Open(ctx, Config{Driver: "memory", Migrate: true})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "memory", r.Driver)
	require.NoError(t, r.Ping(ctx))
	n, err := r.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_SQLiteMigratesOnce(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "accountd.db")

	r, err := Open(ctx, Config{Driver: "sqlite", DSN: dsn, Migrate: true})
	require.NoError(t, err)
	defer r.Close()

	u, err := r.Users.Create(ctx, repository.CreateUserInput{Email: "a@example.com", Name: "A", PasswordHash: "$argon2id$x"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	n, err := r.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run has nothing pending")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"})
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	r, err := Open(context.Background(), Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	r.Close()
	r.Close()
}
