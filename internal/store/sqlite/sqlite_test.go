package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, filepath.Join(t.TempDir(), "accountd.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.Migrate(ctx)
	require.NoError(t, err)
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Repos {
		s := newTestStore(t)
		return storetest.Repos{
			Users:          s.Users(),
			TwoFactor:      s.TwoFactor(),
			Passkeys:       s.Passkeys(),
			PasswordResets: s.PasswordResets(),
		}
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	n, err := s.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTwoFactorCheckConstraint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, err := s.Users().Create(ctx, storetestUser())
	require.NoError(t, err)

	// confirmed sin secreto viola el CHECK
	_, err = s.db.ExecContext(ctx, `UPDATE users SET two_factor_confirmed_at = 1 WHERE id = ?`, u.ID)
	assert.Error(t, err)
}

func storetestUser() repository.CreateUserInput {
	return repository.CreateUserInput{Email: "check@example.com", Name: "Check", PasswordHash: "x"}
}
