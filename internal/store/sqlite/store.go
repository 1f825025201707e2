// Package sqlite implementa los repositorios sobre SQLite (modernc.org/sqlite, sin cgo).
// Pensado para single-node y desarrollo; una sola conexión serializa las escrituras.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/store/schema"
	"github.com/dropDatabas3/accountd/migrations"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct{ db *sql.DB }

func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s != nil && s.db != nil {
		_ = s.db.Close()
	}
}

// Users implementa repository.UserRepository.
type Users struct{ *Store }

// TwoFactor implementa repository.TwoFactorRepository.
type TwoFactor struct{ *Store }

// Passkeys implementa repository.PasskeyRepository.
type Passkeys struct{ *Store }

// PasswordResets implementa repository.PasswordResetRepository.
type PasswordResets struct{ *Store }

var (
	_ repository.UserRepository          = Users{}
	_ repository.TwoFactorRepository     = TwoFactor{}
	_ repository.PasskeyRepository       = Passkeys{}
	_ repository.PasswordResetRepository = PasswordResets{}
)

func (s *Store) Users() Users                   { return Users{s} }
func (s *Store) TwoFactor() TwoFactor           { return TwoFactor{s} }
func (s *Store) Passkeys() Passkeys             { return Passkeys{s} }
func (s *Store) PasswordResets() PasswordResets { return PasswordResets{s} }

func (s *Store) Migrate(ctx context.Context) (int, error) {
	log := logger.From(ctx).With(logger.Layer("store"), logger.Component("sqlite"), logger.Op("migrate"))

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return 0, fmt.Errorf("sqlite: schema_migrations: %w", err)
	}
	all, err := schema.Load(migrations.SQLiteFS, migrations.SQLiteDir)
	if err != nil {
		return 0, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return 0, err
	}
	done := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return 0, err
		}
		done[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	pending := schema.Pending(all, done)
	for _, m := range pending {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: apply %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			m.Version, time.Now().UnixNano()); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		log.Info("migration applied", logger.String("version", m.Version))
	}
	return len(pending), nil
}

func constraintCode(err error) int {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	c := constraintCode(err)
	return c == sqlite3.SQLITE_CONSTRAINT_UNIQUE || c == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isForeignKeyViolation(err error) bool {
	return constraintCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// tiempos como unix nanos.
func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func textBytes(s sql.NullString) []byte {
	if !s.Valid || s.String == "" {
		return nil
	}
	return []byte(s.String)
}

func affected(res sql.Result) (int64, error) {
	return res.RowsAffected()
}
