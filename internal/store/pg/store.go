// Package pg implementa los repositorios sobre PostgreSQL con pgxpool.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/store/schema"
	"github.com/dropDatabas3/accountd/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ pool *pgxpool.Pool }

// PoolConfig son los knobs de pgxpool expuestos en config.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

func New(ctx context.Context, dsn string, pc PoolConfig) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if pc.MaxConns > 0 {
		pcfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		pcfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = pc.MaxConnLifetime
		pcfg.MaxConnIdleTime = pc.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
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

// Migrate aplica las migraciones pendientes dentro de una transacción cada una.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	log := logger.From(ctx).With(logger.Layer("store"), logger.Component("pg"), logger.Op("migrate"))

	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return 0, fmt.Errorf("pg: schema_migrations: %w", err)
	}

	all, err := schema.Load(migrations.PostgresFS, migrations.PostgresDir)
	if err != nil {
		return 0, err
	}
	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return 0, err
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	pending := schema.Pending(all, done)
	for _, m := range pending {
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("pg: apply %s: %w", m.Version, err)
		}
		log.Info("migration applied", logger.String("version", m.Version))
	}
	return len(pending), nil
}

// Helper interno para validar ids antes de mandarlos a una columna UUID.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func textBytes(s *string) []byte {
	if s == nil || *s == "" {
		return nil
	}
	return []byte(*s)
}
