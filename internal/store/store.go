// Package store elige el driver de storage según la config.
package store

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/store/memory"
	"github.com/dropDatabas3/accountd/internal/store/pg"
	"github.com/dropDatabas3/accountd/internal/store/sqlite"
)

// Repositories agrupa los repositorios de un driver abierto.
type Repositories struct {
	Driver         string
	Users          repository.UserRepository
	TwoFactor      repository.TwoFactorRepository
	Passkeys       repository.PasskeyRepository
	PasswordResets repository.PasswordResetRepository

	migrate func(ctx context.Context) (int, error)
	close   func()
}

// Config es el subconjunto de config.Storage que necesita Open.
type Config struct {
	Driver   string // memory | sqlite | postgres
	DSN      string
	Migrate  bool
	Postgres pg.PoolConfig
}

// Open abre el driver y, con cfg.Migrate, aplica las migraciones pendientes.
func Open(ctx context.Context, cfg Config) (*Repositories, error) {
	log := logger.From(ctx).With(logger.Layer("store"), logger.Op("open"), logger.String("driver", cfg.Driver))

	var r *Repositories
	switch cfg.Driver {
	case "", "memory":
		s := memory.New()
		r = &Repositories{
			Driver:         "memory",
			Users:          s.Users(),
			TwoFactor:      s.TwoFactor(),
			Passkeys:       s.Passkeys(),
			PasswordResets: s.PasswordResets(),
		}
	case "sqlite":
		s, err := sqlite.New(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		r = &Repositories{
			Driver:         "sqlite",
			Users:          s.Users(),
			TwoFactor:      s.TwoFactor(),
			Passkeys:       s.Passkeys(),
			PasswordResets: s.PasswordResets(),
			migrate:        s.Migrate,
			close:          s.Close,
		}
	case "postgres":
		s, err := pg.New(ctx, cfg.DSN, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		r = &Repositories{
			Driver:         "postgres",
			Users:          s.Users(),
			TwoFactor:      s.TwoFactor(),
			Passkeys:       s.Passkeys(),
			PasswordResets: s.PasswordResets(),
			migrate:        s.Migrate,
			close:          s.Close,
		}
	default:
		return nil, fmt.Errorf("store: driver %q no soportado", cfg.Driver)
	}

	if cfg.Migrate {
		n, err := r.Migrate(ctx)
		if err != nil {
			r.Close()
			return nil, err
		}
		log.Info("storage ready", logger.Int("migrations_applied", n))
	}
	return r, nil
}

// Migrate aplica las migraciones pendientes. En memoria no hace nada.
func (r *Repositories) Migrate(ctx context.Context) (int, error) {
	if r.migrate == nil {
		return 0, nil
	}
	n, err := r.migrate(ctx)
	if err != nil {
		return n, fmt.Errorf("store: migrate %s: %w", r.Driver, err)
	}
	return n, nil
}

// Ping verifica la conexión; lo usa /readyz.
func (r *Repositories) Ping(ctx context.Context) error { return r.Users.Ping(ctx) }

// Close libera el pool o la conexión (idempotente).
func (r *Repositories) Close() {
	if r != nil && r.close != nil {
		r.close()
		r.close = nil
	}
}
