// Package server arma el handler HTTP completo a partir de la config.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/accountd/internal/cache"
	"github.com/dropDatabas3/accountd/internal/config"
	"github.com/dropDatabas3/accountd/internal/email"
	authctrl "github.com/dropDatabas3/accountd/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/accountd/internal/http/controllers/health"
	mw "github.com/dropDatabas3/accountd/internal/http/middlewares"
	"github.com/dropDatabas3/accountd/internal/http/router"
	authsvc "github.com/dropDatabas3/accountd/internal/http/services/auth"
	healthsvc "github.com/dropDatabas3/accountd/internal/http/services/health"
	jwtx "github.com/dropDatabas3/accountd/internal/jwt"
	"github.com/dropDatabas3/accountd/internal/metrics"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/rate"
	"github.com/dropDatabas3/accountd/internal/security/secretbox"
	"github.com/dropDatabas3/accountd/internal/session"
	"github.com/dropDatabas3/accountd/internal/store"
	"github.com/dropDatabas3/accountd/internal/store/pg"
)

// App es el servicio armado. Close libera storage y redis.
type App struct {
	Handler http.Handler
	Repos   *store.Repositories
	Metrics *metrics.Metrics

	closers []func() error
}

// Close cierra en orden inverso a la apertura.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Options permite inyectar piezas en tests.
type Options struct {
	Version  string
	Redis    redis.UniversalClient // nil = se crea desde cfg.Redis si algún driver es redis
	Sender   email.Sender          // nil = SMTP si hay host, si no LogSender
	WebAuthn authsvc.WebAuthnEngine
	Now      func() time.Time
}

// Build arma storage, sesiones, services, controllers y router.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	log := logger.From(ctx).With(logger.Layer("server"), logger.Op("build"))
	app := &App{}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	// 1) Storage
	repos, err := store.Open(ctx, StoreConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	app.Repos = repos
	app.closers = append(app.closers, func() error { repos.Close(); return nil })

	// 2) Redis (compartido por sesiones, cache y rate limit)
	rdb := opts.Redis
	if rdb == nil && needsRedis(cfg) {
		c := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("redis: ping %s: %w", cfg.Redis.Addr, err)
		}
		rdb = c
		app.closers = append(app.closers, c.Close)
	}

	// 3) Sesiones
	var sessStore session.Store
	if cfg.Session.Driver == "redis" {
		sessStore = session.NewRedisStore(rdb, cfg.Redis.Prefix+"sess:")
	} else {
		sessStore = session.NewMemoryStore(time.Minute)
	}
	sessions := session.NewManager(sessStore, session.CookieConfig{
		Name:     cfg.Session.CookieName,
		Domain:   cfg.Session.Domain,
		Secure:   cfg.Session.Secure,
		SameSite: session.ParseSameSite(cfg.Session.SameSite),
	}, cfg.Session.TTL)

	tfaCache, err := cache.New(cache.Config{
		Driver:        cfg.Cache.Driver,
		Prefix:        cfg.Redis.Prefix + "cache",
		DefaultTTL:    cfg.Cache.TwoFactorTTL,
		CleanupPeriod: cfg.Cache.CleanupPeriod,
	}, rdb)
	if err != nil {
		return nil, err
	}

	// 4) Secretos
	box, err := secretBox(cfg, log)
	if err != nil {
		return nil, err
	}
	remember, err := rememberIssuer(cfg, log)
	if err != nil {
		return nil, err
	}

	// 5) WebAuthn
	engine := opts.WebAuthn
	if engine == nil {
		wa, err := webauthn.New(&webauthn.Config{
			RPID:          cfg.WebAuthn.RPID,
			RPDisplayName: cfg.WebAuthn.RPDisplayName,
			RPOrigins:     cfg.WebAuthn.RPOrigins,
			Timeouts: webauthn.TimeoutsConfig{
				Login:        webauthn.TimeoutConfig{Enforce: true, Timeout: cfg.WebAuthn.Timeout, TimeoutUVD: cfg.WebAuthn.Timeout},
				Registration: webauthn.TimeoutConfig{Enforce: true, Timeout: cfg.WebAuthn.Timeout, TimeoutUVD: cfg.WebAuthn.Timeout},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("webauthn: %w", err)
		}
		engine = wa
	}

	// 6) Email
	sender := opts.Sender
	if sender == nil {
		if cfg.SMTP.Host != "" {
			s := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
			s.TLSMode = cfg.SMTP.TLS
			s.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
			sender = s
		} else {
			log.Warn("smtp.host empty, reset emails go to the log only")
			sender = email.LogSender{}
		}
	}
	mailer, err := email.NewResetMailer(sender, cfg.App.Name, cfg.App.BaseURL)
	if err != nil {
		return nil, err
	}

	// 7) Métricas
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.New()
	}

	// 8) Services y controllers
	services := authsvc.NewServices(authsvc.Deps{
		Users:     repos.Users,
		TwoFactor: repos.TwoFactor,
		Passkeys:  repos.Passkeys,
		Resets:    repos.PasswordResets,
		Secrets:   box,
		Sessions:  sessions,
		Remember:  remember,
		Cache:     tfaCache,
		WebAuthn:  engine,
		Mailer:    mailer,
		Metrics:   app.Metrics,
		Config: authsvc.Config{
			Issuer:                 cfg.MFA.Issuer,
			TOTPSkew:               cfg.MFA.WindowSkew,
			QRSize:                 cfg.MFA.QRSize,
			CeremonyTimeout:        cfg.WebAuthn.Timeout,
			PasswordConfirmTimeout: cfg.Session.PasswordConfirmTimeout,
			ResetTTL:               cfg.Auth.ResetTTL,
			TwoFactorFlagTTL:       cfg.Cache.TwoFactorTTL,
			HomePath:               cfg.Auth.HomePath,
			ChallengePath:          cfg.Auth.ChallengePath,
		},
		Now: opts.Now,
	})

	authControllers := authctrl.NewControllers(services, authctrl.Cookies{
		Sessions:     sessions,
		RememberName: cfg.Session.RememberCookieName,
		RememberTTL:  cfg.Session.RememberTTL,
		CSRFName:     cfg.Security.CSRFCookieName,
		Secure:       cfg.Session.Secure,
	}, authctrl.Paths{
		Home:      cfg.Auth.HomePath,
		Login:     cfg.Auth.LoginPath,
		Challenge: cfg.Auth.ChallengePath,
	})

	health := healthsvc.NewHealthService(healthsvc.Deps{
		Version:      opts.Version,
		StoreCheck:   repos.Ping,
		SessionCheck: sessStore.Ping,
		RedisCheck:   redisCheck(rdb),
	})

	// 9) Router
	app.Handler = router.New(router.Deps{
		Auth:        authControllers,
		Health:      healthctrl.NewHealthController(health, opts.Version),
		Metrics:     app.Metrics,
		MetricsPath: cfg.Metrics.Path,

		Sessions: sessions,
		Remember: mw.RememberConfig{
			Resolver:   services.Login,
			Sessions:   sessions,
			CookieName: cfg.Session.RememberCookieName,
			Secure:     cfg.Session.Secure,
		},
		TwoFactorGate:   services.TwoFactor,
		PasswordConfirm: services.PasswordConfirm,
		CSRF:            mw.CSRFConfig{CookieName: cfg.Security.CSRFCookieName},
		CORSOrigins:     cfg.Security.CORSAllowedOrigins,
		Limits:          buildLimits(cfg, rdb),
		ChallengePath:   cfg.Auth.ChallengePath,
	})

	log.Info("http handler ready",
		logger.String("storage", repos.Driver),
		logger.String("sessions", cfg.Session.Driver),
		logger.Bool("rate_limit", cfg.Rate.Enabled),
		logger.Bool("metrics", cfg.Metrics.Enabled),
	)
	return app, nil
}

// StoreConfig traduce config.Storage a store.Config. También lo usa accountctl.
func StoreConfig(cfg *config.Config) store.Config {
	return store.Config{
		Driver:  cfg.Storage.Driver,
		DSN:     cfg.Storage.DSN,
		Migrate: cfg.Storage.Migrate,
		Postgres: pg.PoolConfig{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		},
	}
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Session.Driver == "redis" || cfg.Cache.Driver == "redis" || (cfg.Rate.Enabled && cfg.Rate.Driver == "redis")
}

func redisCheck(rdb redis.UniversalClient) func(context.Context) error {
	if rdb == nil {
		return nil
	}
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

// buildLimits arma un limiter por grupo de endpoints sobre el backend configurado.
func buildLimits(cfg *config.Config, rdb redis.UniversalClient) router.Limits {
	if !cfg.Rate.Enabled {
		return router.Limits{}
	}
	var multi rate.MultiLimiter
	if cfg.Rate.Driver == "redis" && rdb != nil {
		multi = rate.NewRedisLimiter(rdb, cfg.Redis.Prefix+"rl:")
	} else {
		multi = rate.NewMemoryLimiter()
	}
	bound := func(l config.RateLimit) rate.Limiter {
		return rate.Bound{Multi: multi, Limit: l.Limit, Window: l.Window}
	}
	return router.Limits{
		Login:   bound(cfg.Rate.Login),
		Verify:  bound(cfg.Rate.TwoFactor),
		Forgot:  bound(cfg.Rate.Forgot),
		General: bound(cfg.Rate.CheckUser),
	}
}

// secretBox exige la master key en prod. En dev genera una efímera: los
// secretos 2FA guardados no sobreviven un reinicio.
func secretBox(cfg *config.Config, log *zap.Logger) (*secretbox.Box, error) {
	if cfg.Security.SecretBoxMasterKey != "" {
		return secretbox.NewFromString(cfg.Security.SecretBoxMasterKey)
	}
	if cfg.IsProd() {
		return nil, errors.New("security.secretbox_master_key required")
	}
	key, err := secretbox.GenerateKey()
	if err != nil {
		return nil, err
	}
	log.Warn("SECRETBOX_MASTER_KEY not set, using an ephemeral key")
	return secretbox.NewFromString(key)
}

func rememberIssuer(cfg *config.Config, log *zap.Logger) (*jwtx.RememberIssuer, error) {
	key := []byte(cfg.Session.RememberSigningKey)
	if len(key) == 0 {
		if cfg.IsProd() {
			return nil, errors.New("session.remember_signing_key required")
		}
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		log.Warn("REMEMBER_SIGNING_KEY not set, remember cookies die with the process")
	}
	return jwtx.NewRememberIssuer(key, cfg.App.Name, cfg.Session.RememberTTL)
}
