package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimit es un límite fixed-window por endpoint.
type RateLimit struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type Config struct {
	App struct {
		Env     string `yaml:"env"` // dev | prod
		Name    string `yaml:"name"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | sqlite | postgres
		DSN      string `yaml:"dsn"`
		Migrate  bool   `yaml:"migrate"`
		Postgres struct {
			MaxConns        int32         `yaml:"max_conns"`
			MinConns        int32         `yaml:"min_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	// Redis es compartido por sesiones, cache y rate limiting cuando el driver es "redis".
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Session struct {
		Driver                 string        `yaml:"driver"` // memory | redis
		CookieName             string        `yaml:"cookie_name"`
		Domain                 string        `yaml:"domain"`
		SameSite               string        `yaml:"samesite"`
		Secure                 bool          `yaml:"secure"`
		TTL                    time.Duration `yaml:"ttl"`
		RememberCookieName     string        `yaml:"remember_cookie_name"`
		RememberTTL            time.Duration `yaml:"remember_ttl"`
		RememberSigningKey     string        `yaml:"remember_signing_key"`
		PasswordConfirmTimeout time.Duration `yaml:"password_confirm_timeout"`
	} `yaml:"session"`

	Cache struct {
		Driver        string        `yaml:"driver"` // memory | redis
		TwoFactorTTL  time.Duration `yaml:"two_factor_ttl"`
		CleanupPeriod time.Duration `yaml:"cleanup_period"`
	} `yaml:"cache"`

	MFA struct {
		Issuer     string `yaml:"issuer"`
		WindowSkew uint   `yaml:"window_skew"`
		QRSize     int    `yaml:"qr_size"`
	} `yaml:"mfa"`

	WebAuthn struct {
		RPID          string        `yaml:"rp_id"`
		RPDisplayName string        `yaml:"rp_display_name"`
		RPOrigins     []string      `yaml:"rp_origins"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"webauthn"`

	Rate struct {
		Enabled bool   `yaml:"enabled"`
		Driver  string `yaml:"driver"` // memory | redis

		Login          RateLimit `yaml:"login"`
		Forgot         RateLimit `yaml:"forgot"`
		TwoFactor      RateLimit `yaml:"two_factor"`
		TwoFactorSetup RateLimit `yaml:"two_factor_setup"`
		Passkey        RateLimit `yaml:"passkey"`
		CheckUser      RateLimit `yaml:"check_user"`
	} `yaml:"rate"`

	Auth struct {
		ResetTTL      time.Duration `yaml:"reset_ttl"`
		HomePath      string        `yaml:"home_path"`
		LoginPath     string        `yaml:"login_path"`
		ChallengePath string        `yaml:"challenge_path"`
	} `yaml:"auth"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Security struct {
		SecretBoxMasterKey string   `yaml:"secretbox_master_key"` // base64(32 bytes)
		CSRFCookieName     string   `yaml:"csrf_cookie_name"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"security"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load lee el YAML (path vacío => sólo defaults + env), aplica defaults y overrides de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	setStr := func(p *string, v string) {
		if *p == "" {
			*p = v
		}
	}
	setDur := func(p *time.Duration, v time.Duration) {
		if *p == 0 {
			*p = v
		}
	}
	setRate := func(r *RateLimit, limit int, window time.Duration) {
		if r.Limit == 0 {
			r.Limit = limit
		}
		setDur(&r.Window, window)
	}

	setStr(&c.App.Env, "dev")
	setStr(&c.App.Name, "accountd")
	setStr(&c.App.BaseURL, "http://localhost:8080")
	setStr(&c.Log.Level, "info")

	setStr(&c.Server.Addr, ":8080")
	setDur(&c.Server.ReadTimeout, 10*time.Second)
	setDur(&c.Server.WriteTimeout, 30*time.Second)
	setDur(&c.Server.ShutdownTimeout, 15*time.Second)
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 64 << 10
	}

	setStr(&c.Storage.Driver, "memory")
	setStr(&c.Redis.Prefix, "accountd:")

	setStr(&c.Session.Driver, "memory")
	setStr(&c.Session.CookieName, "accountd_session")
	setStr(&c.Session.SameSite, "Lax")
	setDur(&c.Session.TTL, 2*time.Hour)
	setStr(&c.Session.RememberCookieName, "accountd_remember")
	setDur(&c.Session.RememberTTL, 30*24*time.Hour)
	setDur(&c.Session.PasswordConfirmTimeout, 3*time.Hour)

	setStr(&c.Cache.Driver, c.Session.Driver)
	setDur(&c.Cache.TwoFactorTTL, 5*time.Minute)
	setDur(&c.Cache.CleanupPeriod, 10*time.Minute)

	setStr(&c.MFA.Issuer, c.App.Name)
	if c.MFA.WindowSkew == 0 {
		c.MFA.WindowSkew = 1
	}
	if c.MFA.QRSize == 0 {
		c.MFA.QRSize = 192
	}

	setStr(&c.WebAuthn.RPID, "localhost")
	setStr(&c.WebAuthn.RPDisplayName, c.App.Name)
	if len(c.WebAuthn.RPOrigins) == 0 {
		c.WebAuthn.RPOrigins = []string{c.App.BaseURL}
	}
	setDur(&c.WebAuthn.Timeout, 60*time.Second)

	setStr(&c.Rate.Driver, c.Session.Driver)
	setRate(&c.Rate.Login, 10, time.Minute)
	setRate(&c.Rate.Forgot, 3, 10*time.Minute)
	setRate(&c.Rate.TwoFactor, 10, time.Minute)
	setRate(&c.Rate.TwoFactorSetup, 5, 10*time.Minute)
	setRate(&c.Rate.Passkey, 20, time.Minute)
	setRate(&c.Rate.CheckUser, 20, time.Minute)

	setDur(&c.Auth.ResetTTL, 60*time.Minute)
	setStr(&c.Auth.HomePath, "/dashboard")
	setStr(&c.Auth.LoginPath, "/login")
	setStr(&c.Auth.ChallengePath, "/two-factor-challenge")

	setStr(&c.SMTP.TLS, "auto")
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}

	setStr(&c.Security.CSRFCookieName, "csrf_token")
	setStr(&c.Metrics.Path, "/metrics")
}

// ───────────────────── env overrides ─────────────────────

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("APP_NAME"); ok {
		c.App.Name = v
	}
	if v, ok := getEnvStr("APP_BASE_URL"); ok {
		c.App.BaseURL = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("HTTP_ADDR"); ok {
		c.Server.Addr = v
	}

	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("STORAGE_MIGRATE"); ok {
		c.Storage.Migrate = v
	}

	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}

	if v, ok := getEnvStr("SESSION_DRIVER"); ok {
		c.Session.Driver = v
	}
	if v, ok := getEnvBool("SESSION_SECURE"); ok {
		c.Session.Secure = v
	}
	if v, ok := getEnvDur("SESSION_TTL"); ok {
		c.Session.TTL = v
	}
	if v, ok := getEnvStr("REMEMBER_SIGNING_KEY"); ok {
		c.Session.RememberSigningKey = v
	}

	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}
	if v, ok := getEnvCSV("CORS_ALLOWED_ORIGINS"); ok {
		c.Security.CORSAllowedOrigins = v
	}

	if v, ok := getEnvStr("MFA_TOTP_ISSUER"); ok {
		c.MFA.Issuer = v
	}
	if v, ok := getEnvInt("MFA_TOTP_WINDOW"); ok && v >= 0 {
		c.MFA.WindowSkew = uint(v)
	}

	if v, ok := getEnvStr("WEBAUTHN_RP_ID"); ok {
		c.WebAuthn.RPID = v
	}
	if v, ok := getEnvCSV("WEBAUTHN_RP_ORIGINS"); ok {
		c.WebAuthn.RPOrigins = v
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_DRIVER"); ok {
		c.Rate.Driver = v
	}

	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = v
	}

	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}

// IsProd indica APP_ENV=prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate revisa combinaciones que harían fallar el arranque.
func (c *Config) Validate() error {
	var errs []error
	if !oneOf(c.Storage.Driver, "memory", "sqlite", "postgres") {
		errs = append(errs, fmt.Errorf("storage.driver %q no soportado", c.Storage.Driver))
	}
	if oneOf(c.Storage.Driver, "sqlite", "postgres") && c.Storage.DSN == "" {
		errs = append(errs, errors.New("storage.dsn requerido para "+c.Storage.Driver))
	}
	for name, d := range map[string]string{"session.driver": c.Session.Driver, "cache.driver": c.Cache.Driver, "rate.driver": c.Rate.Driver} {
		if !oneOf(d, "memory", "redis") {
			errs = append(errs, fmt.Errorf("%s %q no soportado", name, d))
		}
		if d == "redis" && c.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("redis.addr requerido para %s=redis", name))
		}
	}
	if !oneOf(strings.ToLower(c.Session.SameSite), "lax", "strict", "none") {
		errs = append(errs, fmt.Errorf("session.samesite %q inválido", c.Session.SameSite))
	}
	if c.MFA.WindowSkew > 3 {
		errs = append(errs, errors.New("mfa.window_skew no puede superar 3 steps"))
	}
	if c.IsProd() {
		if c.Security.SecretBoxMasterKey == "" {
			errs = append(errs, errors.New("security.secretbox_master_key requerido en prod"))
		}
		if len(c.Session.RememberSigningKey) < 32 {
			errs = append(errs, errors.New("session.remember_signing_key (>=32 bytes) requerido en prod"))
		}
		if !c.Session.Secure {
			errs = append(errs, errors.New("session.secure debe ser true en prod"))
		}
	}
	return errors.Join(errs...)
}
