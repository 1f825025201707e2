package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configura el logger.
type Config struct {
	// Env: "dev" (consola con colores) o "prod" (JSON con sampling).
	// Default: "dev"
	Env string

	// Level mínimo: "debug", "info", "warn", "error". Default: "info"
	Level string

	// ServiceName va en cada línea como "service". Default: "accountd"
	ServiceName string

	// Version es opcional.
	Version string

	// Output reemplaza stderr (tests).
	Output io.Writer
}

func build(cfg Config, level zap.AtomicLevel) *zap.Logger {
	level.SetLevel(parseLevel(cfg.Level))
	if cfg.ServiceName == "" {
		cfg.ServiceName = "accountd"
	}
	var out zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if cfg.Output != nil {
		out = zapcore.AddSync(cfg.Output)
	}

	prod := strings.EqualFold(cfg.Env, "prod")
	opts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))}

	var core zapcore.Core
	if prod {
		enc := zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		enc.EncodeCaller = zapcore.ShortCallerEncoder
		core = zapcore.NewCore(zapcore.NewJSONEncoder(enc), out, level)
		// ráfagas de la misma línea (p.ej. rate limit) se muestrean
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		enc.EncodeCaller = zapcore.ShortCallerEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(enc), out, level)
	}

	fields := []zap.Field{zap.String("service", cfg.ServiceName)}
	if cfg.Version != "" {
		fields = append(fields, zap.String("version", cfg.Version))
	}
	return zap.New(core, opts...).With(fields...)
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
