package middlewares

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/accountd/internal/http/helpers"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// statusRecorder captura el status code y bytes escritos de la respuesta.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.status = http.StatusOK
		s.wroteHeader = true
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// WithLogging abre el logger del request (request_id, method, path) y al
// final escribe una línea de acceso. Los campos que agreguen middlewares
// internos con logger.AddFields (sesión, usuario) salen en esa línea.
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := w.Header().Get("X-Request-ID")
			if requestID == "" {
				requestID = GetRequestID(r.Context())
			}
			ctx := logger.ToContext(r.Context(), logger.L().With(
				logger.RequestID(requestID),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.ClientIP(helpers.ClientIP(r)),
			))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(ctx))

			fields := []zap.Field{
				logger.Status(rec.status),
				logger.Bytes(rec.bytes),
				logger.DurationMs(time.Since(start).Milliseconds()),
			}
			if rc := chi.RouteContext(ctx); rc != nil && rc.RoutePattern() != "" {
				fields = append(fields, logger.Route(rc.RoutePattern()))
			}
			log := logger.From(ctx)
			switch {
			case rec.status >= 500:
				log.Error("request failed", fields...)
			case rec.status == http.StatusTooManyRequests, rec.status == http.StatusForbidden:
				// throttling y CSRF: útil para detectar abuso
				log.Warn("request rejected", append(fields, logger.UserAgent(r.UserAgent()))...)
			default:
				log.Info("request completed", fields...)
			}
		})
	}
}
