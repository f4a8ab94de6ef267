package http

import (
	"net/http"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/logging"
	"go.uber.org/zap"
)

// RequestLogger attaches the logger to the request context and logs request
// details with latency.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			ctx := logging.WithContext(r.Context(), logger)
			next.ServeHTTP(rec, r.WithContext(ctx))

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// TenantID reads the tenant from the request header. API routes require it;
// webhook routes do not, since providers cannot send it.
func TenantID(r *http.Request) string {
	return r.Header.Get("X-Tenant-ID")
}

// RequireTenant rejects API requests without a tenant header.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TenantID(r) == "" {
			writeError(w, http.StatusBadRequest, codeMissingTenant, "X-Tenant-ID header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
