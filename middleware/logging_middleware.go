package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Logging logs every request once it has been handled.
func Logging(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("host", r.Host),
				zap.String("remote", r.RemoteAddr),
				zap.Int("status", status),
				zap.Int64("bytes", rec.bytes),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}
