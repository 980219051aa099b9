package server

import (
	"log/slog"
	"net/http"
	"time"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
)

// logging logs method, path, status and duration.
func logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			logger.Info("HTTP request",
				logfields.Method(r.Method),
				logfields.Path(r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				logfields.Duration(time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr))
		})
	}
}

// recovery turns a handler panic into a classified 500 response.
func recovery(logger *slog.Logger, adapter *ferrors.HTTPErrorAdapter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("HTTP handler panic",
						slog.Any("panic", rec),
						logfields.Path(r.URL.Path),
						logfields.Method(r.Method))
					adapter.WriteErrorResponse(w, r, ferrors.NewError(ferrors.CategoryInternal, "internal server error").
						WithContext("path", r.URL.Path).
						Build())
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter captures status codes for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
