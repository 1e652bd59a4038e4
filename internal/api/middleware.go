package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alissonpelizaro/rules-system/internal/logger"
	"github.com/alissonpelizaro/rules-system/internal/observability"
)

// requestLogger injects a request-scoped logger into the context, logs
// each completed request, and records the HTTP metrics.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := middleware.GetReqID(r.Context())
		reqLogger := a.logger.With(slog.String("request_id", reqID))
		ctx := logger.WithContext(r.Context(), reqLogger)

		// Wrap the ResponseWriter to capture the status code.
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		duration := time.Since(start)
		status := ww.Status()

		// chi only knows the route pattern after routing, so read it here
		// to keep the metric cardinality bounded (no raw ids in labels).
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		observability.APIReqDuration.WithLabelValues(r.Method, path).Observe(duration.Seconds())
		observability.APIReqTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()

		// Info for success, Warn for 4xx, Error for 5xx.
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		reqLogger.Log(r.Context(), level, "HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", duration.String(),
			"remote_ip", r.RemoteAddr,
		)
	})
}
