package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/accredit/compliance/internal/domain"
)

type contextKeyType string

const requestIDKey contextKeyType = "request_id"

// maxRequestIDLen bounds caller-supplied X-Request-ID values.
const maxRequestIDLen = 64

// RequestObserver receives one observation per completed request.
// *metrics.Metrics satisfies it.
type RequestObserver interface {
	ObserveHTTPRequest(method, route string, status int, d time.Duration)
}

// RequestID injects a request ID into the request context and response header.
// A caller-supplied X-Request-ID is kept when it is short and printable.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !validRequestID(id) {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestLogger logs each request and reports it to obs, which may be nil.
// The chi route pattern is used instead of the raw path so wallet keys stay
// out of log fields and metric labels.
func RequestLogger(logger *slog.Logger, obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			route := routePattern(r)
			if obs != nil {
				obs.ObserveHTTPRequest(r.Method, route, ww.status, elapsed)
			}

			level := slog.LevelInfo
			if ww.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", route,
				"status", ww.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", GetRequestID(r.Context()),
			)
		})
	}
}

// routePattern returns the matched chi pattern, or "unmatched" for 404s so
// arbitrary paths never become label values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unmatched"
}

// Recovery turns a panic into a 500 with the standard error body.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"error", rec,
						"stack", string(debug.Stack()),
						"route", routePattern(r),
						"request_id", GetRequestID(r.Context()),
					)
					RespondError(w, domain.ErrInternal("panic", fmt.Errorf("%v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// JSONContentType sets Content-Type to application/json for all responses.
func JSONContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code for logging.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
