package logger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
)

// context keys
type contextKey struct {
	name string
}

var (
	logAttrsKey         = contextKey{"log_attrs"}
	middlewareLoggerKey = contextKey{"middleware_logger"}
)

// ContextWithLogAttrs allows handlers to add attributes to the final request log.
//
// The values are appended to a shared slice created by the RequestLogging middleware.
// Use it for tracking information that is only known inside the handler, for example whether the entry document was served as a fallback.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if attrPtr, ok := ctx.Value(logAttrsKey).(*[]slog.Attr); ok {
		*attrPtr = append(*attrPtr, attrs...)
		return ctx
	}
	slog.Warn("ContextWithLogAttrs called on context without shared log attributes slice")
	return ctx
}

func ContextLogAttrs(ctx context.Context) []slog.Attr {
	if attrPtr, ok := ctx.Value(logAttrsKey).(*[]slog.Attr); ok {
		return *attrPtr
	}
	return nil
}

// ContextMiddlewareLogger retrieves the request-scoped logger from context.
//
// Entries written through it include the request_id.
func ContextMiddlewareLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(middlewareLoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ParseLogLevel converts a string log level to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// InitLogger creates a logger with the specified log level.
// Uses colourised text for the dev environment, otherwise output is JSON
func InitLogger(logLevel slog.Level, environment string) *slog.Logger {
	if environment == "dev" {
		return slog.New(
			tint.NewHandler(os.Stderr, &tint.Options{
				Level:      logLevel,
				TimeFormat: time.Kitchen,
			}),
		)
	}
	return slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
}

// Discard returns a logger that drops everything (used by tests and quiet CLI runs)
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// requestComponent classifies a path for the request log
func requestComponent(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/"):
		return "api"
	case strings.HasPrefix(path, "/health/"), path == "/version", path == "/metrics":
		return "ops"
	default:
		return "static"
	}
}

// RequestLogging is a middleware that logs HTTP requests
//
// Two kinds of logging are supported:
//  1. immediate logging during the request via ContextMiddlewareLogger
//  2. attributes for the completion entry via ContextWithLogAttrs
func RequestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			middlewareLogger := logger.With(
				slog.String("type", "middleware"),
				slog.String("request_id", requestID),
			)

			sharedAttrs := &[]slog.Attr{}
			ctx := context.WithValue(r.Context(), logAttrsKey, sharedAttrs)
			ctx = context.WithValue(ctx, middlewareLoggerKey, middlewareLogger)
			req := r.WithContext(ctx)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, req)

			logAttrs := []slog.Attr{
				slog.String("type", "HTTP"),
				slog.Int("status", ww.Status()),
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("component", requestComponent(r.URL.Path)),
			}
			logAttrs = append(logAttrs, ContextLogAttrs(req.Context())...)
			logAttrs = append(logAttrs,
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
			)

			switch {
			case ww.Status() >= 500:
				logger.LogAttrs(r.Context(), slog.LevelError, "request completed", logAttrs...)
			case ww.Status() >= 400:
				logger.LogAttrs(r.Context(), slog.LevelWarn, "request completed", logAttrs...)
			default:
				logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", logAttrs...)
			}
		})
	}
}
