package host

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/jub0bs/cors"
	"golang.org/x/time/rate"

	"github.com/IlyaErmolovich/gc-frontend/internal/apperrors"
	"github.com/IlyaErmolovich/gc-frontend/internal/logger"
)

const (
	cacheNoStore    = "no-store, no-cache, must-revalidate"
	cacheLongLived  = "public, max-age=31536000"
	cacheRevalidate = "no-cache"
	opsCacheControl = "no-store"
)

// CORS returns a CORS middleware using the provided pre-built middleware instance.
func CORS(middleware *cors.Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return middleware.Wrap(next)
	}
}

// Rescue recovers from panics in later handlers, logs the panic with its stack and answers 500.
// The connection is reused and the process keeps serving.
func Rescue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}

			logger.ContextMiddlewareLogger(r.Context()).Error("request panic",
				slog.String("component", "Rescue"),
				slog.Group("http",
					slog.String("uri", r.RequestURI),
					slog.String("method", r.Method),
				),
				slog.Group("error",
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())),
				),
			)
			logger.ContextWithLogAttrs(r.Context(), slog.Bool("panic", true))

			RespondWithError(w, r, http.StatusInternalServerError, apperrors.ErrCodeInternalError, "Internal Server Error")
		}()
		next.ServeHTTP(w, r)
	})
}

// CacheControl applies the cache policy: nothing under /api/ or on the operational routes is cached,
// everything else may be cached for a year. The entry document handler overrides this for its fallback.
func CacheControl(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch p := r.URL.Path; {
		case strings.HasPrefix(p, "/api/"):
			w.Header().Set("Cache-Control", cacheNoStore)
		case strings.HasPrefix(p, "/health/"), p == "/version", p == "/metrics":
			w.Header().Set("Cache-Control", opsCacheControl)
		default:
			w.Header().Set("Cache-Control", cacheLongLived)
		}
		next.ServeHTTP(w, r)
	})
}

func SecurityHeaders(environment string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if environment == "prod" || environment == "staging" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits requests per second across all clients. rps 0 disables the limit.
func RateLimit(rps int32, burst int32) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := rate.NewLimiter(rate.Limit(rps), int(burst))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				RespondWithError(w, r, http.StatusTooManyRequests,
					apperrors.ErrCodeRateLimitExceeded, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
