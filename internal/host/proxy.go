package host

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/IlyaErmolovich/gc-frontend/internal/apperrors"
	"github.com/IlyaErmolovich/gc-frontend/internal/logger"
)

// newAPIProxy forwards /api/* to the backend at baseURL so the SPA can call it same-origin
func newAPIProxy(baseURL string) (http.Handler, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", baseURL, err)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		// the host's own no-store policy applies to proxied responses
		ModifyResponse: func(res *http.Response) error {
			res.Header.Del("Cache-Control")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ContextMiddlewareLogger(r.Context()).Error("backend unreachable",
				slog.String("component", "apiProxy"),
				slog.String("target", target.String()),
				slog.String("error", err.Error()),
			)
			RespondWithError(w, r, http.StatusBadGateway, apperrors.ErrCodeBadGateway, "The backend is not reachable")
		},
	}, nil
}
