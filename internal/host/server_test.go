package host

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/IlyaErmolovich/gc-frontend/internal/config"
	"github.com/IlyaErmolovich/gc-frontend/internal/logger"
)

const indexHTML = `<!doctype html><html><body><div id="root"></div><script src="/static/js/main.3f2a.js"></script></body></html>`

func testBuild() fstest.MapFS {
	return fstest.MapFS{
		"index.html":             {Data: []byte(indexHTML)},
		"favicon.ico":            {Data: []byte("ICO")},
		"static/js/main.3f2a.js": {Data: []byte("console.log('app')")},
		"static/css/main.css":    {Data: []byte("body{}")},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:    "test",
		Host:           "127.0.0.1",
		Port:           3000,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		IdleTimeout:    5 * time.Second,
		APIBaseURL:     "http://localhost:5000",
		APITimeout:     30 * time.Second,
		BuildDir:       "./build",
		IndexFile:      "index.html",
		RateLimitBurst: 20,
		StorageDSN:     "memory://",
	}
}

func newTestServer(t *testing.T, cfg *config.Config, build fstest.MapFS) http.Handler {
	t.Helper()
	s, err := NewServer(cfg, build, logger.Discard())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s.Handler()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestStaticFilesAndFallback(t *testing.T) {
	h := newTestServer(t, testConfig(), testBuild())

	tests := []struct {
		name      string
		path      string
		wantBody  string
		wantCache string
	}{
		{"root", "/", indexHTML, "no-cache"},
		{"client route", "/dashboard", indexHTML, "no-cache"},
		{"nested client route", "/users/42/edit", indexHTML, "no-cache"},
		{"entry document by name", "/index.html", indexHTML, "no-cache"},
		{"directory", "/static/js", indexHTML, "no-cache"},
		{"missing asset", "/static/js/old.js", indexHTML, "no-cache"},
		{"asset", "/static/js/main.3f2a.js", "console.log('app')", "public, max-age=31536000"},
		{"top level file", "/favicon.ico", "ICO", "public, max-age=31536000"},
		{"api namespace", "/api/users/profile", indexHTML, "no-store, no-cache, must-revalidate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			if rr.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.wantBody)
			}
			if got := rr.Header().Get("Cache-Control"); got != tt.wantCache {
				t.Errorf("Cache-Control = %q, want %q", got, tt.wantCache)
			}
		})
	}
}

func TestDirectoryWithOwnIndex(t *testing.T) {
	build := testBuild()
	build["docs/index.html"] = &fstest.MapFile{Data: []byte("DOCS")}
	h := newTestServer(t, testConfig(), build)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/docs/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "DOCS" {
		t.Errorf("body = %q, want the directory's own index", rr.Body.String())
	}

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/docs", nil))
	if rr.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rr.Code)
	}
	if loc := rr.Header().Get("Location"); !strings.HasSuffix(loc, "docs/") {
		t.Errorf("Location = %q, want it to end in docs/", loc)
	}

	// a directory without an index still gets the entry document
	rr = serve(h, httptest.NewRequest(http.MethodGet, "/static/", nil))
	if rr.Body.String() != indexHTML {
		t.Errorf("body = %q, want the entry document", rr.Body.String())
	}
}

func TestDashboardNotCachedLongTerm(t *testing.T) {
	h := newTestServer(t, testConfig(), testBuild())

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q, want text/html", rr.Header().Get("Content-Type"))
	}
	if strings.Contains(rr.Header().Get("Cache-Control"), "max-age=31536000") {
		t.Errorf("entry document served with long-lived cache: %q", rr.Header().Get("Cache-Control"))
	}
}

func TestHeadRequest(t *testing.T) {
	h := newTestServer(t, testConfig(), testBuild())

	rr := serve(h, httptest.NewRequest(http.MethodHead, "/dashboard", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestMissingEntryDocument(t *testing.T) {
	build := testBuild()
	delete(build, "index.html")
	h := newTestServer(t, testConfig(), build)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body.ErrorCode != "entry_document_unavailable" {
		t.Errorf("error_code = %q", body.ErrorCode)
	}

	// assets are still served
	rr = serve(h, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("asset status = %d, want 200", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, testConfig(), testBuild())

	t.Run("simple request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("Origin", "https://somewhere.example")
		rr := serve(h, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/users/profile", nil)
		req.Header.Set("Origin", "https://somewhere.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		req.Header.Set("Access-Control-Request-Headers", "content-type,user-id")
		rr := serve(h, req)

		if rr.Code < 200 || rr.Code > 299 {
			t.Fatalf("status = %d, want 2xx", rr.Code)
		}
		if rr.Body.Len() != 0 {
			t.Errorf("preflight body = %q, want empty", rr.Body.String())
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
		}
	})

	t.Run("plain options", func(t *testing.T) {
		rr := serve(h, httptest.NewRequest(http.MethodOptions, "/dashboard", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		if rr.Body.Len() != 0 {
			t.Errorf("body = %q, want empty", rr.Body.String())
		}
	})
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, testConfig(), testBuild())

	rr := serve(h, httptest.NewRequest(http.MethodPost, "/dashboard", strings.NewReader("x")))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	if got := rr.Header().Get("Cache-Control"); got != cacheNoStore {
		t.Errorf("Cache-Control = %q, want %q", got, cacheNoStore)
	}
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		environment string
		wantHSTS    bool
	}{
		{"dev", false},
		{"prod", true},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := testConfig()
			cfg.Environment = tt.environment
			h := newTestServer(t, cfg, testBuild())

			rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
			if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("X-Content-Type-Options not set")
			}
			if got := rr.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS set = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}

func TestOperationalRoutes(t *testing.T) {
	h := newTestServer(t, testConfig(), testBuild())

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Errorf("/health/live = %d %q", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("/health/live Cache-Control = %q", got)
	}

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("/version body is not JSON: %v", err)
	}
	if info["version"] == "" {
		t.Errorf("/version = %v", info)
	}

	serve(h, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	rr = serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"http_requests_total", `route="/*"`, "build_info"} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics does not contain %s", want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 10
	cfg.RateLimitBurst = 5
	h := newTestServer(t, cfg, testBuild())

	for i := 0; i < 5; i++ {
		rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("Request %d failed: got status %d, want %d", i+1, rr.Code, http.StatusOK)
		}
	}

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Rate limit request should fail: got status %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
}

func TestAPIProxy(t *testing.T) {
	var gotPath, gotQuery, gotUserID string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotUserID = r.URL.Path, r.URL.Query().Get("t"), r.Header.Get("user-id")
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"user":{"id":1,"username":"alice","role_id":2}}`)
	}))
	defer backend.Close()

	cfg := testConfig()
	cfg.ProxyAPI = true
	cfg.APIBaseURL = backend.URL
	h := newTestServer(t, cfg, testBuild())

	req := httptest.NewRequest(http.MethodGet, "/api/users/profile?t=1700000000000", nil)
	req.Header.Set("user-id", "1")
	rr := serve(h, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if gotPath != "/api/users/profile" || gotQuery != "1700000000000" || gotUserID != "1" {
		t.Errorf("backend saw path=%q t=%q user-id=%q", gotPath, gotQuery, gotUserID)
	}
	if got := rr.Header().Values("Cache-Control"); len(got) != 1 || got[0] != cacheNoStore {
		t.Errorf("Cache-Control = %v, want [%s]", got, cacheNoStore)
	}
	if !strings.Contains(rr.Body.String(), `"alice"`) {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestAPIProxyUnreachable(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := backend.URL
	backend.Close()

	cfg := testConfig()
	cfg.ProxyAPI = true
	cfg.APIBaseURL = url
	h := newTestServer(t, cfg, testBuild())

	rr := serve(h, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`)))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
}
