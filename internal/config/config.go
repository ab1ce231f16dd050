package config

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/jub0bs/cors"
)

// Config is shared by the static host and the session commands.
// All values come from the environment.
type Config struct {
	Environment    string        `env:"ENVIRONMENT,default=dev"`
	Host           string        `env:"HOST,default=0.0.0.0"`
	Port           int           `env:"PORT,default=3000"`
	LogLevel       string        `env:"LOG_LEVEL,default=debug"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	APIBaseURL     string        `env:"API_BASE_URL"`
	APITimeout     time.Duration `env:"API_TIMEOUT,default=30s"`
	BuildDir       string        `env:"BUILD_DIR,default=./build"`
	IndexFile      string        `env:"INDEX_FILE,default=index.html"`
	ProxyAPI       bool          `env:"PROXY_API,default=false"`
	RateLimitRPS   int32         `env:"RATE_LIMIT_RPS,default=0"`
	RateLimitBurst int32         `env:"RATE_LIMIT_BURST,default=20"`
	StorageDSN     string        `env:"STORAGE_DSN"`

	// REACT_APP_API_URL is honoured when API_BASE_URL is not set so existing deployments keep working
	LegacyAPIURL string `env:"REACT_APP_API_URL"`
}

const (
	DefaultAPIBaseURL = "http://localhost:5000"

	// ServerShutdownTimeout is the timeout for graceful server shutdown
	ServerShutdownTimeout = 10 * time.Second

	CORSMaxAgeInSeconds = 86400 // 24 hours
)

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"perf":    true,
	"prod":    true,
	"staging": true,
}

var validStorageSchemes = map[string]bool{
	"memory": true,
	"sqlite": true,
	"redis":  true,
	"rediss": true,
}

func NewConfig() (*Config, error) {
	var cfg Config

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = cfg.LegacyAPIURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.StorageDSN == "" {
		cfg.StorageDSN = DefaultStorageDSN()
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// DefaultStorageDSN points at a sqlite file in the user's config directory, falling back to the working directory
func DefaultStorageDSN() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "sqlite://gc-frontend-session.db"
	}
	return "sqlite://" + filepath.Join(dir, "gc-frontend", "session.db")
}

func validateConfig(cfg *Config) error {
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid environment '%s'. Valid environments: dev, test, perf, staging, prod", cfg.Environment)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}

	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %v", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %v", cfg.IdleTimeout)
	}
	if cfg.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got %v", cfg.APITimeout)
	}

	u, err := url.ParseRequestURI(cfg.APIBaseURL)
	if err != nil {
		return fmt.Errorf("API_BASE_URL is not a valid URL: %s", cfg.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL must use http or https: %s", cfg.APIBaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("API_BASE_URL does not include a host: %s", cfg.APIBaseURL)
	}
	if cfg.Environment == "prod" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL must use https in production: %s", cfg.APIBaseURL)
	}

	if cfg.BuildDir == "" {
		return fmt.Errorf("BUILD_DIR cannot be empty")
	}
	if cfg.IndexFile == "" || strings.Contains(cfg.IndexFile, "/") {
		return fmt.Errorf("INDEX_FILE must be a file name in BUILD_DIR, got %q", cfg.IndexFile)
	}

	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be 0 (disabled) or greater")
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}

	scheme, _, ok := strings.Cut(cfg.StorageDSN, "://")
	if !ok || !validStorageSchemes[scheme] {
		return fmt.Errorf("STORAGE_DSN must start with memory://, sqlite:// or redis://, got %q", cfg.StorageDSN)
	}

	return nil
}

// Addr is the listen address of the static host
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewCORSMiddleware builds the CORS policy of the static host: any origin may use it with the standard methods.
func NewCORSMiddleware() (*cors.Middleware, error) {
	corsConfig := cors.Config{
		Origins: []string{"*"},
		Methods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		RequestHeaders: []string{
			"Content-Type",
			"Authorization",
			"user-id",
			"username",
		},
		MaxAgeInSeconds: CORSMaxAgeInSeconds,
	}

	middleware, err := cors.NewMiddleware(corsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create CORS middleware: %w", err)
	}
	return middleware, nil
}
