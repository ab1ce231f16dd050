package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Open selects a backend from the DSN scheme:
//
//	memory://                 process lifetime only
//	sqlite:///path/to/file.db sqlite file (directories are created)
//	redis://host:6379/0       redis (rediss:// for TLS)
func Open(ctx context.Context, dsn string) (StoreCloser, error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, fmt.Errorf("storage DSN %q has no scheme", dsn)
	}

	switch scheme {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if rest == "" {
			return nil, fmt.Errorf("sqlite storage DSN needs a path")
		}
		if rest != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(rest), 0o700); err != nil {
				return nil, fmt.Errorf("failed to create storage directory: %w", err)
			}
		}
		return OpenSQLite(ctx, rest)
	case "redis", "rediss":
		return OpenRedis(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", scheme)
	}
}
