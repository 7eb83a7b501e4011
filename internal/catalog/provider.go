package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dinepick/pkg/database"
)

// Drivers
const (
	DriverStatic = "static"
	DriverSQLite = "sqlite"
)

// Options selects and tunes the candidate provider.
type Options struct {
	Driver    string
	Database  *database.Config
	CacheSize int
	CacheTTL  time.Duration
}

// New builds the configured provider wrapped in a result cache.
// The caller closes it.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Cached, error) {
	switch opts.Driver {
	case "", DriverStatic:
		return NewCached(NewStatic(nil), opts.CacheSize, opts.CacheTTL), nil
	case DriverSQLite:
		store, err := OpenSQLite(ctx, opts.Database, logger)
		if err != nil {
			return nil, err
		}
		return NewCached(store, opts.CacheSize, opts.CacheTTL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
