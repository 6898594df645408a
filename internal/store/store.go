// Package store selects the record store backing rule lookups, heartbeats
// and the audit trail.
package store

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/pagegate/internal/audit"
	"github.com/nikhilbhutani/pagegate/internal/config"
	"github.com/nikhilbhutani/pagegate/internal/database"
	"github.com/nikhilbhutani/pagegate/internal/logging"
	"github.com/nikhilbhutani/pagegate/internal/rules"
	"github.com/nikhilbhutani/pagegate/internal/store/postgres"
	"github.com/nikhilbhutani/pagegate/internal/store/sqlite"
)

type Store interface {
	rules.Store
	audit.Store
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the configured driver. Postgres schemas are migrated on
// connect; SQLite creates its tables in place.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger logging.Logger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return postgres.New(pool), nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
