// Package sqlite persists the notification audit journal and the treasury
// ledger with gorm on a pure-Go SQLite driver.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Open opens (creating if needed) the database at dsn and migrates the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*gorm.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ensureDirectory(dsn); err != nil {
		return nil, fmt.Errorf("ensure sqlite directory: %w", err)
	}

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&notificationRow{}, &treasuryEntryRow{}, &treasuryBalanceRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("database opened", "driver", "sqlite", "dsn", dsn)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func ensureDirectory(dsn string) error {
	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return nil
	}
	candidate = strings.TrimPrefix(candidate, "file:")
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}
	if candidate == ":memory:" {
		return nil
	}
	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
