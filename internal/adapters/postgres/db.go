package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Connect opens and validates a Postgres-backed GORM connection pool. The
// pool is shared by every repository; it is the only state shared across
// concurrent requests.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(int(maxConns))
		sqlDB.SetMaxIdleConns(int(maxConns) / 2)
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Default().InfoContext(ctx, "metadata store connected",
		"module", "postgres",
		"layer", "adapter",
		"operation", "connect",
		"outcome", "success",
	)
	return db, nil
}

// RunMigrations applies embedded SQL migrations in lexical order. Migration
// statements are idempotent so reapplying on every startup is safe.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := db.WithContext(ctx).Exec(string(raw)).Error; err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		slog.Default().InfoContext(ctx, "migration applied",
			"module", "postgres",
			"layer", "adapter",
			"operation", "apply_migration",
			"outcome", "success",
			"migration", name,
		)
	}
	return nil
}
