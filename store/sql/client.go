package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	streammigrations "github.com/jshuaaaa/lz-stable-streaming/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const defaultPingTimeout = 5 * time.Second

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return defaultPingTimeout
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "lz-stable-streaming"
}

// OpenClient opens the configured database, registers the embedded
// migrations for its dialect and applies them.
func OpenClient(ctx context.Context, cfg core.PersistenceConfig) (*persistence.Client, error) {
	driver, dialectName, dialect, err := resolveDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		if dialectName != streammigrations.DialectSQLite {
			return nil, fmt.Errorf("sqlstore: persistence dsn is required for %s", driver)
		}
		dsn = fmt.Sprintf("file:streaming-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if dialectName == streammigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: dsn, debug: cfg.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	if err := streammigrations.Register(client, dialectName); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}

func resolveDialect(driver string) (string, string, schema.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite3", "sqlite":
		return "sqlite3", streammigrations.DialectSQLite, sqlitedialect.New(), nil
	case "postgres", "pgx":
		return "postgres", streammigrations.DialectPostgres, pgdialect.New(), nil
	default:
		return "", "", nil, fmt.Errorf("sqlstore: unsupported persistence driver %q", driver)
	}
}
