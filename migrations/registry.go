package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	streaming "github.com/jshuaaaa/lz-stable-streaming"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	rootPath = "data/sql/migrations"
)

// Schema lists the streaming migrations in apply order. Every step ships an
// up and a down file for each dialect.
var Schema = []string{
	"00001_streaming_core_schema",
	"00002_streaming_gateway",
}

// SQLRegistrar is the part of a go-persistence-bun client that accepts SQL
// migration trees.
type SQLRegistrar interface {
	RegisterSQLMigrations(migrations ...fs.FS) *persistence.Migrations
}

// NormalizeDialect maps driver names onto the dialects the schema ships for.
func NormalizeDialect(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: unsupported dialect %q", name)
	}
}

// ForDialect returns the migration tree for dialect. The embedded schema is
// used unless root is given; root must hold the data/sql/migrations layout.
func ForDialect(dialect string, root ...fs.FS) (fs.FS, error) {
	name, err := NormalizeDialect(dialect)
	if err != nil {
		return nil, err
	}
	source := streaming.GetCoreMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		source = root[0]
	}

	dir := rootPath
	if name == DialectSQLite {
		dir += "/sqlite"
	}
	tree, err := fs.Sub(source, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s tree: %w", name, err)
	}
	for _, step := range Schema {
		for _, direction := range []string{"up", "down"} {
			file := step + "." + direction + ".sql"
			content, readErr := fs.ReadFile(tree, file)
			if readErr != nil {
				return nil, fmt.Errorf("migrations: %s %s: %w", name, file, readErr)
			}
			if strings.TrimSpace(string(content)) == "" {
				return nil, fmt.Errorf("migrations: %s %s is empty", name, file)
			}
		}
	}
	return tree, nil
}

// Register adds the streaming schema for dialect to client.
func Register(client SQLRegistrar, dialect string, root ...fs.FS) error {
	if client == nil {
		return fmt.Errorf("migrations: registrar is required")
	}
	tree, err := ForDialect(dialect, root...)
	if err != nil {
		return err
	}
	client.RegisterSQLMigrations(tree)
	return nil
}
