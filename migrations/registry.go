package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	grants "github.com/goliatone/go-grants"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const migrationsDir = "data/sql/migrations"

// Source is the migration tree for one dialect. Postgres files live at the
// root of data/sql/migrations, sqlite files under its sqlite/ directory.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Sources returns the postgres and sqlite trees of the embedded grants
// schema. Each tree must carry at least one *.up.sql file.
func Sources() ([]Source, error) {
	base, err := fs.Sub(grants.GetMigrationsFS(), migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", migrationsDir, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: migrationsDir, FS: base},
		{Dialect: DialectSQLite, Path: migrationsDir + "/" + DialectSQLite, FS: sqliteFS},
	}
	for _, source := range sources {
		matches, err := fs.Glob(source.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s has no *.up.sql files", source.Path)
		}
	}
	return sources, nil
}

// RegisterFunc receives one dialect tree.
type RegisterFunc func(ctx context.Context, dialect string, fsys fs.FS) error

// Register hands the trees of the given dialects to registerFn, postgres
// first. With no dialects both trees are registered.
func Register(ctx context.Context, registerFn RegisterFunc, dialects ...string) ([]Source, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	sources, err := Sources()
	if err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(dialects))
	for _, dialect := range dialects {
		if normalized := strings.TrimSpace(strings.ToLower(dialect)); normalized != "" {
			targets = append(targets, normalized)
		}
	}
	for _, target := range targets {
		if target != DialectPostgres && target != DialectSQLite {
			return nil, fmt.Errorf("migrations: unsupported dialect %q", target)
		}
	}

	registered := make([]Source, 0, len(sources))
	for _, source := range sources {
		if len(targets) > 0 && !slices.Contains(targets, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, source.FS); err != nil {
			return registered, fmt.Errorf("migrations: register %s: %w", source.Dialect, err)
		}
		registered = append(registered, source)
	}
	return registered, nil
}

// RegisterDialect hands only the tree of one dialect to registerFn,
// typically a closure over persistence.Client.RegisterSQLMigrations.
func RegisterDialect(ctx context.Context, dialect string, registerFn func(fs.FS)) (Source, error) {
	if registerFn == nil {
		return Source{}, fmt.Errorf("migrations: register function is required")
	}
	if strings.TrimSpace(dialect) == "" {
		return Source{}, fmt.Errorf("migrations: dialect is required")
	}
	registered, err := Register(ctx, func(_ context.Context, _ string, fsys fs.FS) error {
		registerFn(fsys)
		return nil
	}, dialect)
	if err != nil {
		return Source{}, err
	}
	return registered[0], nil
}

// DialectForDriver maps a database/sql driver name to a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx", "pq":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}
