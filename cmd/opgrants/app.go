package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"time"

	grants "github.com/goliatone/go-grants"
	"github.com/goliatone/go-grants/adapters/gocommand"
	"github.com/goliatone/go-grants/adapters/gologger"
	"github.com/goliatone/go-grants/migrations"
	"github.com/goliatone/go-grants/openpayments"
	"github.com/goliatone/go-grants/security"
	sqlstore "github.com/goliatone/go-grants/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	defaultDriver         = "sqlite3"
	defaultDSN            = "file:opgrants.db?cache=shared&_foreign_keys=on"
	defaultLogLevel       = "warn"
	defaultRequestTimeout = 15 * time.Second
	authServerCacheTTL    = 10 * time.Minute
)

type rootOptions struct {
	driver              string
	dsn                 string
	clientWalletAddress string
	logLevel            string
	tokenKey            string
	requestTimeout      time.Duration
	debugSQL            bool
}

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "opgrants" }

// app owns everything a single CLI invocation opens.
type app struct {
	facade        *grants.Facade
	subscriptions gocommand.Subscriptions
	client        *persistence.Client
}

func openApp(ctx context.Context, opts rootOptions, logOut io.Writer) (*app, error) {
	client, err := openPersistence(ctx, opts)
	if err != nil {
		return nil, err
	}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = authServerCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("opgrants: auth server cache: %w", err)
	}

	factoryOpts := []sqlstore.FactoryOption{sqlstore.WithAuthServerCache(cacheService)}
	if opts.tokenKey != "" {
		tokenCipher, cipherErr := security.NewAppKeyCipherFromString(opts.tokenKey)
		if cipherErr != nil {
			_ = client.Close()
			return nil, cipherErr
		}
		factoryOpts = append(factoryOpts, sqlstore.WithTokenCipher(tokenCipher))
	}

	logger := gologger.NewConsoleLogger(opts.logLevel, logOut)
	clientConfig := openpayments.Config{
		ClientWalletAddress: opts.clientWalletAddress,
		RequestTimeout:      opts.requestTimeout,
	}

	svc, err := grants.NewService(grants.Config{},
		grants.WithLoggerProvider(logger),
		grants.WithConfigProvider(envConfigProvider{}),
		grants.WithPersistenceClient(client),
		grants.WithRepositoryFactory(sqlstore.NewRepositoryFactory(factoryOpts...)),
		grants.WithAuthServerClient(openpayments.NewAuthServerClient(clientConfig)),
		grants.WithResourceServerClient(openpayments.NewResourceServerClient(clientConfig)),
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	facade, err := grants.NewFacade(svc)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	subscriptions, err := gocommand.RegisterFacade(gocommand.NewRegistryAdapter(nil), facade)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &app{facade: facade, subscriptions: subscriptions, client: client}, nil
}

func (a *app) Close() error {
	if a == nil {
		return nil
	}
	a.subscriptions.Unsubscribe()
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

func openPersistence(ctx context.Context, opts rootOptions) (*persistence.Client, error) {
	dialect, err := migrations.DialectForDriver(opts.driver)
	if err != nil {
		return nil, err
	}

	driver := "postgres"
	if dialect == migrations.DialectSQLite {
		driver = "sqlite3"
	}
	sqlDB, err := sql.Open(driver, opts.dsn)
	if err != nil {
		return nil, fmt.Errorf("opgrants: open %s database: %w", driver, err)
	}

	cfg := persistenceConfig{driver: driver, server: opts.dsn, debug: opts.debugSQL}
	var client *persistence.Client
	switch dialect {
	case migrations.DialectSQLite:
		// sqlite serializes writers; one connection keeps in-memory databases shared.
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	default:
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("opgrants: persistence client: %w", err)
	}

	if _, err := migrations.RegisterDialect(ctx, dialect, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	}); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("opgrants: migrate: %w", err)
	}
	return client, nil
}
