package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-grants/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db          *bun.DB
	cache       repositorycache.CacheService
	tokenCipher core.TokenCipher

	authServerStore core.AuthServerStore
	grantStore      *GrantStore
}

type FactoryOption func(*RepositoryFactory)

// WithAuthServerCache serves auth server reads through cacheService.
func WithAuthServerCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

// WithTokenCipher seals grant access tokens at rest.
func WithTokenCipher(tokenCipher core.TokenCipher) FactoryOption {
	return func(f *RepositoryFactory) {
		f.tokenCipher = tokenCipher
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.authServerStore != nil && f.grantStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) AuthServerStore() core.AuthServerStore {
	if f == nil {
		return nil
	}
	return f.authServerStore
}

func (f *RepositoryFactory) GrantStore() core.GrantStore {
	if f == nil || f.grantStore == nil {
		return nil
	}
	return f.grantStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	authServers, err := NewAuthServerStore(f.db)
	if err != nil {
		return err
	}
	f.authServerStore = authServers
	if f.cache != nil {
		cached, cacheErr := NewCachedAuthServerStore(authServers, f.cache)
		if cacheErr != nil {
			return cacheErr
		}
		f.authServerStore = cached
	}

	grants, err := NewGrantStore(f.db, WithGrantTokenCipher(f.tokenCipher))
	if err != nil {
		return err
	}
	f.grantStore = grants
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
