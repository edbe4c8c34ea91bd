package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-grants/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const authServerCacheKeyPrefix = "go-grants::auth_server::v1"

// CachedAuthServerStore serves auth server reads through a repository cache.
// Auth server records never change after insert, so entries are not
// invalidated.
type CachedAuthServerStore struct {
	base  core.AuthServerStore
	cache repositorycache.CacheService
}

func NewCachedAuthServerStore(
	base core.AuthServerStore,
	cacheService repositorycache.CacheService,
) (*CachedAuthServerStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base auth server store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: auth server cache service is required")
	}
	return &CachedAuthServerStore{base: base, cache: cacheService}, nil
}

// AuthServerCacheKey returns go-grants::auth_server::v1::<field>::<value> with
// the value URL-path escaped.
func AuthServerCacheKey(field string, value string) string {
	return strings.Join([]string{
		authServerCacheKeyPrefix,
		strings.TrimSpace(strings.ToLower(field)),
		url.PathEscape(strings.TrimSpace(value)),
	}, "::")
}

func (s *CachedAuthServerStore) Insert(ctx context.Context, authServerURL string) (core.AuthServer, error) {
	if s == nil || s.base == nil {
		return core.AuthServer{}, fmt.Errorf("sqlstore: cached auth server store is not configured")
	}
	return s.base.Insert(ctx, authServerURL)
}

func (s *CachedAuthServerStore) Get(ctx context.Context, id string) (core.AuthServer, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.AuthServer{}, fmt.Errorf("sqlstore: cached auth server store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	return repositorycache.GetOrFetch(ctx, s.cache, AuthServerCacheKey("id", trimmed), func(ctx context.Context) (core.AuthServer, error) {
		return s.base.Get(ctx, trimmed)
	})
}

func (s *CachedAuthServerStore) GetByURL(ctx context.Context, authServerURL string) (core.AuthServer, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.AuthServer{}, fmt.Errorf("sqlstore: cached auth server store is not configured")
	}
	trimmed := strings.TrimSpace(authServerURL)
	return repositorycache.GetOrFetch(ctx, s.cache, AuthServerCacheKey("url", trimmed), func(ctx context.Context) (core.AuthServer, error) {
		return s.base.GetByURL(ctx, trimmed)
	})
}
