package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AuthServerService maps authorization server URLs to stable records.
type AuthServerService struct {
	runtime serviceRuntime
	store   AuthServerStore
}

func NewAuthServerService(cfg Config, opts ...Option) (*AuthServerService, error) {
	resolved, err := resolveBuilder(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return newAuthServerService(resolved)
}

func newAuthServerService(resolved resolvedBuilder) (*AuthServerService, error) {
	if err := requireDependency("auth server store", resolved.builder.authServerStore != nil); err != nil {
		return nil, mapError(resolved.runtime.errorMapper, err)
	}
	return &AuthServerService{
		runtime: resolved.runtime.named("grants.auth_servers"),
		store:   resolved.builder.authServerStore,
	}, nil
}

// GetOrCreate inserts a record for url and falls back to the existing one
// when a concurrent caller inserted it first.
func (s *AuthServerService) GetOrCreate(ctx context.Context, url string) (server AuthServer, err error) {
	startedAt := s.runtime.now()
	url = normalizeAuthServerURL(url)
	fields := map[string]any{"auth_server_url": url}
	defer func() {
		if server.ID != "" {
			fields["auth_server_id"] = server.ID
		}
		s.runtime.observeOperation(ctx, startedAt, "auth_server_get_or_create", err, fields)
	}()

	if strings.TrimSpace(url) == "" {
		return AuthServer{}, mapError(s.runtime.errorMapper, fmt.Errorf("core: auth server url is required"))
	}

	server, err = s.store.Insert(ctx, url)
	if err == nil {
		return server, nil
	}
	if !errors.Is(err, ErrAuthServerConflict) {
		return AuthServer{}, err
	}
	fields["conflict"] = true
	server, err = s.store.GetByURL(ctx, url)
	if err != nil {
		return AuthServer{}, err
	}
	return server, nil
}
