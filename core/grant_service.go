package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

var interactStartRedirect = []string{"redirect"}

// GrantService reuses, rotates and requests grants for a scope.
type GrantService struct {
	runtime     serviceRuntime
	store       GrantStore
	authServers *AuthServerService
	client      AuthorizationServerClient
	flights     *singleflight.Group
}

func NewGrantService(cfg Config, opts ...Option) (*GrantService, error) {
	resolved, err := resolveBuilder(cfg, opts...)
	if err != nil {
		return nil, err
	}
	authServers, err := newAuthServerService(resolved)
	if err != nil {
		return nil, err
	}
	return newGrantService(resolved, authServers)
}

func newGrantService(resolved resolvedBuilder, authServers *AuthServerService) (*GrantService, error) {
	mapper := resolved.runtime.errorMapper
	if err := requireDependency("grant store", resolved.builder.grantStore != nil); err != nil {
		return nil, mapError(mapper, err)
	}
	if err := requireDependency("authorization server client", resolved.builder.authServerClient != nil); err != nil {
		return nil, mapError(mapper, err)
	}
	svc := &GrantService{
		runtime:     resolved.runtime.named("grants.grant_service"),
		store:       resolved.builder.grantStore,
		authServers: authServers,
		client:      resolved.builder.authServerClient,
	}
	if resolved.runtime.config.Grants.SingleFlight {
		svc.flights = &singleflight.Group{}
	}
	return svc, nil
}

// Get returns a usable cached grant for scope without contacting the
// authorization server. Expired grants are returned as stored.
func (s *GrantService) Get(ctx context.Context, scope GrantScope) (Grant, bool, error) {
	scope = scope.normalized()
	if err := scope.Validate(); err != nil {
		return Grant{}, false, mapError(s.runtime.errorMapper, err)
	}
	grant, err := s.store.FindUsable(ctx, scope)
	if errors.Is(err, ErrGrantNotFound) {
		return Grant{}, false, nil
	}
	if err != nil {
		return Grant{}, false, mapError(s.runtime.errorMapper, err)
	}
	return grant, true, nil
}

func (s *GrantService) GetOrCreate(ctx context.Context, scope GrantScope) (grant Grant, err error) {
	startedAt := s.runtime.now()
	scope = scope.normalized()
	fields := scopeFields(scope)
	defer func() {
		if grant.ID != "" {
			fields["grant_id"] = grant.ID
		}
		s.runtime.observeOperation(ctx, startedAt, "grant_get_or_create", err, fields)
	}()

	if err := scope.Validate(); err != nil {
		return Grant{}, mapError(s.runtime.errorMapper, err)
	}

	if s.flights == nil {
		grant, err = s.getOrCreate(ctx, scope, fields)
		return grant, mapError(s.runtime.errorMapper, err)
	}

	// The flight outlives any single caller; each caller still honours its own ctx.
	flight := s.flights.DoChan(scope.Key(), func() (any, error) {
		return s.getOrCreate(context.WithoutCancel(ctx), scope, cloneFields(fields))
	})
	select {
	case <-ctx.Done():
		return Grant{}, mapError(s.runtime.errorMapper, ctx.Err())
	case result := <-flight:
		fields["shared"] = result.Shared
		if result.Err != nil {
			return Grant{}, mapError(s.runtime.errorMapper, result.Err)
		}
		return result.Val.(Grant), nil
	}
}

func (s *GrantService) getOrCreate(ctx context.Context, scope GrantScope, fields map[string]any) (Grant, error) {
	existing, err := s.store.FindUsable(ctx, scope)
	switch {
	case err == nil:
		fields["cached_grant_id"] = existing.ID
		now := s.runtime.now()
		if !existing.Expired(now) {
			fields["path"] = "cached"
			return existing, nil
		}
		rotated, ok, rotateErr := s.rotate(ctx, existing, fields)
		if rotateErr != nil {
			return Grant{}, rotateErr
		}
		if ok {
			fields["path"] = "rotated"
			return rotated, nil
		}
		if _, deleteErr := s.store.SoftDelete(ctx, existing.ID, s.runtime.now()); deleteErr != nil {
			return Grant{}, deleteErr
		}
	case errors.Is(err, ErrGrantNotFound):
	default:
		return Grant{}, err
	}

	fields["path"] = "created"
	return s.create(ctx, scope, fields)
}

// rotate exchanges the token of an expired grant. A false result without an
// error means rotation was refused and the grant must be replaced.
func (s *GrantService) rotate(ctx context.Context, existing Grant, fields map[string]any) (Grant, bool, error) {
	managementURL := ManagementURL(existing.AuthServerURL, s.runtime.config.Grants.ManagementPath, existing.ManagementID)
	logFields := cloneFields(fields)
	logFields["grant_id"] = existing.ID
	logFields["url"] = managementURL

	response, err := s.client.RotateToken(ctx, RotateTokenRequest{
		ManagementURL: managementURL,
		AccessToken:   existing.AccessToken,
	})
	if err == nil && response.Pending() {
		err = fmt.Errorf("core: rotation response carried no access token")
	}
	managementID := existing.ManagementID
	if err == nil && strings.TrimSpace(response.AccessToken.ManageURL) != "" {
		managementID, err = ParseManagementID(response.AccessToken.ManageURL)
	}
	if err != nil {
		s.recordRotation(ctx, existing, "failure")
		s.runtime.logWarn(ctx, "grant rotation failed", withUpstreamFields(logFields, err))
		return Grant{}, false, nil
	}

	updated, err := s.store.UpdateToken(ctx, existing.ID, UpdateGrantTokenInput{
		AccessToken:  response.AccessToken.Value,
		ManagementID: managementID,
		ExpiresAt:    expiresAtFrom(s.runtime.now(), response.AccessToken.ExpiresIn),
	})
	if err != nil {
		return Grant{}, false, err
	}
	if updated.AuthServerURL == "" {
		updated.AuthServerURL = existing.AuthServerURL
	}
	s.recordRotation(ctx, existing, "success")
	return updated, true, nil
}

func (s *GrantService) create(ctx context.Context, scope GrantScope, fields map[string]any) (Grant, error) {
	server, err := s.authServers.GetOrCreate(ctx, scope.AuthServerURL)
	if err != nil {
		return Grant{}, err
	}

	response, err := s.client.RequestGrant(ctx, scope.AuthServerURL, GrantRequest{
		Access: []AccessItem{{
			Type:    scope.AccessType,
			Actions: append([]AccessAction(nil), scope.AccessActions...),
		}},
		InteractStarts: append([]string(nil), interactStartRedirect...),
	})
	if err != nil {
		logFields := withUpstreamFields(fields, err)
		s.runtime.logWarn(ctx, "grant request failed", logFields)
		return Grant{}, classify(ErrInvalidGrantRequest, "grant request failed", logFields)
	}
	if response.Pending() {
		s.runtime.logWarn(ctx, "grant request requires interaction", fields)
		return Grant{}, classify(ErrGrantRequiresInteraction, "grant request requires interaction", cloneFields(fields))
	}

	managementID, err := ParseManagementID(response.AccessToken.ManageURL)
	if err != nil {
		logFields := withUpstreamFields(fields, err)
		s.runtime.logWarn(ctx, "grant response has invalid management url", logFields)
		return Grant{}, classify(ErrInvalidGrantRequest, ErrInvalidManagementID.Error(), logFields)
	}

	grant, err := s.store.Create(ctx, CreateGrantInput{
		AuthServerID:  server.ID,
		AccessType:    scope.AccessType,
		AccessActions: ExpandAccessActions(scope.AccessActions),
		AccessToken:   response.AccessToken.Value,
		ManagementID:  managementID,
		ExpiresAt:     expiresAtFrom(s.runtime.now(), response.AccessToken.ExpiresIn),
	})
	if err != nil {
		return Grant{}, err
	}
	if grant.AuthServerURL == "" {
		grant.AuthServerURL = server.URL
	}
	return grant, nil
}

// Delete soft deletes a grant so it is never matched again.
func (s *GrantService) Delete(ctx context.Context, id string) (grant Grant, err error) {
	startedAt := s.runtime.now()
	id = strings.TrimSpace(id)
	fields := map[string]any{"grant_id": id}
	defer func() {
		s.runtime.observeOperation(ctx, startedAt, "grant_delete", err, fields)
	}()

	if id == "" {
		return Grant{}, mapError(s.runtime.errorMapper, fmt.Errorf("core: grant id is required"))
	}
	grant, err = s.store.SoftDelete(ctx, id, s.runtime.now())
	if err != nil {
		return Grant{}, mapError(s.runtime.errorMapper, err)
	}
	return grant, nil
}

func (s *GrantService) recordRotation(ctx context.Context, grant Grant, outcome string) {
	s.runtime.recordCounter(ctx, metricRotationTotal, 1, map[string]string{
		"access_type": string(grant.AccessType),
		"outcome":     outcome,
	})
}

func expiresAtFrom(now time.Time, expiresIn *int64) *time.Time {
	if expiresIn == nil {
		return nil
	}
	at := now.Add(time.Duration(*expiresIn) * time.Second)
	return &at
}

func withUpstreamFields(fields map[string]any, err error) map[string]any {
	out := cloneFields(fields)
	if err == nil {
		return out
	}
	out["upstream_error"] = err.Error()
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		out["upstream_status"] = clientErr.Status
		out["upstream_description"] = clientErr.Description
		if clientErr.URL != "" {
			out["url"] = clientErr.URL
		}
	}
	return out
}

var _ GrantCache = (*GrantService)(nil)
