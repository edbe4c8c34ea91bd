package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryAuthServerStore struct {
	mu          sync.Mutex
	next        int
	byID        map[string]AuthServer
	inserts     int
	failInserts int
}

func newMemoryAuthServerStore() *memoryAuthServerStore {
	return &memoryAuthServerStore{byID: map[string]AuthServer{}}
}

func (s *memoryAuthServerStore) Insert(_ context.Context, url string) (AuthServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	for _, existing := range s.byID {
		if existing.URL == url {
			return AuthServer{}, fmt.Errorf("insert auth server %q: %w", url, ErrAuthServerConflict)
		}
	}
	s.next++
	server := AuthServer{
		ID:        fmt.Sprintf("as_%d", s.next),
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}
	s.byID[server.ID] = server
	return server, nil
}

func (s *memoryAuthServerStore) Get(_ context.Context, id string) (AuthServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	server, ok := s.byID[id]
	if !ok {
		return AuthServer{}, ErrAuthServerNotFound
	}
	return server, nil
}

func (s *memoryAuthServerStore) GetByURL(_ context.Context, url string) (AuthServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, server := range s.byID {
		if server.URL == url {
			return server, nil
		}
	}
	return AuthServer{}, ErrAuthServerNotFound
}

// racingAuthServerStore reports a conflict on the first insert, as if another
// caller registered the URL in between.
type racingAuthServerStore struct {
	*memoryAuthServerStore
	raced bool
}

func (s *racingAuthServerStore) Insert(ctx context.Context, url string) (AuthServer, error) {
	if !s.raced {
		s.raced = true
		if _, err := s.memoryAuthServerStore.Insert(ctx, url); err != nil {
			return AuthServer{}, err
		}
		return AuthServer{}, fmt.Errorf("insert auth server %q: %w", url, ErrAuthServerConflict)
	}
	return s.memoryAuthServerStore.Insert(ctx, url)
}

type memoryGrantStore struct {
	mu          sync.Mutex
	next        int
	authServers *memoryAuthServerStore
	byID        map[string]Grant
	order       []string
}

func newMemoryGrantStore(authServers *memoryAuthServerStore) *memoryGrantStore {
	return &memoryGrantStore{
		authServers: authServers,
		byID:        map[string]Grant{},
	}
}

func (s *memoryGrantStore) Create(ctx context.Context, in CreateGrantInput) (Grant, error) {
	server, err := s.authServers.Get(ctx, in.AuthServerID)
	if err != nil {
		return Grant{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	now := time.Now().UTC()
	grant := Grant{
		ID:            fmt.Sprintf("grant_%d", s.next),
		AuthServerID:  server.ID,
		AuthServerURL: server.URL,
		AccessType:    in.AccessType,
		AccessActions: append([]AccessAction(nil), in.AccessActions...),
		AccessToken:   in.AccessToken,
		ManagementID:  in.ManagementID,
		ExpiresAt:     in.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.byID[grant.ID] = grant
	s.order = append(s.order, grant.ID)
	return grant, nil
}

func (s *memoryGrantStore) Get(_ context.Context, id string) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.byID[id]
	if !ok {
		return Grant{}, ErrGrantNotFound
	}
	return grant, nil
}

func (s *memoryGrantStore) FindUsable(_ context.Context, scope GrantScope) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		grant := s.byID[id]
		if grant.Covers(scope) {
			return grant, nil
		}
	}
	return Grant{}, ErrGrantNotFound
}

func (s *memoryGrantStore) UpdateToken(_ context.Context, id string, in UpdateGrantTokenInput) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.byID[id]
	if !ok {
		return Grant{}, ErrGrantNotFound
	}
	grant.AccessToken = in.AccessToken
	grant.ManagementID = in.ManagementID
	grant.ExpiresAt = in.ExpiresAt
	grant.UpdatedAt = time.Now().UTC()
	s.byID[id] = grant
	return grant, nil
}

func (s *memoryGrantStore) SoftDelete(_ context.Context, id string, deletedAt time.Time) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.byID[id]
	if !ok {
		return Grant{}, fmt.Errorf("soft delete grant %q: %w", id, ErrGrantNotFound)
	}
	at := deletedAt
	grant.DeletedAt = &at
	grant.UpdatedAt = deletedAt
	s.byID[id] = grant
	return grant, nil
}

func (s *memoryGrantStore) all() []Grant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Grant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

type stubAuthServerClient struct {
	mu           sync.Mutex
	grantResp    GrantResponse
	grantErr     error
	rotateResp   GrantResponse
	rotateErr    error
	grantCalls   []GrantRequest
	grantURLs    []string
	rotateCalls  []RotateTokenRequest
	beforeReturn func()
}

func (c *stubAuthServerClient) RequestGrant(_ context.Context, authServerURL string, req GrantRequest) (GrantResponse, error) {
	c.mu.Lock()
	c.grantCalls = append(c.grantCalls, req)
	c.grantURLs = append(c.grantURLs, authServerURL)
	hook := c.beforeReturn
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return c.grantResp, c.grantErr
}

func (c *stubAuthServerClient) RotateToken(_ context.Context, req RotateTokenRequest) (GrantResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateCalls = append(c.rotateCalls, req)
	return c.rotateResp, c.rotateErr
}

func (c *stubAuthServerClient) grantCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.grantCalls)
}

func issuedGrant(token string, manageURL string, expiresIn *int64) GrantResponse {
	return GrantResponse{
		AccessToken: &AccessTokenResponse{
			Value:     token,
			ManageURL: manageURL,
			ExpiresIn: expiresIn,
		},
	}
}

func pendingGrant() GrantResponse {
	return GrantResponse{
		Interact: &InteractResponse{Redirect: "https://auth.example/interact/abc"},
		Continue: &ContinueResponse{URI: "https://auth.example/continue/abc"},
	}
}

func int64Ptr(v int64) *int64 { return &v }

type paymentResult struct {
	payment IncomingPayment
	err     error
}

type stubResourceServerClient struct {
	mu            sync.Mutex
	wallet        WalletAddress
	walletErr     error
	public        PublicIncomingPayment
	publicErr     error
	results       []paymentResult
	walletCalls   int
	publicCalls   int
	createCalls   int
	getCalls      int
	completeCalls int
	tokens        []string
	resourceHosts []string
	bodies        []CreateIncomingPaymentBody
}

func (c *stubResourceServerClient) GetWalletAddress(context.Context, string) (WalletAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.walletCalls++
	return c.wallet, c.walletErr
}

func (c *stubResourceServerClient) GetPublicIncomingPayment(context.Context, string) (PublicIncomingPayment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publicCalls++
	return c.public, c.publicErr
}

func (c *stubResourceServerClient) CreateIncomingPayment(_ context.Context, resourceServer string, accessToken string, body CreateIncomingPaymentBody) (IncomingPayment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	c.resourceHosts = append(c.resourceHosts, resourceServer)
	c.bodies = append(c.bodies, body)
	return c.next(accessToken)
}

func (c *stubResourceServerClient) GetIncomingPayment(_ context.Context, _ string, accessToken string) (IncomingPayment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	return c.next(accessToken)
}

func (c *stubResourceServerClient) CompleteIncomingPayment(_ context.Context, _ string, accessToken string) (IncomingPayment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completeCalls++
	return c.next(accessToken)
}

func (c *stubResourceServerClient) next(accessToken string) (IncomingPayment, error) {
	c.tokens = append(c.tokens, accessToken)
	if len(c.results) == 0 {
		return IncomingPayment{}, fmt.Errorf("stub resource server: no result queued")
	}
	result := c.results[0]
	if len(c.results) > 1 {
		c.results = c.results[1:]
	}
	return result.payment, result.err
}

// countingGrantCache records calls made by the retry loop.
type countingGrantCache struct {
	mu           sync.Mutex
	grants       []Grant
	err          error
	deleteErr    error
	getCalls     int
	deletedIDs   []string
	lastScope    GrantScope
	scopesByCall []GrantScope
}

func (c *countingGrantCache) GetOrCreate(_ context.Context, scope GrantScope) (Grant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	c.lastScope = scope
	c.scopesByCall = append(c.scopesByCall, scope)
	if c.err != nil {
		return Grant{}, c.err
	}
	index := c.getCalls - 1
	if index >= len(c.grants) {
		index = len(c.grants) - 1
	}
	return c.grants[index], nil
}

func (c *countingGrantCache) Delete(_ context.Context, id string) (Grant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletedIDs = append(c.deletedIDs, id)
	if c.deleteErr != nil {
		return Grant{}, c.deleteErr
	}
	return Grant{ID: id}, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any)                 {}
func (stubLogger) Debug(string, ...any)                 {}
func (stubLogger) Info(string, ...any)                  {}
func (stubLogger) Warn(string, ...any)                  {}
func (stubLogger) Error(string, ...any)                 {}
func (stubLogger) Fatal(string, ...any)                 {}
func (l stubLogger) WithContext(context.Context) Logger { return l }

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type grantFixture struct {
	clock       *fixedClock
	authServers *memoryAuthServerStore
	grants      *memoryGrantStore
	client      *stubAuthServerClient
}

func newGrantFixture() *grantFixture {
	authServers := newMemoryAuthServerStore()
	return &grantFixture{
		clock:       newFixedClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		authServers: authServers,
		grants:      newMemoryGrantStore(authServers),
		client:      &stubAuthServerClient{},
	}
}

func (f *grantFixture) options(extra ...Option) []Option {
	opts := []Option{
		WithLogger(stubLogger{}),
		WithAuthServerStore(f.authServers),
		WithGrantStore(f.grants),
		WithAuthServerClient(f.client),
		WithClock(f.clock.Now),
	}
	return append(opts, extra...)
}
