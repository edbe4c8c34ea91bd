package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const testAuthServerURL = "https://auth.example"

func incomingScope(actions ...AccessAction) GrantScope {
	return GrantScope{
		AuthServerURL: testAuthServerURL,
		AccessType:    AccessTypeIncomingPayment,
		AccessActions: actions,
	}
}

func TestGrantService_GetOrCreate_PersistsExpandedGrant(t *testing.T) {
	ctx := context.Background()
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", testAuthServerURL+"/token/mgmt_1", int64Ptr(600))

	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	grant, err := svc.GetOrCreate(ctx, incomingScope(AccessActionCreate, AccessActionReadAll, AccessActionListAll))
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}

	got := accessActionStrings(grant.AccessActions)
	sort.Strings(got)
	want := []string{"create", "list", "list-all", "read", "read-all"}
	if len(got) != len(want) {
		t.Fatalf("expected expanded actions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected expanded actions %v, got %v", want, got)
		}
	}
	if grant.AccessToken != "tok_1" {
		t.Fatalf("expected access token tok_1, got %q", grant.AccessToken)
	}
	if grant.ManagementID != "mgmt_1" {
		t.Fatalf("expected management id mgmt_1, got %q", grant.ManagementID)
	}
	if grant.ExpiresAt == nil || !grant.ExpiresAt.Equal(fx.clock.Now().Add(600*time.Second)) {
		t.Fatalf("expected expiry now+600s, got %v", grant.ExpiresAt)
	}
	if grant.AuthServerURL != testAuthServerURL || grant.AuthServerID == "" {
		t.Fatalf("expected auth server reference, got id=%q url=%q", grant.AuthServerID, grant.AuthServerURL)
	}

	if len(fx.client.grantCalls) != 1 {
		t.Fatalf("expected one grant request, got %d", len(fx.client.grantCalls))
	}
	request := fx.client.grantCalls[0]
	if len(request.InteractStarts) != 1 || request.InteractStarts[0] != "redirect" {
		t.Fatalf("expected interact.start redirect, got %v", request.InteractStarts)
	}
	if len(request.Access) != 1 || request.Access[0].Type != AccessTypeIncomingPayment {
		t.Fatalf("expected incoming-payment access item, got %#v", request.Access)
	}
	if fx.client.grantURLs[0] != testAuthServerURL {
		t.Fatalf("expected grant request against %q, got %q", testAuthServerURL, fx.client.grantURLs[0])
	}
}

func TestGrantService_GetOrCreate_WithoutExpiry(t *testing.T) {
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", testAuthServerURL+"/token/mgmt_1", nil)
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	grant, err := svc.GetOrCreate(context.Background(), incomingScope(AccessActionReadAll))
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if grant.ExpiresAt != nil {
		t.Fatalf("expected no expiry, got %v", grant.ExpiresAt)
	}
	fx.clock.Advance(365 * 24 * time.Hour)
	if grant.Expired(fx.clock.Now()) {
		t.Fatalf("expected grant without expiry to never expire")
	}
}

func TestGrantService_GetOrCreate_ReturnsCachedGrantWithoutNetworkCall(t *testing.T) {
	ctx := context.Background()
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", testAuthServerURL+"/token/mgmt_1", int64Ptr(600))
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	first, err := svc.GetOrCreate(ctx, incomingScope(AccessActionCreate, AccessActionReadAll))
	if err != nil {
		t.Fatalf("first get or create: %v", err)
	}
	second, err := svc.GetOrCreate(ctx, incomingScope(AccessActionRead))
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected cached grant %q, got %q", first.ID, second.ID)
	}
	if len(fx.client.grantCalls) != 1 || len(fx.client.rotateCalls) != 0 {
		t.Fatalf("expected no further network calls, got grants=%d rotations=%d", len(fx.client.grantCalls), len(fx.client.rotateCalls))
	}
}

func TestGrantService_GetOrCreate_SubsetMatching(t *testing.T) {
	ctx := context.Background()
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", testAuthServerURL+"/token/mgmt_1", nil)
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	stored, err := svc.GetOrCreate(ctx, incomingScope(AccessActionReadAll, AccessActionCreate, AccessActionComplete))
	if err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	matched, err := svc.GetOrCreate(ctx, incomingScope(AccessActionReadAll, AccessActionCreate))
	if err != nil {
		t.Fatalf("subset request: %v", err)
	}
	if matched.ID != stored.ID {
		t.Fatalf("expected subset request to reuse %q, got %q", stored.ID, matched.ID)
	}

	fx.client.grantResp = issuedGrant("tok_2", testAuthServerURL+"/token/mgmt_2", nil)
	wider, err := svc.GetOrCreate(ctx, incomingScope(AccessActionReadAll, AccessActionCreate, AccessActionComplete, AccessActionList))
	if err != nil {
		t.Fatalf("superset request: %v", err)
	}
	if wider.ID == stored.ID {
		t.Fatalf("expected superset request to mint a new grant")
	}

	other, err := svc.GetOrCreate(ctx, GrantScope{
		AuthServerURL: "https://other-auth.example",
		AccessType:    AccessTypeIncomingPayment,
		AccessActions: []AccessAction{AccessActionReadAll},
	})
	if err != nil {
		t.Fatalf("other auth server request: %v", err)
	}
	if other.ID == stored.ID || other.ID == wider.ID {
		t.Fatalf("expected a distinct grant for another auth server")
	}
	if len(fx.client.grantCalls) != 3 {
		t.Fatalf("expected three grant requests, got %d", len(fx.client.grantCalls))
	}
}

func TestGrantService_GetOrCreate_IgnoresDeletedGrants(t *testing.T) {
	ctx := context.Background()
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", testAuthServerURL+"/token/mgmt_1", nil)
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	first, err := svc.GetOrCreate(ctx, incomingScope(AccessActionReadAll))
	if err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	deleted, err := svc.Delete(ctx, first.ID)
	if err != nil {
		t.Fatalf("delete grant: %v", err)
	}
	if deleted.DeletedAt == nil || !deleted.DeletedAt.Equal(fx.clock.Now()) {
		t.Fatalf("expected deleted_at to be set to now, got %v", deleted.DeletedAt)
	}

	if _, found, err := svc.Get(ctx, incomingScope(AccessActionReadAll)); err != nil || found {
		t.Fatalf("expected deleted grant to be invisible, found=%v err=%v", found, err)
	}

	fx.client.grantResp = issuedGrant("tok_2", testAuthServerURL+"/token/mgmt_2", nil)
	replacement, err := svc.GetOrCreate(ctx, incomingScope(AccessActionReadAll))
	if err != nil {
		t.Fatalf("replacement grant: %v", err)
	}
	if replacement.ID == first.ID {
		t.Fatalf("expected deleted grant not to be matched")
	}
}

func TestGrantService_GetOrCreate_RotatesExpiredGrant(t *testing.T) {
	ctx := context.Background()
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", testAuthServerURL+"/token/mgmt_1", int64Ptr(60))
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	original, err := svc.GetOrCreate(ctx, incomingScope(AccessActionReadAll))
	if err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	fx.clock.Advance(60 * time.Second)
	fx.client.rotateResp = issuedGrant("tok_rotated", testAuthServerURL+"/token/mgmt_rotated", int64Ptr(300))

	rotated, err := svc.GetOrCreate(ctx, incomingScope(AccessActionReadAll))
	if err != nil {
		t.Fatalf("rotate grant: %v", err)
	}
	if rotated.ID != original.ID || rotated.AuthServerID != original.AuthServerID {
		t.Fatalf("expected rotation to keep identity, got id=%q auth_server=%q", rotated.ID, rotated.AuthServerID)
	}
	if rotated.AccessToken != "tok_rotated" || rotated.ManagementID != "mgmt_rotated" {
		t.Fatalf("expected rotated token and management id, got %q %q", rotated.AccessToken, rotated.ManagementID)
	}
	if rotated.ExpiresAt == nil || !rotated.ExpiresAt.Equal(fx.clock.Now().Add(300*time.Second)) {
		t.Fatalf("expected rotated expiry now+300s, got %v", rotated.ExpiresAt)
	}

	if len(fx.client.rotateCalls) != 1 {
		t.Fatalf("expected one rotation call, got %d", len(fx.client.rotateCalls))
	}
	call := fx.client.rotateCalls[0]
	if call.ManagementURL != testAuthServerURL+"/token/mgmt_1" {
		t.Fatalf("unexpected management url %q", call.ManagementURL)
	}
	if call.AccessToken != "tok_1" {
		t.Fatalf("expected rotation with previous token, got %q", call.AccessToken)
	}
	if len(fx.client.grantCalls) != 1 {
		t.Fatalf("expected no new grant request, got %d", len(fx.client.grantCalls))
	}
}

func TestGrantService_GetOrCreate_ReplacesGrantWhenRotationFails(t *testing.T) {
	ctx := context.Background()
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", testAuthServerURL+"/token/mgmt_1", int64Ptr(60))
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	original, err := svc.GetOrCreate(ctx, incomingScope(AccessActionReadAll))
	if err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	fx.clock.Advance(2 * time.Minute)
	fx.client.rotateErr = &ClientError{Status: 401, Description: "invalid token"}
	fx.client.grantResp = issuedGrant("tok_2", testAuthServerURL+"/token/mgmt_2", int64Ptr(600))

	replacement, err := svc.GetOrCreate(ctx, incomingScope(AccessActionReadAll))
	if err != nil {
		t.Fatalf("replacement grant: %v", err)
	}
	if replacement.ID == original.ID {
		t.Fatalf("expected a new grant row after rotation failure")
	}
	if replacement.AccessToken != "tok_2" {
		t.Fatalf("expected fresh token, got %q", replacement.AccessToken)
	}

	old, err := fx.grants.Get(ctx, original.ID)
	if err != nil {
		t.Fatalf("load original grant: %v", err)
	}
	if old.DeletedAt == nil {
		t.Fatalf("expected expired grant to be soft deleted")
	}
}

func TestGrantService_GetOrCreate_PendingGrantPersistsNothing(t *testing.T) {
	fx := newGrantFixture()
	fx.client.grantResp = pendingGrant()
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	_, err = svc.GetOrCreate(context.Background(), incomingScope(AccessActionReadAll))
	if !errors.Is(err, ErrGrantRequiresInteraction) {
		t.Fatalf("expected ErrGrantRequiresInteraction, got %v", err)
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != GrantsErrorGrantRequiresInteraction {
		t.Fatalf("expected GRANT_REQUIRES_INTERACTION envelope, got %#v", err)
	}
	if grants := fx.grants.all(); len(grants) != 0 {
		t.Fatalf("expected no persisted grants, got %d", len(grants))
	}
}

func TestGrantService_GetOrCreate_MapsRequestFailure(t *testing.T) {
	fx := newGrantFixture()
	fx.client.grantErr = &ClientError{Status: 400, Description: "invalid_client"}
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	_, err = svc.GetOrCreate(context.Background(), incomingScope(AccessActionReadAll))
	if !errors.Is(err, ErrInvalidGrantRequest) {
		t.Fatalf("expected ErrInvalidGrantRequest, got %v", err)
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		t.Fatalf("expected authorization server error not to leak, got %#v", clientErr)
	}
}

func TestGrantService_GetOrCreate_RejectsEmptyManagementID(t *testing.T) {
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", "", nil)
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	_, err = svc.GetOrCreate(context.Background(), incomingScope(AccessActionReadAll))
	if !errors.Is(err, ErrInvalidGrantRequest) {
		t.Fatalf("expected ErrInvalidGrantRequest, got %v", err)
	}
	if grants := fx.grants.all(); len(grants) != 0 {
		t.Fatalf("expected no persisted grants, got %d", len(grants))
	}
}

func TestGrantService_GetOrCreate_RejectsInvalidScope(t *testing.T) {
	fx := newGrantFixture()
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	_, err = svc.GetOrCreate(context.Background(), GrantScope{AccessType: AccessTypeIncomingPayment})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != GrantsErrorBadInput {
		t.Fatalf("expected bad input envelope, got %v", err)
	}
	if fx.client.grantCallCount() != 0 {
		t.Fatalf("expected no grant request for invalid scope")
	}
}

func TestGrantService_Delete_UnknownGrant(t *testing.T) {
	fx := newGrantFixture()
	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	_, err = svc.Delete(context.Background(), "grant_missing")
	if !errors.Is(err, ErrGrantNotFound) {
		t.Fatalf("expected ErrGrantNotFound, got %v", err)
	}
}

func TestGrantService_ConcurrentCreationIsToleratedByDefault(t *testing.T) {
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", testAuthServerURL+"/token/mgmt_1", nil)

	var arrived sync.WaitGroup
	arrived.Add(2)
	fx.client.beforeReturn = func() {
		arrived.Done()
		arrived.Wait()
	}

	svc, err := NewGrantService(DefaultConfig(), fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetOrCreate(context.Background(), incomingScope(AccessActionReadAll))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent get or create: %v", err)
		}
	}

	if grants := fx.grants.all(); len(grants) != 2 {
		t.Fatalf("expected both racing callers to mint a grant, got %d", len(grants))
	}
}

func TestGrantService_SingleFlightCollapsesConcurrentCreation(t *testing.T) {
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", testAuthServerURL+"/token/mgmt_1", nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fx.client.beforeReturn = func() {
		once.Do(func() { close(started) })
		<-release
	}

	cfg := DefaultConfig()
	cfg.Grants.SingleFlight = true
	svc, err := NewGrantService(cfg, fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	results := make(chan Grant, 2)
	errs := make(chan error, 2)
	run := func() {
		grant, err := svc.GetOrCreate(context.Background(), incomingScope(AccessActionReadAll))
		results <- grant
		errs <- err
	}

	go run()
	<-started
	go run()
	time.Sleep(20 * time.Millisecond)
	close(release)

	first, second := <-results, <-results
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("single flight get or create: %v", err)
		}
	}
	if first.ID != second.ID {
		t.Fatalf("expected both callers to share grant, got %q and %q", first.ID, second.ID)
	}
	if fx.client.grantCallCount() != 1 {
		t.Fatalf("expected one grant request, got %d", fx.client.grantCallCount())
	}
}

func TestGrantService_SingleFlightCallerCancellationDoesNotFailOthers(t *testing.T) {
	fx := newGrantFixture()
	fx.client.grantResp = issuedGrant("tok_1", testAuthServerURL+"/token/mgmt_1", nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fx.client.beforeReturn = func() {
		once.Do(func() { close(started) })
		<-release
	}

	cfg := DefaultConfig()
	cfg.Grants.SingleFlight = true
	svc, err := NewGrantService(cfg, fx.options()...)
	if err != nil {
		t.Fatalf("new grant service: %v", err)
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.GetOrCreate(leaderCtx, incomingScope(AccessActionReadAll))
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		grant Grant
		err   error
	}
	follower := make(chan outcome, 1)
	go func() {
		grant, err := svc.GetOrCreate(context.Background(), incomingScope(AccessActionReadAll))
		follower <- outcome{grant: grant, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		if err == nil {
			t.Fatalf("expected cancelled caller to fail")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected cancelled caller to return before the flight finished")
	}

	close(release)
	got := <-follower
	if got.err != nil {
		t.Fatalf("expected waiting caller to succeed, got %v", got.err)
	}
	if got.grant.AccessToken != "tok_1" {
		t.Fatalf("unexpected grant %#v", got.grant)
	}
	if fx.client.grantCallCount() != 1 {
		t.Fatalf("expected one grant request, got %d", fx.client.grantCallCount())
	}
	if grants := fx.grants.all(); len(grants) != 1 {
		t.Fatalf("expected the flight to persist its grant, got %d", len(grants))
	}
}
