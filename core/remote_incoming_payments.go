package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// attempt numbers a run of withGrant. The budget is remoteAttempts: one call
// with the cached grant and at most one retry after an auth rejection.
type attempt int

const (
	firstAttempt attempt = iota
	retryAttempt
)

var remoteAttempts = [...]attempt{firstAttempt, retryAttempt}

func (a attempt) String() string {
	if a == retryAttempt {
		return "retry"
	}
	return "first"
}

type failureKind int

const (
	failureOther failureKind = iota
	failureAuth
	failureNotFound
)

// classifyFailure maps a resource server error onto the closed set of
// outcomes the retry loop switches on.
func classifyFailure(err error) failureKind {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		return failureOther
	}
	switch clientErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return failureAuth
	case http.StatusNotFound:
		return failureNotFound
	default:
		return failureOther
	}
}

var (
	createIncomingPaymentActions   = []AccessAction{AccessActionCreate, AccessActionReadAll}
	getIncomingPaymentActions      = []AccessAction{AccessActionReadAll}
	completeIncomingPaymentActions = []AccessAction{AccessActionReadAll, AccessActionComplete}
)

type CreateRemoteIncomingPaymentArgs struct {
	WalletAddressURL string
	IncomingAmount   *Amount
	ExpiresAt        *time.Time
	Metadata         map[string]any
}

func (a CreateRemoteIncomingPaymentArgs) Validate() error {
	if strings.TrimSpace(a.WalletAddressURL) == "" {
		return fmt.Errorf("core: wallet address url is required")
	}
	if a.IncomingAmount != nil {
		if strings.TrimSpace(a.IncomingAmount.Value) == "" || strings.TrimSpace(a.IncomingAmount.AssetCode) == "" {
			return fmt.Errorf("core: incoming amount value and asset code are required")
		}
	}
	return nil
}

// RemoteIncomingPaymentService calls remote resource servers with cached
// grants, retrying once when the token is rejected.
type RemoteIncomingPaymentService struct {
	runtime serviceRuntime
	grants  GrantCache
	client  ResourceServerClient
}

func NewRemoteIncomingPaymentService(cfg Config, opts ...Option) (*RemoteIncomingPaymentService, error) {
	resolved, err := resolveBuilder(cfg, opts...)
	if err != nil {
		return nil, err
	}
	cache := resolved.builder.grantCache
	if cache == nil {
		authServers, buildErr := newAuthServerService(resolved)
		if buildErr != nil {
			return nil, buildErr
		}
		grants, buildErr := newGrantService(resolved, authServers)
		if buildErr != nil {
			return nil, buildErr
		}
		cache = grants
	}
	return newRemoteIncomingPaymentService(resolved, cache)
}

func newRemoteIncomingPaymentService(resolved resolvedBuilder, cache GrantCache) (*RemoteIncomingPaymentService, error) {
	mapper := resolved.runtime.errorMapper
	if err := requireDependency("grant cache", cache != nil); err != nil {
		return nil, mapError(mapper, err)
	}
	if err := requireDependency("resource server client", resolved.builder.resourceServerClient != nil); err != nil {
		return nil, mapError(mapper, err)
	}
	return &RemoteIncomingPaymentService{
		runtime: resolved.runtime.named("grants.remote_incoming_payments"),
		grants:  cache,
		client:  resolved.builder.resourceServerClient,
	}, nil
}

func (s *RemoteIncomingPaymentService) Create(ctx context.Context, args CreateRemoteIncomingPaymentArgs) (payment IncomingPayment, err error) {
	startedAt := s.runtime.now()
	fields := map[string]any{"url": args.WalletAddressURL}
	defer func() {
		s.runtime.observeOperation(ctx, startedAt, "remote_incoming_payment_create", err, fields)
	}()

	if err := args.Validate(); err != nil {
		return IncomingPayment{}, mapError(s.runtime.errorMapper, err)
	}

	wallet, err := s.client.GetWalletAddress(ctx, args.WalletAddressURL)
	if err == nil && (strings.TrimSpace(wallet.AuthServer) == "" || strings.TrimSpace(wallet.ResourceServer) == "") {
		err = fmt.Errorf("core: wallet address is missing server endpoints")
	}
	if err != nil {
		logFields := withUpstreamFields(fields, err)
		s.runtime.logWarn(ctx, "wallet address lookup failed", logFields)
		return IncomingPayment{}, classify(ErrUnknownWalletAddress, "wallet address lookup failed", logFields)
	}

	walletAddressID := wallet.ID
	if strings.TrimSpace(walletAddressID) == "" {
		walletAddressID = args.WalletAddressURL
	}
	body := CreateIncomingPaymentBody{
		WalletAddress:  walletAddressID,
		IncomingAmount: args.IncomingAmount,
		ExpiresAt:      args.ExpiresAt,
		Metadata:       args.Metadata,
	}
	scope := GrantScope{
		AuthServerURL: wallet.AuthServer,
		AccessType:    AccessTypeIncomingPayment,
		AccessActions: createIncomingPaymentActions,
	}
	return s.withGrant(ctx, scope, fields, func(ctx context.Context, accessToken string) (IncomingPayment, error) {
		return s.client.CreateIncomingPayment(ctx, wallet.ResourceServer, accessToken, body)
	})
}

func (s *RemoteIncomingPaymentService) Get(ctx context.Context, url string) (payment IncomingPayment, err error) {
	startedAt := s.runtime.now()
	fields := map[string]any{"url": url}
	defer func() {
		s.runtime.observeOperation(ctx, startedAt, "remote_incoming_payment_get", err, fields)
	}()

	return s.discoverAndCall(ctx, url, getIncomingPaymentActions, fields, func(ctx context.Context, accessToken string) (IncomingPayment, error) {
		return s.client.GetIncomingPayment(ctx, url, accessToken)
	})
}

func (s *RemoteIncomingPaymentService) Complete(ctx context.Context, url string) (payment IncomingPayment, err error) {
	startedAt := s.runtime.now()
	fields := map[string]any{"url": url}
	defer func() {
		s.runtime.observeOperation(ctx, startedAt, "remote_incoming_payment_complete", err, fields)
	}()

	return s.discoverAndCall(ctx, url, completeIncomingPaymentActions, fields, func(ctx context.Context, accessToken string) (IncomingPayment, error) {
		return s.client.CompleteIncomingPayment(ctx, url, accessToken)
	})
}

func (s *RemoteIncomingPaymentService) discoverAndCall(
	ctx context.Context,
	url string,
	actions []AccessAction,
	fields map[string]any,
	call func(ctx context.Context, accessToken string) (IncomingPayment, error),
) (IncomingPayment, error) {
	if strings.TrimSpace(url) == "" {
		return IncomingPayment{}, mapError(s.runtime.errorMapper, fmt.Errorf("core: incoming payment url is required"))
	}

	public, err := s.client.GetPublicIncomingPayment(ctx, url)
	if err == nil && strings.TrimSpace(public.AuthServer) == "" {
		err = fmt.Errorf("core: incoming payment does not name an auth server")
	}
	if err != nil {
		logFields := withUpstreamFields(fields, err)
		s.runtime.logWarn(ctx, "incoming payment discovery failed", logFields)
		return IncomingPayment{}, classify(ErrRemoteInvalidRequest, "incoming payment discovery failed", logFields)
	}

	scope := GrantScope{
		AuthServerURL: public.AuthServer,
		AccessType:    AccessTypeIncomingPayment,
		AccessActions: actions,
	}
	return s.withGrant(ctx, scope, fields, call)
}

// withGrant runs call with a grant for scope. A 401 or 403 on the first
// attempt deletes the grant and runs the whole sequence once more.
func (s *RemoteIncomingPaymentService) withGrant(
	ctx context.Context,
	scope GrantScope,
	fields map[string]any,
	call func(ctx context.Context, accessToken string) (IncomingPayment, error),
) (IncomingPayment, error) {
	for k, v := range scopeFields(scope) {
		fields[k] = v
	}

	for _, current := range remoteAttempts {
		fields["attempt"] = current.String()

		grant, err := s.grants.GetOrCreate(ctx, scope)
		if err != nil {
			if errors.Is(err, ErrGrantRequiresInteraction) || errors.Is(err, ErrInvalidGrantRequest) {
				logFields := withUpstreamFields(fields, err)
				s.runtime.logWarn(ctx, "grant unavailable for remote call", logFields)
				return IncomingPayment{}, classify(ErrRemoteInvalidGrant, "grant unavailable", logFields)
			}
			return IncomingPayment{}, err
		}
		fields["grant_id"] = grant.ID

		payment, err := call(ctx, grant.AccessToken)
		if err == nil {
			return payment, nil
		}

		logFields := withUpstreamFields(fields, err)
		switch kind := classifyFailure(err); {
		case kind == failureAuth && current == firstAttempt:
			s.runtime.logWarn(ctx, "remote call rejected grant, retrying with a new grant", logFields)
			if _, deleteErr := s.grants.Delete(ctx, grant.ID); deleteErr != nil {
				return IncomingPayment{}, deleteErr
			}
			s.runtime.recordCounter(ctx, metricRetryTotal, 1, map[string]string{
				"access_type": string(scope.AccessType),
			})
			continue
		case kind == failureNotFound:
			s.runtime.logWarn(ctx, "remote resource not found", logFields)
			return IncomingPayment{}, classify(ErrRemoteNotFound, "remote resource not found", logFields)
		default:
			s.runtime.logWarn(ctx, "remote call failed", logFields)
			return IncomingPayment{}, classify(ErrRemoteInvalidRequest, "remote call failed", logFields)
		}
	}
	// unreachable: only firstAttempt continues
	return IncomingPayment{}, classify(ErrRemoteInvalidRequest, "remote call failed", cloneFields(fields))
}
