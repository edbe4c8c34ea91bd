package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// TokenCipher protects access tokens at rest. Stores that accept one seal
// tokens before writing and open them after reading.
type TokenCipher interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type AuthServerStore interface {
	// Insert creates a record for url. A record that already exists for url
	// is reported as ErrAuthServerConflict.
	Insert(ctx context.Context, url string) (AuthServer, error)
	Get(ctx context.Context, id string) (AuthServer, error)
	GetByURL(ctx context.Context, url string) (AuthServer, error)
}

type CreateGrantInput struct {
	AuthServerID  string
	AccessType    AccessType
	AccessActions []AccessAction
	AccessToken   string
	ManagementID  string
	ExpiresAt     *time.Time
}

type UpdateGrantTokenInput struct {
	AccessToken  string
	ManagementID string
	ExpiresAt    *time.Time
}

type GrantStore interface {
	Create(ctx context.Context, in CreateGrantInput) (Grant, error)
	Get(ctx context.Context, id string) (Grant, error)
	// FindUsable returns any non-deleted grant covering scope, or
	// ErrGrantNotFound.
	FindUsable(ctx context.Context, scope GrantScope) (Grant, error)
	UpdateToken(ctx context.Context, id string, in UpdateGrantTokenInput) (Grant, error)
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) (Grant, error)
}

// GrantCache is the surface remote resource calls depend on.
type GrantCache interface {
	GetOrCreate(ctx context.Context, scope GrantScope) (Grant, error)
	Delete(ctx context.Context, id string) (Grant, error)
}

type AccessItem struct {
	Type       AccessType     `json:"type"`
	Actions    []AccessAction `json:"actions"`
	Identifier string         `json:"identifier,omitempty"`
}

type GrantRequest struct {
	Access         []AccessItem
	InteractStarts []string
}

type AccessTokenResponse struct {
	Value     string       `json:"value"`
	ManageURL string       `json:"manage"`
	ExpiresIn *int64       `json:"expires_in,omitempty"`
	Access    []AccessItem `json:"access,omitempty"`
}

type InteractResponse struct {
	Redirect string `json:"redirect,omitempty"`
	Finish   string `json:"finish,omitempty"`
}

type ContinueResponse struct {
	URI         string `json:"uri,omitempty"`
	Wait        int64  `json:"wait,omitempty"`
	AccessToken struct {
		Value string `json:"value,omitempty"`
	} `json:"access_token"`
}

type GrantResponse struct {
	AccessToken *AccessTokenResponse `json:"access_token,omitempty"`
	Interact    *InteractResponse    `json:"interact,omitempty"`
	Continue    *ContinueResponse    `json:"continue,omitempty"`
}

// Pending reports whether the authorization server withheld the access token
// until a user interacts with it.
func (r GrantResponse) Pending() bool {
	return r.AccessToken == nil || strings.TrimSpace(r.AccessToken.Value) == ""
}

type RotateTokenRequest struct {
	ManagementURL string
	AccessToken   string
}

type AuthorizationServerClient interface {
	RequestGrant(ctx context.Context, authServerURL string, req GrantRequest) (GrantResponse, error)
	RotateToken(ctx context.Context, req RotateTokenRequest) (GrantResponse, error)
}

type WalletAddress struct {
	ID             string `json:"id"`
	PublicName     string `json:"publicName,omitempty"`
	AssetCode      string `json:"assetCode,omitempty"`
	AssetScale     int    `json:"assetScale,omitempty"`
	AuthServer     string `json:"authServer"`
	ResourceServer string `json:"resourceServer"`
}

type Amount struct {
	Value      string `json:"value"`
	AssetCode  string `json:"assetCode"`
	AssetScale int    `json:"assetScale"`
}

type PublicIncomingPayment struct {
	AuthServer     string  `json:"authServer"`
	ReceivedAmount *Amount `json:"receivedAmount,omitempty"`
}

type CreateIncomingPaymentBody struct {
	WalletAddress  string         `json:"walletAddress"`
	IncomingAmount *Amount        `json:"incomingAmount,omitempty"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// IncomingPayment is a typed view over a resource server response. Raw keeps
// the body as received so callers can pass it through unchanged.
type IncomingPayment struct {
	ID             string          `json:"id"`
	WalletAddress  string          `json:"walletAddress"`
	Completed      bool            `json:"completed"`
	IncomingAmount *Amount         `json:"incomingAmount,omitempty"`
	ReceivedAmount *Amount         `json:"receivedAmount,omitempty"`
	ExpiresAt      *time.Time      `json:"expiresAt,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	AuthServer     string          `json:"authServer,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

type ResourceServerClient interface {
	GetWalletAddress(ctx context.Context, walletAddressURL string) (WalletAddress, error)
	GetPublicIncomingPayment(ctx context.Context, incomingPaymentURL string) (PublicIncomingPayment, error)
	CreateIncomingPayment(ctx context.Context, resourceServer string, accessToken string, body CreateIncomingPaymentBody) (IncomingPayment, error)
	GetIncomingPayment(ctx context.Context, incomingPaymentURL string, accessToken string) (IncomingPayment, error)
	CompleteIncomingPayment(ctx context.Context, incomingPaymentURL string, accessToken string) (IncomingPayment, error)
}

// ClientError is returned by Open Payments clients for non-2xx responses.
type ClientError struct {
	Status      int
	Description string
	URL         string
	Method      string
}

func (e *ClientError) Error() string {
	if e == nil {
		return ""
	}
	description := strings.TrimSpace(e.Description)
	if description == "" {
		description = "request failed"
	}
	return fmt.Sprintf("open payments: %s %s: %d %s", e.Method, e.URL, e.Status, description)
}

func (e *ClientError) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.Status
}
