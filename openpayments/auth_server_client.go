package openpayments

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-grants/core"
)

var _ core.AuthorizationServerClient = (*AuthServerClient)(nil)

// AuthServerClient talks GNAP to Open Payments authorization servers.
type AuthServerClient struct {
	requester *requester
}

func NewAuthServerClient(cfg Config) *AuthServerClient {
	return &AuthServerClient{requester: newRequester(cfg)}
}

type grantRequestBody struct {
	AccessToken grantRequestAccessToken `json:"access_token"`
	Client      string                  `json:"client"`
	Interact    *grantRequestInteract   `json:"interact,omitempty"`
}

type grantRequestAccessToken struct {
	Access []core.AccessItem `json:"access"`
}

type grantRequestInteract struct {
	Start []string `json:"start"`
}

func (c *AuthServerClient) RequestGrant(ctx context.Context, authServerURL string, req core.GrantRequest) (core.GrantResponse, error) {
	body := grantRequestBody{
		AccessToken: grantRequestAccessToken{Access: req.Access},
		Client:      c.requester.config.ClientWalletAddress,
	}
	if len(req.InteractStarts) > 0 {
		body.Interact = &grantRequestInteract{Start: append([]string(nil), req.InteractStarts...)}
	}

	var out core.GrantResponse
	_, err := c.requester.do(ctx, call{
		method: http.MethodPost,
		url:    strings.TrimSpace(authServerURL),
		body:   body,
	}, &out)
	return out, err
}

func (c *AuthServerClient) RotateToken(ctx context.Context, req core.RotateTokenRequest) (core.GrantResponse, error) {
	var out core.GrantResponse
	_, err := c.requester.do(ctx, call{
		method:      http.MethodPost,
		url:         strings.TrimSpace(req.ManagementURL),
		accessToken: req.AccessToken,
	}, &out)
	return out, err
}
