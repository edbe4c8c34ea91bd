package openpayments

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goliatone/go-grants/core"
)

var _ core.ResourceServerClient = (*ResourceServerClient)(nil)

type ResourceServerClient struct {
	requester *requester
}

func NewResourceServerClient(cfg Config) *ResourceServerClient {
	return &ResourceServerClient{requester: newRequester(cfg)}
}

func (c *ResourceServerClient) GetWalletAddress(ctx context.Context, walletAddressURL string) (core.WalletAddress, error) {
	var out core.WalletAddress
	_, err := c.requester.do(ctx, call{
		method: http.MethodGet,
		url:    strings.TrimSpace(walletAddressURL),
	}, &out)
	return out, err
}

func (c *ResourceServerClient) GetPublicIncomingPayment(ctx context.Context, incomingPaymentURL string) (core.PublicIncomingPayment, error) {
	var out core.PublicIncomingPayment
	_, err := c.requester.do(ctx, call{
		method: http.MethodGet,
		url:    strings.TrimSpace(incomingPaymentURL),
	}, &out)
	return out, err
}

func (c *ResourceServerClient) CreateIncomingPayment(
	ctx context.Context,
	resourceServer string,
	accessToken string,
	body core.CreateIncomingPaymentBody,
) (core.IncomingPayment, error) {
	return c.incomingPayment(ctx, call{
		method:      http.MethodPost,
		url:         joinURL(resourceServer, "incoming-payments"),
		accessToken: accessToken,
		body:        body,
	})
}

func (c *ResourceServerClient) GetIncomingPayment(ctx context.Context, incomingPaymentURL string, accessToken string) (core.IncomingPayment, error) {
	return c.incomingPayment(ctx, call{
		method:      http.MethodGet,
		url:         strings.TrimSpace(incomingPaymentURL),
		accessToken: accessToken,
	})
}

func (c *ResourceServerClient) CompleteIncomingPayment(ctx context.Context, incomingPaymentURL string, accessToken string) (core.IncomingPayment, error) {
	return c.incomingPayment(ctx, call{
		method:      http.MethodPost,
		url:         joinURL(incomingPaymentURL, "complete"),
		accessToken: accessToken,
	})
}

func (c *ResourceServerClient) incomingPayment(ctx context.Context, req call) (core.IncomingPayment, error) {
	var out core.IncomingPayment
	raw, err := c.requester.do(ctx, req, &out)
	if err != nil {
		return core.IncomingPayment{}, err
	}
	if len(raw) > 0 {
		out.Raw = json.RawMessage(append([]byte(nil), raw...))
	}
	return out, nil
}
