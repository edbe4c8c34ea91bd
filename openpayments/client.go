package openpayments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-grants/core"
	"github.com/goliatone/go-grants/transport"
)

const (
	defaultRequestTimeout       = 15 * time.Second
	defaultMaxResponseBodyBytes = int64(1 << 20)
	defaultUserAgent            = "go-grants"
	contentTypeJSON             = "application/json"
	gnapAuthorizationScheme     = "GNAP"
)

// Config holds the settings shared by the authorization and resource server
// clients.
type Config struct {
	// ClientWalletAddress identifies this client in grant requests.
	ClientWalletAddress  string
	RequestTimeout       time.Duration
	MaxResponseBodyBytes int64
	HTTPClient           transport.HTTPDoer
	UserAgent            string
}

func (c Config) normalized() Config {
	out := c
	out.ClientWalletAddress = strings.TrimSpace(out.ClientWalletAddress)
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = defaultRequestTimeout
	}
	if out.MaxResponseBodyBytes <= 0 {
		out.MaxResponseBodyBytes = defaultMaxResponseBodyBytes
	}
	out.UserAgent = strings.TrimSpace(out.UserAgent)
	if out.UserAgent == "" {
		out.UserAgent = defaultUserAgent
	}
	return out
}

type requester struct {
	config  Config
	adapter *transport.RESTAdapter
}

func newRequester(cfg Config) *requester {
	cfg = cfg.normalized()
	adapter := transport.NewRESTAdapter(cfg.HTTPClient)
	adapter.MaxResponseBodyBytes = cfg.MaxResponseBodyBytes
	adapter.DefaultHeaders = map[string]string{
		"Accept":     contentTypeJSON,
		"User-Agent": cfg.UserAgent,
	}
	return &requester{config: cfg, adapter: adapter}
}

type call struct {
	method      string
	url         string
	accessToken string
	body        any
}

// do performs the call and decodes a 2xx JSON body into out. It returns the
// raw body so callers can keep it.
func (r *requester) do(ctx context.Context, c call, out any) ([]byte, error) {
	headers := map[string]string{}
	var payload []byte
	if c.body != nil {
		encoded, err := json.Marshal(c.body)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "openpayments: encode request body").
				WithCode(http.StatusInternalServerError)
		}
		payload = encoded
		headers["Content-Type"] = contentTypeJSON
	}
	if token := strings.TrimSpace(c.accessToken); token != "" {
		headers["Authorization"] = gnapAuthorizationScheme + " " + token
	}

	res, err := r.adapter.Do(ctx, transport.Request{
		Method:  c.method,
		URL:     c.url,
		Headers: headers,
		Body:    payload,
		Timeout: r.config.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, &core.ClientError{
			Status:      res.StatusCode,
			Description: errorDescription(res),
			URL:         c.url,
			Method:      c.method,
		}
	}
	if out != nil && len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, out); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "openpayments: decode response body").
				WithCode(http.StatusBadGateway).
				WithMetadata(map[string]any{"url": c.url, "status_code": res.StatusCode})
		}
	}
	return res.Body, nil
}

type errorBody struct {
	Error *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
	Message string `json:"message"`
}

func errorDescription(res transport.Response) string {
	var body errorBody
	if len(res.Body) > 0 && json.Unmarshal(res.Body, &body) == nil {
		if body.Error != nil {
			if description := strings.TrimSpace(body.Error.Description); description != "" {
				return description
			}
			if code := strings.TrimSpace(body.Error.Code); code != "" {
				return code
			}
		}
		if message := strings.TrimSpace(body.Message); message != "" {
			return message
		}
	}
	if text := http.StatusText(res.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", res.StatusCode)
}

func joinURL(base string, segments ...string) string {
	out := strings.TrimRight(strings.TrimSpace(base), "/")
	for _, segment := range segments {
		segment = strings.Trim(segment, "/")
		if segment == "" {
			continue
		}
		out += "/" + segment
	}
	return out
}
