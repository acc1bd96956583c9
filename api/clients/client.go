package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/privy-io/privy-go/api/middleware"
	"github.com/privy-io/privy-go/authorization"
	"github.com/privy-io/privy-go/common"
	"github.com/privy-io/privy-go/interfaces"
	"github.com/privy-io/privy-go/jwtexchange"
)

const (
	DefaultBaseURL = "https://api.privy.io"
	DefaultTimeout = 15 * time.Second

	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

// Client is a Privy API client. Requests to owner-gated endpoints are signed
// by the AuthorizationContext passed to the service method. A Client owns its
// JWT exchange cache and is safe for concurrent use.
type Client struct {
	appID      string
	appSecret  string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	log        *slog.Logger

	exchangeOpts []jwtexchange.Option
	exchange     *jwtexchange.Cache

	wallets    *WalletsService
	policies   *PoliciesService
	keyQuorums *KeyQuorumsService
	users      *UsersService
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets the underlying client. Its transport is wrapped by the
// signing middleware.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithExchangeCacheCapacity(capacity int) Option {
	return func(c *Client) {
		c.exchangeOpts = append(c.exchangeOpts, jwtexchange.WithCapacity(capacity))
	}
}

// WithExchangeDelay sets the wait after each JWT exchange. See
// jwtexchange.DefaultExchangeDelay.
func WithExchangeDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.exchangeOpts = append(c.exchangeOpts, jwtexchange.WithExchangeDelay(delay))
	}
}

func WithExchangeSingleFlight(enabled bool) Option {
	return func(c *Client) {
		c.exchangeOpts = append(c.exchangeOpts, jwtexchange.WithSingleFlight(enabled))
	}
}

// WithClock sets the clock used for JWT exchange freshness checks.
func WithClock(clock interfaces.Clock) Option {
	return func(c *Client) {
		c.exchangeOpts = append(c.exchangeOpts, jwtexchange.WithClock(clock))
	}
}

// NewClient creates a client for the app identified by appID and appSecret.
func NewClient(appID, appSecret string, opts ...Option) (*Client, error) {
	if appID == "" || appSecret == "" {
		return nil, fmt.Errorf("app id and app secret are required")
	}

	c := &Client{
		appID:     appID,
		appSecret: appSecret,
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	var httpClient http.Client
	if c.httpClient != nil {
		httpClient = *c.httpClient
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = c.timeout
	}
	httpClient.Transport = middleware.NewSigningTransport(httpClient.Transport, appID, middleware.WithTransportLogger(c.log))
	c.httpClient = &httpClient

	c.wallets = &WalletsService{client: c}
	c.policies = &PoliciesService{client: c}
	c.keyQuorums = &KeyQuorumsService{client: c}
	c.users = &UsersService{client: c}

	exchangeOpts := append([]jwtexchange.Option{jwtexchange.WithLogger(c.log)}, c.exchangeOpts...)
	exchange, err := jwtexchange.New(c.wallets, exchangeOpts...)
	if err != nil {
		return nil, err
	}
	c.exchange = exchange

	return c, nil
}

func (c *Client) AppID() string { return c.appID }

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Wallets() *WalletsService { return c.wallets }

func (c *Client) Policies() *PoliciesService { return c.policies }

func (c *Client) KeyQuorums() *KeyQuorumsService { return c.keyQuorums }

func (c *Client) Users() *UsersService { return c.users }

// ExchangeCache returns the cache of JWT derived authorization keys.
func (c *Client) ExchangeCache() *jwtexchange.Cache { return c.exchange }

// JwtUser returns a key that signs as the user authenticated by jwt.
func (c *Client) JwtUser(jwt string) *authorization.JwtUser {
	return authorization.NewJwtUser(c.exchange, jwt)
}

// URL returns the absolute URL of an API path.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

// CanonicalRequest returns the bytes an authorization key signs for a
// request. Relative URLs are resolved against the base URL.
func (c *Client) CanonicalRequest(method interfaces.HTTPMethod, url string, body any, idempotencyKey string) ([]byte, error) {
	return authorization.FormatRequest(c.appID, method, c.URL(url), body, idempotencyKey)
}

// AuthorizationSignature computes the privy-authorization-signature header
// value for a request, for callers that send requests themselves.
func (c *Client) AuthorizationSignature(ctx context.Context, authCtx *authorization.AuthorizationContext, method interfaces.HTTPMethod, url string, body any, idempotencyKey string) (string, error) {
	req := authorization.NewCanonicalRequest(c.appID, method, c.URL(url), body, idempotencyKey)
	return authorization.GenerateSignature(ctx, authCtx, req)
}

// NewIdempotencyKey returns a random key for operations that support
// idempotent retries.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

type requestOptions struct {
	authCtx        *authorization.AuthorizationContext
	idempotencyKey string
	operation      string
}

// doRequest performs an API call. A non-nil body is sent as JSON; a non-nil
// result is decoded from the response.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, opts *requestOptions) error {
	if opts == nil {
		opts = &requestOptions{}
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	if opts.authCtx != nil {
		ctx = middleware.WithAuthorizationContext(ctx, opts.authCtx)
	}
	if opts.operation != "" {
		ctx = middleware.WithOperation(ctx, opts.operation)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.appID, c.appSecret)
	req.Header.Set(interfaces.HeaderAppID, c.appID)
	req.Header.Set(interfaces.HeaderClient, common.ClientHeader())
	req.Header.Set(headerContentType, contentTypeJSON)
	if opts.idempotencyKey != "" {
		req.Header.Set(interfaces.HeaderIdempotencyKey, opts.idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := parseError(resp.StatusCode, respBody)
		c.log.Debug("api request rejected", "method", method, "path", path, "status", resp.StatusCode, "err", apiErr)
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, result, nil)
}
