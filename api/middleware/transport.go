package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/privy-io/privy-go/authorization"
	"github.com/privy-io/privy-go/interfaces"
)

// SigningTransport signs eligible requests with the AuthorizationContext
// found in the request context and sets the privy-authorization-signature
// header. A request is eligible when its method is PATCH, POST, PUT or
// DELETE, its body is JSON and its operation is not on the deny list.
type SigningTransport struct {
	base   http.RoundTripper
	appID  string
	denied map[string]struct{}
	log    *slog.Logger
}

type TransportOption func(*SigningTransport)

// WithDeniedOperations adds operations that are never signed.
func WithDeniedOperations(operations ...string) TransportOption {
	return func(t *SigningTransport) {
		for _, op := range operations {
			t.denied[op] = struct{}{}
		}
	}
}

func WithTransportLogger(log *slog.Logger) TransportOption {
	return func(t *SigningTransport) {
		t.log = log
	}
}

// NewSigningTransport wraps base, http.DefaultTransport when nil.
func NewSigningTransport(base http.RoundTripper, appID string, opts ...TransportOption) *SigningTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &SigningTransport{
		base:   base,
		appID:  appID,
		denied: map[string]struct{}{OperationAuthenticate: {}},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified; a signed clone is sent instead.
func (t *SigningTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	method, ok := interfaces.ParseHTTPMethod(req.Method)
	if !ok || req.Body == nil || req.Body == http.NoBody {
		return t.base.RoundTrip(req)
	}
	if _, skip := t.denied[OperationFrom(req.Context())]; skip {
		return t.base.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	out.ContentLength = int64(len(body))

	if !json.Valid(body) {
		return t.base.RoundTrip(out)
	}

	authCtx := AuthorizationContextFrom(req.Context())
	canonical := authorization.NewCanonicalRequest(
		t.appID,
		method,
		req.URL.String(),
		json.RawMessage(body),
		req.Header.Get(interfaces.HeaderIdempotencyKey),
	)

	signature, err := authorization.GenerateSignature(req.Context(), authCtx, canonical)
	if err != nil {
		t.log.Error("failed to sign request", "method", method, "url", req.URL.Path, "err", err)
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	if signature != "" {
		out.Header.Set(interfaces.HeaderAuthorizationSignature, signature)
		t.log.Debug("signed request", "method", method, "url", req.URL.Path, "signatures", authCtx.Len())
	}
	return t.base.RoundTrip(out)
}
