package authorization

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"github.com/privy-io/privy-go/interfaces"
)

// SignatureVersion is the version of the canonical request format.
const SignatureVersion = 1

// CanonicalRequest is the payload covered by authorization signatures.
type CanonicalRequest struct {
	Version int                   `json:"version"`
	Method  interfaces.HTTPMethod `json:"method"`
	URL     string                `json:"url"`
	Body    any                   `json:"body"`
	Headers map[string]string     `json:"headers"`
}

// NewCanonicalRequest builds the signed payload of a request. The headers
// object always carries the app id and carries the idempotency key only when
// it is non-empty. Body may be any JSON serializable value; raw JSON must be
// passed as json.RawMessage.
func NewCanonicalRequest(appID string, method interfaces.HTTPMethod, url string, body any, idempotencyKey string) *CanonicalRequest {
	headers := map[string]string{
		interfaces.HeaderAppID: appID,
	}
	if idempotencyKey != "" {
		headers[interfaces.HeaderIdempotencyKey] = idempotencyKey
	}

	return &CanonicalRequest{
		Version: SignatureVersion,
		Method:  method,
		URL:     url,
		Body:    body,
		Headers: headers,
	}
}

// Canonicalize serializes the request per RFC 8785: object keys sorted at
// every depth, array order preserved, no insignificant whitespace and no HTML
// escaping. Non-finite floats in the body cannot be represented and fail with
// ErrSerialization.
func (r *CanonicalRequest) Canonicalize() ([]byte, error) {
	if _, ok := interfaces.ParseHTTPMethod(string(r.Method)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrMethodNotSigned, r.Method)
	}

	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return canonical, nil
}

// FormatRequest canonicalizes a request in one call.
func FormatRequest(appID string, method interfaces.HTTPMethod, url string, body any, idempotencyKey string) ([]byte, error) {
	return NewCanonicalRequest(appID, method, url, body, idempotencyKey).Canonicalize()
}
