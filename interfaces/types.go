package interfaces

import (
	"math"
	"strings"
	"time"
)

// HTTPMethod is a request verb that is eligible for an authorization signature.
type HTTPMethod string

const (
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodPatch  HTTPMethod = "PATCH"
	MethodDelete HTTPMethod = "DELETE"
)

// ParseHTTPMethod maps an HTTP verb to a signable method. Reads (GET, HEAD,
// OPTIONS) are never signed and report false.
func ParseHTTPMethod(method string) (HTTPMethod, bool) {
	switch m := HTTPMethod(strings.ToUpper(method)); m {
	case MethodPost, MethodPut, MethodPatch, MethodDelete:
		return m, true
	default:
		return "", false
	}
}

// Header names understood by the Privy API.
const (
	HeaderAppID                  = "privy-app-id"
	HeaderIdempotencyKey         = "privy-idempotency-key"
	HeaderAuthorizationSignature = "privy-authorization-signature"
	HeaderClient                 = "privy-client"
)

// EncryptionTypeHPKE is the only encryption scheme supported for key material
// returned by the API.
const EncryptionTypeHPKE = "HPKE"

// AuthenticateRequest is the body of POST /v1/wallets/authenticate.
type AuthenticateRequest struct {
	UserJWT            string `json:"user_jwt"`
	EncryptionType     string `json:"encryption_type,omitempty"`
	RecipientPublicKey string `json:"recipient_public_key,omitempty"`
}

// EncryptedKey is key material HPKE-sealed to a recipient public key.
type EncryptedKey struct {
	EncryptionType  string `json:"encryption_type,omitempty"`
	EncapsulatedKey string `json:"encapsulated_key"`
	Ciphertext      string `json:"ciphertext"`
}

// AuthenticateResponse is the tagged union returned by the authenticate
// endpoint. When EncryptedAuthorizationKey is set the response is the
// encrypted variant; otherwise AuthorizationKey carries the key in the clear.
type AuthenticateResponse struct {
	EncryptedAuthorizationKey *EncryptedKey `json:"encrypted_authorization_key,omitempty"`
	AuthorizationKey          string        `json:"authorization_key,omitempty"`
	// ExpiresAt is expressed in seconds since the unix epoch.
	ExpiresAt float64 `json:"expires_at"`
}

// IsEncrypted reports whether the response is the HPKE encrypted variant.
func (r *AuthenticateResponse) IsEncrypted() bool {
	return r.EncryptedAuthorizationKey != nil
}

// Expiry converts ExpiresAt to a time.Time.
func (r *AuthenticateResponse) Expiry() time.Time {
	sec, frac := math.Modf(r.ExpiresAt)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
