package interfaces

import (
	"context"
	"crypto/ecdsa"
	"time"
)

// Key is a credential that can take part in authorizing a request.
// Implementations are immutable once constructed.
type Key interface {
	// PublicKey returns the P-256 public key matching the signatures produced by Sign.
	PublicKey(ctx context.Context) (*ecdsa.PublicKey, error)
	// Sign returns an ASN.1 DER encoded ECDSA signature over SHA-256(message).
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// SecretKeySource resolves to local P-256 key material.
type SecretKeySource interface {
	SecretKey(ctx context.Context) (*ecdsa.PrivateKey, error)
}

// KeyExchanger exchanges a user JWT for a time-bounded authorization key.
type KeyExchanger interface {
	Exchange(ctx context.Context, jwt string) (*ecdsa.PrivateKey, error)
}

// Authenticator performs the authenticate call of the wallets API.
type Authenticator interface {
	Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error)
}

// Clock abstracts wall-clock time so freshness checks can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
