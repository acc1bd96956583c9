package authorization

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/interfaces"
)

// DefaultKeyCacheTTL is how long TimeCachingKey keeps a resolved key.
const DefaultKeyCacheTTL = 60 * time.Second

var (
	_ interfaces.Key             = (*PrivateKey)(nil)
	_ interfaces.Key             = PrivateKeyFile("")
	_ interfaces.Key             = (*JwtUser)(nil)
	_ interfaces.Key             = PrecomputedSignature(nil)
	_ interfaces.Key             = (*TimeCachingKey)(nil)
	_ interfaces.SecretKeySource = (*JwtUser)(nil)
)

// PrivateKey is a static P-256 authorization key held in memory.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// NewPrivateKey parses a SEC1 or PKCS#8 PEM key, or a "wallet-auth:" dashboard key.
func NewPrivateKey(encoded string) (*PrivateKey, error) {
	key, err := cryptoutils.ParsePrivateKey(encoded)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// FromECDSA wraps an already parsed P-256 key.
func FromECDSA(key *ecdsa.PrivateKey) *PrivateKey {
	return &PrivateKey{key: key}
}

func (k *PrivateKey) SecretKey(context.Context) (*ecdsa.PrivateKey, error) {
	return k.key, nil
}

func (k *PrivateKey) PublicKey(context.Context) (*ecdsa.PublicKey, error) {
	return &k.key.PublicKey, nil
}

func (k *PrivateKey) Sign(_ context.Context, message []byte) ([]byte, error) {
	return cryptoutils.SignMessage(k.key, message)
}

// PrivateKeyFile is an authorization key read from a PEM file on every use,
// so rotating the file takes effect without rebuilding the context.
type PrivateKeyFile string

func (p PrivateKeyFile) SecretKey(context.Context) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	return cryptoutils.ParsePrivateKey(string(data))
}

func (p PrivateKeyFile) PublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	return publicKeyOf(ctx, p)
}

func (p PrivateKeyFile) Sign(ctx context.Context, message []byte) ([]byte, error) {
	return signWith(ctx, p, message)
}

// JwtUser is a user identity whose authorization key is obtained by
// exchanging the JWT with the API. The exchanger is expected to cache keys.
type JwtUser struct {
	exchanger interfaces.KeyExchanger
	jwt       string
}

func NewJwtUser(exchanger interfaces.KeyExchanger, jwt string) *JwtUser {
	return &JwtUser{exchanger: exchanger, jwt: jwt}
}

func (u *JwtUser) SecretKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	return u.exchanger.Exchange(ctx, u.jwt)
}

func (u *JwtUser) PublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	return publicKeyOf(ctx, u)
}

func (u *JwtUser) Sign(ctx context.Context, message []byte) ([]byte, error) {
	return signWith(ctx, u, message)
}

// String keeps the JWT out of logs and error messages.
func (u *JwtUser) String() string {
	return "JwtUser(<redacted>)"
}

// PrecomputedSignature is a DER signature produced out of band, for example
// by a user device. It is returned as is for any message.
type PrecomputedSignature []byte

func (s PrecomputedSignature) PublicKey(context.Context) (*ecdsa.PublicKey, error) {
	return nil, ErrPublicKeyUnavailable
}

func (s PrecomputedSignature) Sign(context.Context, []byte) ([]byte, error) {
	return append([]byte(nil), s...), nil
}

// TimeCachingKey caches the key resolved from a source for a fixed TTL.
type TimeCachingKey struct {
	source interfaces.SecretKeySource
	ttl    time.Duration
	clock  interfaces.Clock

	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	expires time.Time
}

func NewTimeCachingKey(source interfaces.SecretKeySource, ttl time.Duration, clock interfaces.Clock) *TimeCachingKey {
	if ttl <= 0 {
		ttl = DefaultKeyCacheTTL
	}
	if clock == nil {
		clock = interfaces.SystemClock{}
	}
	return &TimeCachingKey{source: source, ttl: ttl, clock: clock}
}

func (k *TimeCachingKey) SecretKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	k.mu.RLock()
	key, expires := k.key, k.expires
	k.mu.RUnlock()
	if key != nil && k.clock.Now().Before(expires) {
		return key, nil
	}

	key, err := k.source.SecretKey(ctx)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	k.key = key
	k.expires = k.clock.Now().Add(k.ttl)
	k.mu.Unlock()
	return key, nil
}

func (k *TimeCachingKey) PublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	return publicKeyOf(ctx, k)
}

func (k *TimeCachingKey) Sign(ctx context.Context, message []byte) ([]byte, error) {
	return signWith(ctx, k, message)
}

func publicKeyOf(ctx context.Context, src interfaces.SecretKeySource) (*ecdsa.PublicKey, error) {
	key, err := src.SecretKey(ctx)
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

func signWith(ctx context.Context, src interfaces.SecretKeySource, message []byte) ([]byte, error) {
	key, err := src.SecretKey(ctx)
	if err != nil {
		return nil, err
	}
	return cryptoutils.SignMessage(key, message)
}
