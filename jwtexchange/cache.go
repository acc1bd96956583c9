package jwtexchange

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/interfaces"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

const (
	// ExpiryBuffer is subtracted from the server expiry when deciding whether
	// a cached key is still usable.
	ExpiryBuffer = 60 * time.Second
	// DefaultCapacity is the number of JWTs kept in the cache.
	DefaultCapacity = 1000
	// DefaultExchangeDelay is waited after a successful exchange, before the
	// key is used. The API caches newly issued keys with a short propagation
	// lag and rejects signatures made with them in that window.
	DefaultExchangeDelay = time.Second
)

var _ interfaces.KeyExchanger = (*Cache)(nil)

type entry struct {
	expiry time.Time
	key    *ecdsa.PrivateKey
}

// Option configures a Cache.
type Option func(*Cache)

func WithCapacity(capacity int) Option {
	return func(c *Cache) {
		c.capacity = capacity
	}
}

// WithExchangeDelay overrides DefaultExchangeDelay. Zero disables the wait.
func WithExchangeDelay(delay time.Duration) Option {
	return func(c *Cache) {
		c.delay = delay
	}
}

func WithClock(clock interfaces.Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) {
		c.log = log
	}
}

// WithSingleFlight collapses concurrent exchanges of the same JWT into a
// single authenticate call.
func WithSingleFlight(enabled bool) Option {
	return func(c *Cache) {
		c.singleFlight = enabled
	}
}

// Cache exchanges JWTs for authorization keys and caches them. It is safe for
// concurrent use.
type Cache struct {
	auth         interfaces.Authenticator
	capacity     int
	delay        time.Duration
	clock        interfaces.Clock
	log          *slog.Logger
	singleFlight bool
	flights      singleflight.Group

	mu      sync.Mutex
	entries *simplelru.LRU[string, entry]
	demoted map[string]struct{}

	hits      atomic.Int64
	misses    atomic.Int64
	exchanges atomic.Int64
	failures  atomic.Int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Exchanges int64
	Failures  int64
}

// New creates a cache that performs exchanges through auth.
func New(auth interfaces.Authenticator, opts ...Option) (*Cache, error) {
	c := &Cache{
		auth:     auth,
		capacity: DefaultCapacity,
		delay:    DefaultExchangeDelay,
		clock:    interfaces.SystemClock{},
		log:      slog.Default(),
		demoted:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	entries, err := simplelru.NewLRU(c.capacity, func(jwt string, _ entry) {
		delete(c.demoted, jwt)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid exchange cache capacity %d: %w", c.capacity, err)
	}
	c.entries = entries
	return c, nil
}

// Exchange returns the authorization key for jwt, performing a new exchange
// when no fresh key is cached. Failed exchanges are never cached.
func (c *Cache) Exchange(ctx context.Context, jwt string) (*ecdsa.PrivateKey, error) {
	if key, ok := c.lookup(jwt); ok {
		c.hits.Inc()
		return key, nil
	}
	c.misses.Inc()

	if !c.singleFlight {
		return c.exchange(ctx, jwt)
	}

	// The shared flight outlives any single caller's cancellation
	flight := c.flights.DoChan(jwt, func() (any, error) {
		return c.exchange(context.WithoutCancel(ctx), jwt)
	})
	select {
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ecdsa.PrivateKey), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of cached entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Exchanges: c.exchanges.Load(),
		Failures:  c.failures.Load(),
	}
}

func (c *Cache) lookup(jwt string) (*ecdsa.PrivateKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(jwt)
	if !ok {
		return nil, false
	}
	if c.clock.Now().Before(e.expiry.Add(-ExpiryBuffer)) {
		c.entries.Get(jwt)
		return e.key, true
	}

	c.demoted[jwt] = struct{}{}
	return nil, false
}

func (c *Cache) store(jwt string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.demoted, jwt)
	if !c.entries.Contains(jwt) && c.entries.Len() >= c.capacity {
		c.evictDemoted()
	}
	c.entries.Add(jwt, e)
}

// evictDemoted removes the least recently used demoted entry, if any, so it
// is evicted ahead of fresh entries.
func (c *Cache) evictDemoted() {
	if len(c.demoted) == 0 {
		return
	}
	for _, jwt := range c.entries.Keys() {
		if _, ok := c.demoted[jwt]; ok {
			c.entries.Remove(jwt)
			return
		}
	}
}

func (c *Cache) exchange(ctx context.Context, jwt string) (*ecdsa.PrivateKey, error) {
	c.exchanges.Inc()

	key, expiry, err := c.authenticate(ctx, jwt)
	if err != nil {
		c.failures.Inc()
		return nil, err
	}

	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.store(jwt, entry{expiry: expiry, key: key})
	c.log.Info("obtained authorization key", "expiresAt", expiry)
	return key, nil
}

func (c *Cache) authenticate(ctx context.Context, jwt string) (*ecdsa.PrivateKey, time.Time, error) {
	// A fresh ephemeral keypair per attempt, discarded after one decryption
	recipient, err := cryptoutils.NewHPKERecipient()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to generate HPKE keypair: %w", err)
	}
	publicKey, err := recipient.PublicKey()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to format HPKE public key: %w", err)
	}

	c.log.Debug("starting HPKE jwt exchange")

	resp, err := c.auth.Authenticate(ctx, &interfaces.AuthenticateRequest{
		UserJWT:            jwt,
		EncryptionType:     interfaces.EncryptionTypeHPKE,
		RecipientPublicKey: publicKey,
	})
	if err != nil {
		c.log.Error("authenticate request failed", "err", err)
		return nil, time.Time{}, &KeyExchangeError{Err: err}
	}

	if resp == nil {
		return nil, time.Time{}, &KeyExchangeError{Err: errors.New("empty authenticate response")}
	}
	if !resp.IsEncrypted() {
		c.log.Warn("received unencrypted authorization key, refusing it")
		return nil, time.Time{}, ErrUnsupportedEncryption
	}

	encrypted := resp.EncryptedAuthorizationKey
	key, err := recipient.Decrypt(encrypted.EncapsulatedKey, encrypted.Ciphertext)
	if err != nil {
		c.log.Error("failed to decrypt authorization key", "err", err)
		return nil, time.Time{}, fmt.Errorf("failed to decrypt authorization key: %w", err)
	}

	return key, resp.Expiry(), nil
}
