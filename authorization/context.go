package authorization

import (
	"context"

	"github.com/privy-io/privy-go/interfaces"
	"golang.org/x/sync/errgroup"
)

// DefaultSigningConcurrency bounds how many keys of a context sign at once.
const DefaultSigningConcurrency = 10

// AuthorizationContext is the ordered set of keys presented for a request.
// Key order is significant: signatures are emitted in push order.
//
// Push is not safe for concurrent use with the other methods; build the
// context first, then share it (or Clone it) across goroutines.
type AuthorizationContext struct {
	keys        []interfaces.Key
	concurrency int
}

// NewAuthorizationContext returns a context holding the given keys in order.
func NewAuthorizationContext(keys ...interfaces.Key) *AuthorizationContext {
	return &AuthorizationContext{
		keys:        append([]interfaces.Key(nil), keys...),
		concurrency: DefaultSigningConcurrency,
	}
}

// Push appends a key and returns the context so calls can be chained.
func (c *AuthorizationContext) Push(key interfaces.Key) *AuthorizationContext {
	c.keys = append(c.keys, key)
	return c
}

// WithConcurrency sets how many keys may sign at once. Values below one are ignored.
func (c *AuthorizationContext) WithConcurrency(n int) *AuthorizationContext {
	if n > 0 {
		c.concurrency = n
	}
	return c
}

func (c *AuthorizationContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Keys returns a copy of the keys in push order.
func (c *AuthorizationContext) Keys() []interfaces.Key {
	if c == nil {
		return nil
	}
	return append([]interfaces.Key(nil), c.keys...)
}

// Clone returns an independent context sharing the same immutable keys.
func (c *AuthorizationContext) Clone() *AuthorizationContext {
	if c == nil {
		return NewAuthorizationContext()
	}
	return NewAuthorizationContext(c.Keys()...).WithConcurrency(c.concurrency)
}

// Sign signs message with every key concurrently and returns one DER
// signature per key, in push order regardless of completion order. The first
// failure cancels the remaining keys and is returned as a *SigningError.
func (c *AuthorizationContext) Sign(ctx context.Context, message []byte) ([][]byte, error) {
	if c.Len() == 0 {
		return nil, nil
	}

	signatures := make([][]byte, len(c.keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit())

	for i, key := range c.keys {
		g.Go(func() error {
			sig, err := key.Sign(gctx, message)
			if err != nil {
				return &SigningError{Index: i, Err: err}
			}
			signatures[i] = sig
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return signatures, nil
}

// Validate exercises every key by signing an empty message and returns all
// failures. An empty result means every key can produce a signature.
func (c *AuthorizationContext) Validate(ctx context.Context) []error {
	if c.Len() == 0 {
		return nil
	}

	failures := make([]error, len(c.keys))
	var g errgroup.Group
	g.SetLimit(c.limit())

	for i, key := range c.keys {
		g.Go(func() error {
			if _, err := key.Sign(ctx, []byte{}); err != nil {
				failures[i] = &SigningError{Index: i, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, err := range failures {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (c *AuthorizationContext) limit() int {
	if c.concurrency <= 0 {
		return DefaultSigningConcurrency
	}
	return c.concurrency
}
