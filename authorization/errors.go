package authorization

import (
	"errors"
	"fmt"

	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/jwtexchange"
)

var (
	// ErrSerialization reports a request that could not be canonicalized.
	ErrSerialization = errors.New("failed to canonicalize request")
	// ErrMethodNotSigned is returned when asked to canonicalize a read-only verb.
	ErrMethodNotSigned = errors.New("method does not carry an authorization signature")
	// ErrPublicKeyUnavailable is returned by keys that only hold a signature.
	ErrPublicKeyUnavailable = errors.New("public key is not available for this key")

	ErrInvalidFormat         = cryptoutils.ErrInvalidFormat
	ErrHpkeDecryption        = cryptoutils.ErrHpkeDecryption
	ErrKeyExchange           = jwtexchange.ErrKeyExchange
	ErrUnsupportedEncryption = jwtexchange.ErrUnsupportedEncryption
)

// SigningError identifies which key of an AuthorizationContext failed.
type SigningError struct {
	Index int
	Err   error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("failed to sign with key %d: %v", e.Index, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}
