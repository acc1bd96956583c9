package jwtexchange

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyExchange is matched by every failure to obtain an authorization key
	// for a user JWT.
	ErrKeyExchange = errors.New("key exchange failed")
	// ErrUnsupportedEncryption is returned when the API answers with the
	// unencrypted authorization key variant.
	ErrUnsupportedEncryption = errors.New("unencrypted authorization key responses are not supported")
)

// KeyExchangeError wraps the cause of a failed exchange. The cause is kept
// intact so API errors can still be inspected with errors.As.
type KeyExchangeError struct {
	Err error
}

func (e *KeyExchangeError) Error() string {
	return fmt.Sprintf("%s: %v", ErrKeyExchange, e.Err)
}

func (e *KeyExchangeError) Unwrap() error {
	return e.Err
}

func (e *KeyExchangeError) Is(target error) bool {
	return target == ErrKeyExchange
}
