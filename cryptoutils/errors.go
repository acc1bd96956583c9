package cryptoutils

import "errors"

var (
	// ErrInvalidFormat reports malformed base64, DER, PEM or curve point input.
	ErrInvalidFormat = errors.New("invalid key material format")
	// ErrHpkeDecryption reports an HPKE setup or authenticated decryption failure.
	ErrHpkeDecryption = errors.New("hpke decryption failed")
	// ErrRecipientUsed is returned when an ephemeral HPKE recipient is asked to
	// decrypt more than once.
	ErrRecipientUsed = errors.New("hpke recipient key already used")
)
