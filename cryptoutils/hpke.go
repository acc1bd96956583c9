package cryptoutils

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"
)

// Privy seals key material with RFC 9180 base mode using
// DHKEM(P-256, HKDF-SHA256), HKDF-SHA256 and ChaCha20-Poly1305.
var (
	hpkeSuite = hpke.NewSuite(hpke.KEM_P256_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_ChaCha20Poly1305)
	hpkeKEM   = hpke.KEM_P256_HKDF_SHA256.Scheme()
)

// HPKERecipient is the receiving side of an HPKE key exchange. It holds an
// ephemeral P-256 keypair that is consumed by the first decryption attempt,
// successful or not. A new recipient must be created for every exchange.
type HPKERecipient struct {
	mu sync.Mutex
	sk kem.PrivateKey
	pk kem.PublicKey
}

// NewHPKERecipient generates a fresh ephemeral keypair from crypto/rand.
func NewHPKERecipient() (*HPKERecipient, error) {
	return NewHPKERecipientFromReader(rand.Reader)
}

// NewHPKERecipientFromReader derives the ephemeral keypair from seed bytes read
// from r using the DeriveKeyPair function of RFC 9180. A deterministic reader
// yields a deterministic keypair, which is only meant for regression tests.
func NewHPKERecipientFromReader(r io.Reader) (*HPKERecipient, error) {
	seed := make([]byte, hpkeKEM.SeedSize())
	defer wipeBytes(seed)

	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("failed to read HPKE key seed: %w", err)
	}

	pk, sk := hpkeKEM.DeriveKeyPair(seed)
	return &HPKERecipient{sk: sk, pk: pk}, nil
}

// PublicKey returns the recipient public key as base64(SPKI DER), the format
// expected in recipient_public_key fields of the API.
func (h *HPKERecipient) PublicKey() (string, error) {
	raw, err := h.pk.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to export HPKE public key: %w", err)
	}

	// Re-parse the SEC1 point so only a valid curve point is ever encoded
	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid HPKE public key point: %w", ErrInvalidFormat, err)
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal HPKE public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// PublicKeyPoint returns the recipient public key as base64 of the
// uncompressed SEC1 point, the format of encryption_public_key in wallet
// import responses.
func (h *HPKERecipient) PublicKeyPoint() (string, error) {
	raw, err := h.pk.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to export HPKE public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt opens an HPKE sealed authorization key. The plaintext is base64 text
// of a PKCS#8 DER private key, which is decoded and parsed.
func (h *HPKERecipient) Decrypt(encapsulatedKey, ciphertext string) (*ecdsa.PrivateKey, error) {
	plaintext, err := h.DecryptRaw(encapsulatedKey, ciphertext)
	if err != nil {
		return nil, err
	}
	defer wipeBytes(plaintext)

	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(plaintext)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode decrypted key: %w", ErrInvalidFormat, err)
	}
	defer wipeBytes(der)

	return ParsePKCS8PrivateKey(der)
}

// DecryptRaw opens an HPKE sealed payload and returns the plaintext as is.
// It is used for wallet exports, where the plaintext is the wallet secret.
func (h *HPKERecipient) DecryptRaw(encapsulatedKey, ciphertext string) ([]byte, error) {
	sk := h.take()
	if sk == nil {
		return nil, ErrRecipientUsed
	}

	enc, err := base64.StdEncoding.DecodeString(encapsulatedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode encapsulated key: %w", ErrInvalidFormat, err)
	}
	if _, err := hpkeKEM.UnmarshalBinaryPublicKey(enc); err != nil {
		return nil, fmt.Errorf("%w: invalid encapsulated key: %w", ErrInvalidFormat, err)
	}

	ct, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode ciphertext: %w", ErrInvalidFormat, err)
	}

	return openSealed(sk, enc, ct, nil, nil)
}

func (h *HPKERecipient) take() kem.PrivateKey {
	h.mu.Lock()
	defer h.mu.Unlock()
	sk := h.sk
	h.sk = nil
	return sk
}

func openSealed(sk kem.PrivateKey, enc, ct, info, aad []byte) ([]byte, error) {
	receiver, err := hpkeSuite.NewReceiver(sk, info)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create receiver: %w", ErrHpkeDecryption, err)
	}

	opener, err := receiver.Setup(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: receiver setup failed: %w", ErrHpkeDecryption, err)
	}

	plaintext, err := opener.Open(ct, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHpkeDecryption, err)
	}
	return plaintext, nil
}

// Seal HPKE-seals plaintext to a recipient public key given as base64 of either
// a SPKI DER structure or an uncompressed SEC1 point. It returns the base64
// encapsulated key and ciphertext.
func Seal(recipientPublicKey string, plaintext []byte) (encapsulatedKey, ciphertext string, err error) {
	pk, err := parseHPKEPublicKey(recipientPublicKey)
	if err != nil {
		return "", "", err
	}

	sender, err := hpkeSuite.NewSender(pk, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create HPKE sender: %w", err)
	}

	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("HPKE sender setup failed: %w", err)
	}

	ct, err := sealer.Seal(plaintext, nil)
	if err != nil {
		return "", "", fmt.Errorf("HPKE encryption failed: %w", err)
	}

	return base64.StdEncoding.EncodeToString(enc), base64.StdEncoding.EncodeToString(ct), nil
}

// SealPrivateKey seals a private key for a recipient using the same double
// encoding the API uses for authorization keys: base64 text of PKCS#8 DER.
func SealPrivateKey(recipientPublicKey string, key *ecdsa.PrivateKey) (encapsulatedKey, ciphertext string, err error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	defer wipeBytes(der)

	return Seal(recipientPublicKey, []byte(base64.StdEncoding.EncodeToString(der)))
}

func parseHPKEPublicKey(data string) (kem.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode recipient public key: %w", ErrInvalidFormat, err)
	}

	// Uncompressed SEC1 points are used as is, anything else must be SPKI
	if len(raw) != 65 || raw[0] != 0x04 {
		pub, err := ParsePublicKeyDER(raw)
		if err != nil {
			return nil, err
		}
		ecdhPub, err := pub.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
		}
		raw = ecdhPub.Bytes()
	}

	pk, err := hpkeKEM.UnmarshalBinaryPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid recipient public key: %w", ErrInvalidFormat, err)
	}
	return pk, nil
}
