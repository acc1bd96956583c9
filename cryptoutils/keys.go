package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// AuthorizationKeyPrefix prefixes authorization private keys exported from the
// Privy dashboard. The remainder is base64 of a PKCS#8 DER structure.
const AuthorizationKeyPrefix = "wallet-auth:"

// ParsePrivateKey parses a P-256 private key in any of the encodings used by
// Privy tooling: a SEC1 ("EC PRIVATE KEY") or PKCS#8 ("PRIVATE KEY") PEM block,
// or a dashboard key of the form "wallet-auth:<base64 PKCS#8 DER>".
func ParsePrivateKey(data string) (*ecdsa.PrivateKey, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "-----BEGIN") {
		return ParsePrivateKeyPEM([]byte(data))
	}

	der, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(data, AuthorizationKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode private key: %w", ErrInvalidFormat, err)
	}
	defer wipeBytes(der)

	if key, err := ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse private key: %w", ErrInvalidFormat, err)
	}
	return requireP256(key)
}

// ParsePrivateKeyPEM parses a SEC1 or PKCS#8 PEM encoded P-256 private key.
func ParsePrivateKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: failed to decode private key PEM", ErrInvalidFormat)
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse EC private key: %w", ErrInvalidFormat, err)
		}
		return requireP256(key)
	case "PRIVATE KEY":
		return ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block type %q", ErrInvalidFormat, block.Type)
	}
}

// ParsePKCS8PrivateKey parses a PKCS#8 DER encoded P-256 private key.
func ParsePKCS8PrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse PKCS#8 private key: %w", ErrInvalidFormat, err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ECDSA private key", ErrInvalidFormat)
	}
	return requireP256(key)
}

func requireP256(key *ecdsa.PrivateKey) (*ecdsa.PrivateKey, error) {
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: private key is not on P-256", ErrInvalidFormat)
	}
	return key, nil
}

// MarshalPrivateKeyPEM encodes a private key as a SEC1 "EC PRIVATE KEY" PEM block.
func MarshalPrivateKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// MarshalAuthorizationKey encodes a private key in the dashboard
// "wallet-auth:" format.
func MarshalAuthorizationKey(key *ecdsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	return AuthorizationKeyPrefix + base64.StdEncoding.EncodeToString(der), nil
}

// MarshalPublicKey DER encodes a public key as a SubjectPublicKeyInfo structure.
func MarshalPublicKey(pub *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return der, nil
}

// MarshalPublicKeyBase64 returns base64(SPKI DER) of a public key.
func MarshalPublicKeyBase64(pub *ecdsa.PublicKey) (string, error) {
	der, err := MarshalPublicKey(pub)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// MarshalPublicKeyPEM returns a "PUBLIC KEY" PEM block for a public key.
func MarshalPublicKeyPEM(pub *ecdsa.PublicKey) ([]byte, error) {
	der, err := MarshalPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ParsePublicKeyDER parses a SubjectPublicKeyInfo DER structure holding a P-256 key.
func ParsePublicKeyDER(der []byte) (*ecdsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse public key: %w", ErrInvalidFormat, err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: not a P-256 public key", ErrInvalidFormat)
	}
	return pub, nil
}

// ParsePublicKey parses a P-256 public key given either as a "PUBLIC KEY" PEM
// block or as base64(SPKI DER).
func ParsePublicKey(data string) (*ecdsa.PublicKey, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "-----BEGIN") {
		block, _ := pem.Decode([]byte(data))
		if block == nil || block.Type != "PUBLIC KEY" {
			return nil, fmt.Errorf("%w: failed to decode public key PEM", ErrInvalidFormat)
		}
		return ParsePublicKeyDER(block.Bytes)
	}

	der, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode public key: %w", ErrInvalidFormat, err)
	}
	return ParsePublicKeyDER(der)
}

// SignMessage signs SHA-256(message) and returns the ASN.1 DER signature.
func SignMessage(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig, nil
}

// VerifySignature checks an ASN.1 DER signature over SHA-256(message).
func VerifySignature(pub *ecdsa.PublicKey, message, sig []byte) bool {
	digest := sha256.Sum256(message)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
