package kms

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	awskms "github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/interfaces"
)

var _ interfaces.Key = (*AWSKey)(nil)

// ErrKMSUnavailable is returned when the KMS call itself fails.
var ErrKMSUnavailable = errors.New("kms unavailable")

// AWSKey is an authorization key held in AWS KMS.
type AWSKey struct {
	client kmsiface.KMSAPI
	keyID  string
	log    *slog.Logger

	mu        sync.Mutex
	publicKey *ecdsa.PublicKey
}

// NewAWSKey creates a key backed by the KMS key id, ARN or alias.
func NewAWSKey(client kmsiface.KMSAPI, keyID string, log *slog.Logger) *AWSKey {
	if log == nil {
		log = slog.Default()
	}
	return &AWSKey{client: client, keyID: keyID, log: log}
}

func (k *AWSKey) PublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.publicKey != nil {
		return k.publicKey, nil
	}

	out, err := k.client.GetPublicKeyWithContext(ctx, &awskms.GetPublicKeyInput{
		KeyId: aws.String(k.keyID),
	})
	if err != nil {
		k.log.Error("failed to fetch public key from KMS", slog.String("key_id", k.keyID), "err", err)
		return nil, fmt.Errorf("%w: %w", ErrKMSUnavailable, err)
	}
	if spec := aws.StringValue(out.KeySpec); spec != "" && spec != awskms.KeySpecEccNistP256 {
		return nil, fmt.Errorf("%w: unsupported key spec %s", cryptoutils.ErrInvalidFormat, spec)
	}

	pub, err := cryptoutils.ParsePublicKeyDER(out.PublicKey)
	if err != nil {
		return nil, err
	}
	k.publicKey = pub
	return pub, nil
}

// Sign hashes message and has KMS sign the digest.
func (k *AWSKey) Sign(ctx context.Context, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	out, err := k.client.SignWithContext(ctx, &awskms.SignInput{
		KeyId:            aws.String(k.keyID),
		Message:          digest[:],
		MessageType:      aws.String(awskms.MessageTypeDigest),
		SigningAlgorithm: aws.String(awskms.SigningAlgorithmSpecEcdsaSha256),
	})
	if err != nil {
		k.log.Error("KMS sign failed", slog.String("key_id", k.keyID), "err", err)
		return nil, fmt.Errorf("%w: %w", ErrKMSUnavailable, err)
	}
	if len(out.Signature) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrKMSUnavailable)
	}
	return out.Signature, nil
}

func (k *AWSKey) String() string {
	return fmt.Sprintf("AWSKey(%s)", k.keyID)
}
