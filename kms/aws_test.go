package kms

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	awskms "github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/stretchr/testify/require"
)

// fakeKMS signs digests with a local key the way KMS does for ECC_NIST_P256.
type fakeKMS struct {
	kmsiface.KMSAPI
	key            *ecdsa.PrivateKey
	keySpec        string
	err            error
	publicKeyCalls int
	lastSign       *awskms.SignInput
}

func newFakeKMS(t *testing.T) *fakeKMS {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &fakeKMS{key: key, keySpec: awskms.KeySpecEccNistP256}
}

func (f *fakeKMS) GetPublicKeyWithContext(_ aws.Context, in *awskms.GetPublicKeyInput, _ ...request.Option) (*awskms.GetPublicKeyOutput, error) {
	f.publicKeyCalls++
	if f.err != nil {
		return nil, f.err
	}
	der, err := x509.MarshalPKIXPublicKey(&f.key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &awskms.GetPublicKeyOutput{
		KeyId:     in.KeyId,
		KeySpec:   aws.String(f.keySpec),
		PublicKey: der,
	}, nil
}

func (f *fakeKMS) SignWithContext(_ aws.Context, in *awskms.SignInput, _ ...request.Option) (*awskms.SignOutput, error) {
	f.lastSign = in
	if f.err != nil {
		return nil, f.err
	}
	sig, err := ecdsa.SignASN1(rand.Reader, f.key, in.Message)
	if err != nil {
		return nil, err
	}
	return &awskms.SignOutput{KeyId: in.KeyId, Signature: sig}, nil
}

func TestAWSKeySign(t *testing.T) {
	fake := newFakeKMS(t)
	key := NewAWSKey(fake, "alias/test", nil)

	message := []byte(`{"body":{},"headers":{"privy-app-id":"app"},"method":"POST","url":"https://api.privy.io/v1/wallets","version":1}`)
	sig, err := key.Sign(context.Background(), message)
	require.NoError(t, err)

	digest := sha256.Sum256(message)
	require.Equal(t, digest[:], fake.lastSign.Message)
	require.Equal(t, awskms.MessageTypeDigest, aws.StringValue(fake.lastSign.MessageType))
	require.Equal(t, awskms.SigningAlgorithmSpecEcdsaSha256, aws.StringValue(fake.lastSign.SigningAlgorithm))
	require.Equal(t, "alias/test", aws.StringValue(fake.lastSign.KeyId))

	pub, err := key.PublicKey(context.Background())
	require.NoError(t, err)
	require.True(t, cryptoutils.VerifySignature(pub, message, sig))
}

func TestAWSKeyCachesPublicKey(t *testing.T) {
	fake := newFakeKMS(t)
	key := NewAWSKey(fake, "key-id", nil)

	first, err := key.PublicKey(context.Background())
	require.NoError(t, err)
	second, err := key.PublicKey(context.Background())
	require.NoError(t, err)

	require.True(t, first.Equal(second))
	require.True(t, first.Equal(&fake.key.PublicKey))
	require.Equal(t, 1, fake.publicKeyCalls)
}

func TestAWSKeyErrors(t *testing.T) {
	t.Run("kms failure", func(t *testing.T) {
		fake := newFakeKMS(t)
		fake.err = errors.New("throttled")
		key := NewAWSKey(fake, "key-id", nil)

		_, err := key.Sign(context.Background(), []byte("msg"))
		require.ErrorIs(t, err, ErrKMSUnavailable)
		_, err = key.PublicKey(context.Background())
		require.ErrorIs(t, err, ErrKMSUnavailable)
	})

	t.Run("wrong key spec", func(t *testing.T) {
		fake := newFakeKMS(t)
		fake.keySpec = awskms.KeySpecEccSecgP256k1
		key := NewAWSKey(fake, "key-id", nil)

		_, err := key.PublicKey(context.Background())
		require.ErrorIs(t, err, cryptoutils.ErrInvalidFormat)
	})
}
