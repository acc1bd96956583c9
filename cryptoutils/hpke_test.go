package cryptoutils

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"io"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20"
)

// chachaReader streams the keystream of a ChaCha block function with the
// given round count, a zero stream id and a 64-bit block counter. With 8
// rounds and a key from seedKey it matches rand_chacha's ChaCha8Rng.
type chachaReader struct {
	state  [16]uint32
	rounds int
	block  [64]byte
	off    int
}

func newChaChaReader(key [8]uint32, rounds int) *chachaReader {
	r := &chachaReader{rounds: rounds, off: 64}
	r.state[0], r.state[1], r.state[2], r.state[3] = 0x61707865, 0x3320646e, 0x79622d32, 0x6b206574
	copy(r.state[4:12], key[:])
	return r
}

// seedKey expands a u64 seed into a key with PCG32, as rand_core's
// SeedableRng::seed_from_u64 does.
func seedKey(seed uint64) [8]uint32 {
	const (
		pcgMul = 6364136223846793005
		pcgInc = 11634580027462260723
	)
	var key [8]uint32
	state := seed
	for i := range key {
		state = state*pcgMul + pcgInc
		xorshifted := uint32(((state >> 18) ^ state) >> 27)
		key[i] = bits.RotateLeft32(xorshifted, -int(state>>59))
	}
	return key
}

func (r *chachaReader) Read(p []byte) (int, error) {
	for n := 0; n < len(p); {
		if r.off == len(r.block) {
			r.refill()
		}
		c := copy(p[n:], r.block[r.off:])
		n += c
		r.off += c
	}
	return len(p), nil
}

func (r *chachaReader) refill() {
	x := r.state
	for i := 0; i < r.rounds; i += 2 {
		quarterRound(&x, 0, 4, 8, 12)
		quarterRound(&x, 1, 5, 9, 13)
		quarterRound(&x, 2, 6, 10, 14)
		quarterRound(&x, 3, 7, 11, 15)
		quarterRound(&x, 0, 5, 10, 15)
		quarterRound(&x, 1, 6, 11, 12)
		quarterRound(&x, 2, 7, 8, 13)
		quarterRound(&x, 3, 4, 9, 14)
	}
	for i := range x {
		binary.LittleEndian.PutUint32(r.block[4*i:], x[i]+r.state[i])
	}
	r.off = 0
	r.state[12]++
	if r.state[12] == 0 {
		r.state[13]++
	}
}

func quarterRound(x *[16]uint32, a, b, c, d int) {
	x[a] += x[b]
	x[d] = bits.RotateLeft32(x[d]^x[a], 16)
	x[c] += x[d]
	x[b] = bits.RotateLeft32(x[b]^x[c], 12)
	x[a] += x[b]
	x[d] = bits.RotateLeft32(x[d]^x[a], 8)
	x[c] += x[d]
	x[b] = bits.RotateLeft32(x[b]^x[c], 7)
}

func mustHex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// RFC 9180 A.5.1: DHKEM(P-256, HKDF-SHA256), HKDF-SHA256, ChaCha20Poly1305, base mode.
const (
	vectorIkmR = "61092f3f56994dd424405899154a9918353e3e008171517ad576b900ddb275e7"
	vectorSPKI = "MFkwEwYHKoZIzj0CAQYIKoZIzj0DAQcDQgAEppe//elAXJkog8XEOdbMNYFwtRr3KBIzOwFWIdwPQLrZu3JvaKXAE4BqeQ7HFquGafhPa2lFlsKYfPNbq6KgBg=="
	vectorEnc  = "04c07836a0206e04e31d8ae99bfd549380b072a1b1b82e563c935c095827824fc1559eac6fb9e3c70cd3193968994e7fe9781aa103f5b50e934b5b2f387e381291"
	vectorInfo = "4f6465206f6e2061204772656369616e2055726e"
	vectorAAD  = "436f756e742d30"
	vectorCT   = "6469c41c5c81d3aa85432531ecf6460ec945bde1eb428cb2fedf7a29f5a685b4ccb0d057f03ea2952a27bb458b"
	vectorPT   = "4265617574792069732074727574682c20747275746820626561757479"
)

func TestHPKEKnownAnswer(t *testing.T) {
	recipient, err := NewHPKERecipientFromReader(bytes.NewReader(mustHex(t, vectorIkmR)))
	require.NoError(t, err)

	publicKey, err := recipient.PublicKey()
	require.NoError(t, err)
	require.Equal(t, vectorSPKI, publicKey)

	plaintext, err := openSealed(recipient.sk, mustHex(t, vectorEnc), mustHex(t, vectorCT),
		mustHex(t, vectorInfo), mustHex(t, vectorAAD))
	require.NoError(t, err)
	require.Equal(t, mustHex(t, vectorPT), plaintext)
}

func TestHPKEPublicKeyStructure(t *testing.T) {
	recipient, err := NewHPKERecipient()
	require.NoError(t, err)

	publicKey, err := recipient.PublicKey()
	require.NoError(t, err)

	der, err := base64.StdEncoding.DecodeString(publicKey)
	require.NoError(t, err)
	require.Len(t, der, 91)
	require.Equal(t, byte(0x30), der[0])
	require.Equal(t, byte(0x59), der[1])

	// SPKI round trip
	pub, err := ParsePublicKeyDER(der)
	require.NoError(t, err)
	reencoded, err := MarshalPublicKey(pub)
	require.NoError(t, err)
	require.Equal(t, der, reencoded)
}

func TestChaChaReaderMatchesChaCha20(t *testing.T) {
	var key [8]uint32
	for i := range key {
		key[i] = uint32(i) * 0x01010101
	}
	var keyBytes [chacha20.KeySize]byte
	for i, w := range key {
		binary.LittleEndian.PutUint32(keyBytes[4*i:], w)
	}

	want := make([]byte, 200)
	stream, err := chacha20.NewUnauthenticatedCipher(keyBytes[:], make([]byte, chacha20.NonceSize))
	require.NoError(t, err)
	stream.XORKeyStream(want, want)

	got := make([]byte, len(want))
	_, err = io.ReadFull(newChaChaReader(key, 20), got)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestHPKESeededPublicKey(t *testing.T) {
	tests := []struct {
		name     string
		seed     uint64
		expected string
	}{
		{"zero", 0, "MFkwEwYHKoZIzj0CAQYIKoZIzj0DAQcDQgAECT+o7IjvJ+4MjHTU51k5HLoXT9WKzjJKbqkGA3bcvx+ESEbM/wtxRDsptOMcsP+Vn60KdYOjIyLAU/P96CB2lA=="},
		{"one", 1, "MFkwEwYHKoZIzj0CAQYIKoZIzj0DAQcDQgAE5C1LvDxhkHINqB7lRM47O+sUIKTs/2YiPoNOQaRH2tnkhUjRC1x+g9yo0UZr/HzdJKNMAkSXRovCzovSr0jL3A=="},
		{"ten", 10, "MFkwEwYHKoZIzj0CAQYIKoZIzj0DAQcDQgAECh6n0GOhDIloBuKZWx2/tPG3rX6oNuQdzH666gAYINFrZcC+GB/zICKGq+f7iXeobumsQiz38X8KKmOQoYkryA=="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipient, err := NewHPKERecipientFromReader(newChaChaReader(seedKey(tt.seed), 8))
			require.NoError(t, err)
			publicKey, err := recipient.PublicKey()
			require.NoError(t, err)
			require.Equal(t, tt.expected, publicKey)
		})
	}
}

func TestHPKEFreshKeysDiffer(t *testing.T) {
	a, err := NewHPKERecipient()
	require.NoError(t, err)
	b, err := NewHPKERecipient()
	require.NoError(t, err)

	pa, err := a.PublicKey()
	require.NoError(t, err)
	pb, err := b.PublicKey()
	require.NoError(t, err)
	require.NotEqual(t, pa, pb)
}

func TestHPKEDecryptPrivateKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	recipient, err := NewHPKERecipient()
	require.NoError(t, err)
	publicKey, err := recipient.PublicKey()
	require.NoError(t, err)

	enc, ct, err := SealPrivateKey(publicKey, key)
	require.NoError(t, err)

	decrypted, err := recipient.Decrypt(enc, ct)
	require.NoError(t, err)
	require.True(t, key.Equal(decrypted))

	// The ephemeral key is gone after one use
	_, err = recipient.Decrypt(enc, ct)
	require.ErrorIs(t, err, ErrRecipientUsed)
}

func TestHPKESealToSEC1Point(t *testing.T) {
	recipient, err := NewHPKERecipient()
	require.NoError(t, err)
	point, err := recipient.PublicKeyPoint()
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(point)
	require.NoError(t, err)
	require.Len(t, raw, 65)
	require.Equal(t, byte(0x04), raw[0])

	enc, ct, err := Seal(point, []byte("0xdeadbeef"))
	require.NoError(t, err)

	plaintext, err := recipient.DecryptRaw(enc, ct)
	require.NoError(t, err)
	require.Equal(t, []byte("0xdeadbeef"), plaintext)
}

func TestHPKEDecryptFailures(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	other, err := NewHPKERecipient()
	require.NoError(t, err)
	otherPublicKey, err := other.PublicKey()
	require.NoError(t, err)
	wrongEnc, wrongCT, err := SealPrivateKey(otherPublicKey, key)
	require.NoError(t, err)

	notAKey, err := NewHPKERecipient()
	require.NoError(t, err)
	notAKeyPublic, err := notAKey.PublicKey()
	require.NoError(t, err)

	testCases := []struct {
		name  string
		setup func(t *testing.T, publicKey string) (string, string)
		want  error
	}{
		{
			name: "invalid encapsulated key base64",
			setup: func(t *testing.T, _ string) (string, string) {
				return "not base64!!", base64.StdEncoding.EncodeToString([]byte("x"))
			},
			want: ErrInvalidFormat,
		},
		{
			name: "encapsulated key is not a curve point",
			setup: func(t *testing.T, _ string) (string, string) {
				return base64.StdEncoding.EncodeToString(make([]byte, 65)), base64.StdEncoding.EncodeToString([]byte("x"))
			},
			want: ErrInvalidFormat,
		},
		{
			name: "invalid ciphertext base64",
			setup: func(t *testing.T, _ string) (string, string) {
				return wrongEnc, "%%%"
			},
			want: ErrInvalidFormat,
		},
		{
			name: "sealed to another recipient",
			setup: func(t *testing.T, _ string) (string, string) {
				return wrongEnc, wrongCT
			},
			want: ErrHpkeDecryption,
		},
		{
			name: "tampered ciphertext",
			setup: func(t *testing.T, publicKey string) (string, string) {
				enc, ct, err := SealPrivateKey(publicKey, key)
				require.NoError(t, err)
				raw, err := base64.StdEncoding.DecodeString(ct)
				require.NoError(t, err)
				raw[0] ^= 0xff
				return enc, base64.StdEncoding.EncodeToString(raw)
			},
			want: ErrHpkeDecryption,
		},
		{
			name: "plaintext is not a private key",
			setup: func(t *testing.T, publicKey string) (string, string) {
				enc, ct, err := Seal(publicKey, []byte(notAKeyPublic))
				require.NoError(t, err)
				return enc, ct
			},
			want: ErrInvalidFormat,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recipient, err := NewHPKERecipient()
			require.NoError(t, err)
			publicKey, err := recipient.PublicKey()
			require.NoError(t, err)

			enc, ct := tc.setup(t, publicKey)
			_, err = recipient.Decrypt(enc, ct)
			require.ErrorIs(t, err, tc.want)
		})
	}
}
