package codec_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enclave/internal/codec"
	"enclave/internal/crypto"
	"enclave/internal/domain"
)

func pairSecrets(t *testing.T) (ab, ba domain.SharedSecret) {
	t.Helper()
	alice, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	ab, err = crypto.DeriveSecret(alice.Private, bob.Public)
	require.NoError(t, err)
	ba, err = crypto.DeriveSecret(bob.Private, alice.Public)
	require.NoError(t, err)
	return ab, ba
}

func TestEncryptDecrypt_RoundTripAcrossPeers(t *testing.T) {
	ab, ba := pairSecrets(t)

	for _, msg := range []string{"", "hi", "héllo wörld 🔐", string(bytes.Repeat([]byte("x"), 64*1024))} {
		ct, nonce, err := codec.Encrypt([]byte(msg), ab)
		require.NoError(t, err)
		require.Len(t, nonce, codec.NonceBytes)

		pt, err := codec.Decrypt(ct, nonce, ba)
		require.NoError(t, err)
		assert.Equal(t, msg, string(pt))
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	ab, _ := pairSecrets(t)

	ct1, n1, err := codec.Encrypt([]byte("same"), ab)
	require.NoError(t, err)
	ct2, n2, err := codec.Encrypt([]byte("same"), ab)
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, ct1, ct2)
}

func TestDecrypt_Failures(t *testing.T) {
	ab, _ := pairSecrets(t)
	other, _ := pairSecrets(t)

	ct, nonce, err := codec.Encrypt([]byte("secret"), ab)
	require.NoError(t, err)

	tampered := append([]byte(nil), ct...)
	tampered[0] ^= 0xff

	cases := []struct {
		name   string
		ct     []byte
		nonce  []byte
		secret domain.SharedSecret
	}{
		{"wrong key", ct, nonce, other},
		{"tampered", tampered, nonce, ab},
		{"short nonce", ct, nonce[:4], ab},
		{"truncated", ct[:3], nonce, ab},
		{"empty", nil, nonce, ab},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pt, err := codec.Decrypt(tc.ct, tc.nonce, tc.secret)
			assert.ErrorIs(t, err, codec.ErrDecryption)
			assert.Nil(t, pt)
		})
	}
}

func TestSealOpen_KeepsMetadataInCleartext(t *testing.T) {
	ab, ba := pairSecrets(t)
	meta := &domain.Metadata{ExpiresIn: 10, UnlocksAt: time.Now().Add(time.Minute).UnixMilli(), IsGroup: true}

	env, err := codec.Seal("peer-1", "meet at noon", ab, meta)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionID("peer-1"), env.To)
	assert.Same(t, meta, env.Metadata)
	assert.NotContains(t, env.Content, "noon")

	text, err := codec.Open(env, ba)
	require.NoError(t, err)
	assert.Equal(t, "meet at noon", text)
}

func TestOpen_MalformedEnvelope(t *testing.T) {
	ab, _ := pairSecrets(t)

	_, err := codec.Open(domain.Envelope{Content: "%%%", IV: "AAAAAAAAAAAAAAAA"}, ab)
	assert.ErrorIs(t, err, codec.ErrDecryption)

	env, err := codec.Seal("p", "x", ab, nil)
	require.NoError(t, err)
	env.IV = "not base64!"
	_, err = codec.Open(env, ab)
	assert.ErrorIs(t, err, codec.ErrDecryption)
}
