package crypto_test

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enclave/internal/crypto"
	"enclave/internal/domain"
)

func mustPair(t *testing.T) crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func TestEncodeDecodePublicKey_RoundTrip(t *testing.T) {
	kp := mustPair(t)

	assert.Equal(t, domain.KeyTypeEC, kp.Public.Kty)
	assert.Equal(t, domain.CurveP256, kp.Public.Crv)

	pub, err := crypto.DecodePublicKey(kp.Public)
	require.NoError(t, err)
	assert.True(t, pub.Equal(kp.Private.PublicKey()))
	assert.Equal(t, kp.Public, crypto.EncodePublicKey(pub))
}

func TestDecodePublicKey_Rejects(t *testing.T) {
	good := mustPair(t).Public

	cases := map[string]domain.PublicKeyBlob{
		"empty":       {},
		"wrong curve": {Kty: "EC", Crv: "P-384", X: good.X, Y: good.Y},
		"wrong type":  {Kty: "OKP", Crv: "P-256", X: good.X, Y: good.Y},
		"bad base64":  {Kty: "EC", Crv: "P-256", X: "!!!", Y: good.Y},
		"short coord": {Kty: "EC", Crv: "P-256", X: "AAAA", Y: good.Y},
		"off curve":   {Kty: "EC", Crv: "P-256", X: good.X, Y: good.X},
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := crypto.DecodePublicKey(blob)
			assert.ErrorIs(t, err, crypto.ErrInvalidPublicKey)
		})
	}
}

func TestFingerprint_DeterministicAndDistinct(t *testing.T) {
	a := mustPair(t)
	b := mustPair(t)

	fa := crypto.Fingerprint(a.Public)
	assert.Equal(t, fa, crypto.Fingerprint(a.Public))
	assert.Equal(t, fa, a.Fingerprint())
	assert.NotEqual(t, fa, crypto.Fingerprint(b.Public))

	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{4}( · [0-9A-F]{4}){3}$`), fa.String())
}

func TestFingerprint_IgnoresNonCoordinateFields(t *testing.T) {
	blob := mustPair(t).Public
	other := blob
	other.Ext = !blob.Ext

	assert.Equal(t, crypto.Fingerprint(blob), crypto.Fingerprint(other))
}

func TestDeriveSecret_BothSidesAgree(t *testing.T) {
	alice := mustPair(t)
	bob := mustPair(t)

	ab, err := crypto.DeriveSecret(alice.Private, bob.Public)
	require.NoError(t, err)
	ba, err := crypto.DeriveSecret(bob.Private, alice.Public)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.NotEqual(t, domain.SharedSecret{}, ab)
}

func TestDeriveSecret_DistinctPeersDistinctSecrets(t *testing.T) {
	alice := mustPair(t)

	s1, err := crypto.DeriveSecret(alice.Private, mustPair(t).Public)
	require.NoError(t, err)
	s2, err := crypto.DeriveSecret(alice.Private, mustPair(t).Public)
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2)
}

func TestDeriveSecret_MalformedPeer(t *testing.T) {
	alice := mustPair(t)

	_, err := crypto.DeriveSecret(alice.Private, domain.PublicKeyBlob{Kty: "EC", Crv: "P-256", X: "bad"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, crypto.ErrKeyDerivation))
	assert.True(t, errors.Is(err, crypto.ErrInvalidPublicKey))

	_, err = crypto.DeriveSecret(nil, alice.Public)
	assert.ErrorIs(t, err, crypto.ErrKeyDerivation)
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	crypto.Wipe(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)

	s := domain.SharedSecret{9, 9, 9}
	crypto.WipeSecret(&s)
	assert.Equal(t, domain.SharedSecret{}, s)

	crypto.Wipe(nil)
	crypto.WipeSecret(nil)
}
