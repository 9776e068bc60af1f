package secrets_test

import (
	"crypto/ecdh"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enclave/internal/crypto"
	"enclave/internal/domain"
	"enclave/internal/secrets"
)

func newPair(t *testing.T) crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func countingDerive(n *atomic.Int32) secrets.DeriveFunc {
	return func(priv *ecdh.PrivateKey, peer domain.PublicKeyBlob) (domain.SharedSecret, error) {
		n.Add(1)
		return crypto.DeriveSecret(priv, peer)
	}
}

func TestGet_DerivesOnceThenCaches(t *testing.T) {
	me, bob := newPair(t), newPair(t)
	var calls atomic.Int32
	c := secrets.New(me.Private, secrets.WithDeriveFunc(countingDerive(&calls)))

	peer := domain.Identity{ID: "b1", Username: "bob", PublicKey: bob.Public}
	s1, err := c.Get(peer)
	require.NoError(t, err)
	s2, err := c.Get(peer)
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, c.Len())

	want, err := crypto.DeriveSecret(bob.Private, me.Public)
	require.NoError(t, err)
	assert.Equal(t, want, s1)
}

func TestGet_RotatedKeyOnSameConnectionRederives(t *testing.T) {
	me := newPair(t)
	var calls atomic.Int32
	c := secrets.New(me.Private, secrets.WithDeriveFunc(countingDerive(&calls)))

	old, err := c.Get(domain.Identity{ID: "b1", PublicKey: newPair(t).Public})
	require.NoError(t, err)
	rotated, err := c.Get(domain.Identity{ID: "b1", PublicKey: newPair(t).Public})
	require.NoError(t, err)

	assert.NotEqual(t, old, rotated)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestGet_ReconnectIsANewEntry(t *testing.T) {
	me, bob := newPair(t), newPair(t)
	var calls atomic.Int32
	c := secrets.New(me.Private, secrets.WithDeriveFunc(countingDerive(&calls)))

	_, err := c.Get(domain.Identity{ID: "b1", PublicKey: bob.Public})
	require.NoError(t, err)
	_, err = c.Get(domain.Identity{ID: "b2", PublicKey: bob.Public})
	require.NoError(t, err)

	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestGet_MalformedKeyIsNotCached(t *testing.T) {
	c := secrets.New(newPair(t).Private)

	_, err := c.Get(domain.Identity{ID: "c1", PublicKey: domain.PublicKeyBlob{Kty: "EC", Crv: "P-256", X: "x", Y: "y"}})
	assert.ErrorIs(t, err, crypto.ErrKeyDerivation)
	assert.Equal(t, 0, c.Len())
}

func TestGet_ConcurrentFirstUseConverges(t *testing.T) {
	me, bob := newPair(t), newPair(t)
	var calls atomic.Int32
	c := secrets.New(me.Private, secrets.WithDeriveFunc(countingDerive(&calls)))
	peer := domain.Identity{ID: "b1", PublicKey: bob.Public}

	const n = 32
	results := make([]domain.SharedSecret, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Get(peer)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Equal(t, results[0], s)
	}
	assert.Equal(t, 1, c.Len())
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestReset_DropsEverythingIncludingInFlight(t *testing.T) {
	me, bob := newPair(t), newPair(t)
	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(priv *ecdh.PrivateKey, peer domain.PublicKeyBlob) (domain.SharedSecret, error) {
		close(started)
		<-release
		return crypto.DeriveSecret(priv, peer)
	}
	c := secrets.New(me.Private, secrets.WithDeriveFunc(slow))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Get(domain.Identity{ID: "b1", PublicKey: bob.Public})
		assert.NoError(t, err)
	}()

	<-started
	c.Reset(newPair(t).Private)
	close(release)
	<-done

	assert.Equal(t, 0, c.Len())
}

func TestReset_NewKeyGivesNewSecret(t *testing.T) {
	me, bob := newPair(t), newPair(t)
	c := secrets.New(me.Private)
	peer := domain.Identity{ID: "b1", PublicKey: bob.Public}

	before, err := c.Get(peer)
	require.NoError(t, err)

	fresh := newPair(t)
	c.Reset(fresh.Private)
	after, err := c.Get(peer)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
	want, err := crypto.DeriveSecret(bob.Private, fresh.Public)
	require.NoError(t, err)
	assert.Equal(t, want, after)
}

func TestForgetAndRetain(t *testing.T) {
	me := newPair(t)
	c := secrets.New(me.Private)
	for _, id := range []domain.ConnectionID{"a", "b", "c"} {
		_, err := c.Get(domain.Identity{ID: id, PublicKey: newPair(t).Public})
		require.NoError(t, err)
	}

	c.Forget("a", "missing")
	assert.Equal(t, 2, c.Len())

	c.Retain(map[domain.ConnectionID]bool{"b": true})
	assert.Equal(t, 1, c.Len())
}
