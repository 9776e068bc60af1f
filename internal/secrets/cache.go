// Package secrets caches per-peer shared secrets on the client.
//
// Entries are keyed by the peer's connection id and remember which public key
// they were derived from, so a reconnect (new id) or a key rotation (same id,
// new key) never reuses a stale secret. Regenerating the local key pair
// resets the whole cache.
package secrets

import (
	"crypto/ecdh"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"enclave/internal/crypto"
	"enclave/internal/domain"
)

// DeriveFunc computes the secret for one pair of keys.
type DeriveFunc func(priv *ecdh.PrivateKey, peer domain.PublicKeyBlob) (domain.SharedSecret, error)

type entry struct {
	key    string
	secret *domain.SharedSecret
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	priv    *ecdh.PrivateKey
	gen     uint64
	entries map[domain.ConnectionID]entry

	group  singleflight.Group
	derive DeriveFunc
}

// Option configures a Cache.
type Option func(*Cache)

// WithDeriveFunc replaces crypto.DeriveSecret.
func WithDeriveFunc(fn DeriveFunc) Option {
	return func(c *Cache) { c.derive = fn }
}

// New returns an empty cache deriving from priv.
func New(priv *ecdh.PrivateKey, opts ...Option) *Cache {
	c := &Cache{
		priv:    priv,
		entries: make(map[domain.ConnectionID]entry),
		derive:  crypto.DeriveSecret,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the secret shared with peer, deriving it on first use.
// Concurrent first lookups for the same peer and key share one derivation.
func (c *Cache) Get(peer domain.Identity) (domain.SharedSecret, error) {
	canon := peer.PublicKey.Canonical()

	c.mu.Lock()
	if e, ok := c.entries[peer.ID]; ok && e.key == canon {
		c.mu.Unlock()
		return *e.secret, nil
	}
	priv, gen := c.priv, c.gen
	c.mu.Unlock()

	flight := fmt.Sprintf("%d|%s|%s", gen, peer.ID, canon)
	v, err, _ := c.group.Do(flight, func() (any, error) {
		s, err := c.derive(priv, peer.PublicKey)
		if err != nil {
			return nil, err
		}
		c.store(gen, peer.ID, canon, s)
		return s, nil
	})
	if err != nil {
		return domain.SharedSecret{}, err
	}
	return v.(domain.SharedSecret), nil
}

func (c *Cache) store(gen uint64, id domain.ConnectionID, canon string, s domain.SharedSecret) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A Reset raced this derivation; the result belongs to a dead key pair.
	if gen != c.gen {
		return
	}
	if old, ok := c.entries[id]; ok {
		crypto.WipeSecret(old.secret)
	}
	c.entries[id] = entry{key: canon, secret: &s}
}

// Forget drops the secrets cached for ids.
func (c *Cache) Forget(ids ...domain.ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if e, ok := c.entries[id]; ok {
			crypto.WipeSecret(e.secret)
			delete(c.entries, id)
		}
	}
}

// Retain drops every entry whose id is not in live.
func (c *Cache) Retain(live map[domain.ConnectionID]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if !live[id] {
			crypto.WipeSecret(e.secret)
			delete(c.entries, id)
		}
	}
}

// Reset switches to a new private key and drops everything derived from the
// old one, including derivations still in flight.
func (c *Cache) Reset(priv *ecdh.PrivateKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		crypto.WipeSecret(e.secret)
		delete(c.entries, id)
	}
	c.priv = priv
	c.gen++
}

// Len reports how many secrets are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
