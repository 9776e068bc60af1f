package identity

import (
	"crypto/ecdh"
	"sync"

	"enclave/internal/crypto"
	"enclave/internal/domain"
	"enclave/internal/secrets"
)

// Service holds the current key pair and the secrets derived from it.
type Service struct {
	mu       sync.RWMutex
	pair     crypto.KeyPair
	cache    *secrets.Cache
	generate func() (crypto.KeyPair, error)
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator replaces crypto.GenerateKeyPair.
func WithGenerator(fn func() (crypto.KeyPair, error)) Option {
	return func(s *Service) { s.generate = fn }
}

// New generates the login key pair.
func New(opts ...Option) (*Service, error) {
	s := &Service{generate: crypto.GenerateKeyPair}
	for _, o := range opts {
		o(s)
	}
	pair, err := s.generate()
	if err != nil {
		return nil, err
	}
	s.pair = pair
	s.cache = secrets.New(pair.Private)
	return s, nil
}

// Regenerate replaces the key pair and drops every cached secret. The caller
// re-announces the new public key with a join.
func (s *Service) Regenerate() (domain.Fingerprint, error) {
	pair, err := s.generate()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()

	s.cache.Reset(pair.Private)
	return pair.Fingerprint(), nil
}

// PublicKey returns the blob to announce.
func (s *Service) PublicKey() domain.PublicKeyBlob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.Public
}

// Fingerprint returns the fingerprint of the current public key.
func (s *Service) Fingerprint() domain.Fingerprint {
	return crypto.Fingerprint(s.PublicKey())
}

// Private returns the current private key.
func (s *Service) Private() *ecdh.PrivateKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.Private
}

// Secrets returns the cache of secrets derived from the current key.
func (s *Service) Secrets() *secrets.Cache { return s.cache }
