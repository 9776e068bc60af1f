package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"enclave/internal/domain"
)

// KeyPair is one login's ECDH key pair. Public is the wire form of
// Private.PublicKey().
type KeyPair struct {
	Private *ecdh.PrivateKey
	Public  domain.PublicKeyBlob
}

// GenerateKeyPair returns a fresh P-256 key pair.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate p-256 key: %w", err)
	}
	return KeyPair{Private: priv, Public: EncodePublicKey(priv.PublicKey())}, nil
}

// Fingerprint returns the fingerprint of the pair's public key.
func (k KeyPair) Fingerprint() domain.Fingerprint { return Fingerprint(k.Public) }
