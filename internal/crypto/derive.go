package crypto

import (
	"crypto/ecdh"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"enclave/internal/domain"
)

// secretInfo binds derived keys to their single use.
var secretInfo = []byte("enclave/v1 message key aes-256-gcm")

// ErrKeyDerivation wraps every failure to derive a shared secret.
var ErrKeyDerivation = errors.New("key derivation failed")

// DeriveSecret runs P-256 ECDH between priv and peer and stretches the result
// with HKDF-SHA256 into a 32-byte AES key. Both sides derive the same secret
// from their own private key and the other's public key.
func DeriveSecret(priv *ecdh.PrivateKey, peer domain.PublicKeyBlob) (domain.SharedSecret, error) {
	var out domain.SharedSecret
	if priv == nil {
		return out, fmt.Errorf("%w: no private key", ErrKeyDerivation)
	}
	pub, err := DecodePublicKey(peer)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrKeyDerivation, err)
	}
	shared, err := priv.ECDH(pub)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrKeyDerivation, err)
	}
	defer Wipe(shared)

	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, secretInfo), out[:]); err != nil {
		return domain.SharedSecret{}, fmt.Errorf("%w: hkdf: %w", ErrKeyDerivation, err)
	}
	return out, nil
}
