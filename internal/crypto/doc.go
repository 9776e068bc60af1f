// Package crypto exposes the key material primitives used by enclave.
//
// Contents
//
//   - P-256 ECDH key generation (GenerateKeyPair)
//   - JWK-style public key encoding (EncodePublicKey, DecodePublicKey)
//   - Per-pair secret derivation: ECDH then HKDF-SHA256 (DeriveSecret)
//   - Short public-key fingerprints for manual verification (Fingerprint)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//
// # Notes
//
// Key pairs live for one login only. Nothing in this package persists keys.
// Fingerprints are advisory; no protocol decision depends on them.
package crypto
