// Package store provides file-based persistence for the enclave client.
//
// The only thing a client keeps between sessions is its known-keys book:
// the last public key each username announced, and whether the user has
// verified its fingerprint. Key pairs are never written to disk.
//
// Files are written atomically (temp file then rename) with mode 0600 under
// the configured home directory. When a passphrase is set the book is sealed
// with XChaCha20-Poly1305 under an scrypt-stretched key.
package store
