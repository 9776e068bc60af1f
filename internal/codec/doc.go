// Package codec seals and opens message bodies with AES-256-GCM.
//
// Every Encrypt draws a fresh 96-bit nonce from crypto/rand; there is no API
// that accepts a caller-chosen nonce. Metadata is not part of the ciphertext:
// it rides next to it in cleartext so display policy can be applied without
// the key.
package codec
