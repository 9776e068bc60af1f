package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"enclave/internal/domain"
)

// NonceBytes is the GCM nonce size.
const NonceBytes = 12

// ErrDecryption is the single failure value for tag mismatch and malformed
// input. Callers show it as a placeholder; it never aborts a session.
var ErrDecryption = errors.New("decryption failed")

func newAEAD(secret domain.SharedSecret) (cipher.AEAD, error) {
	block, err := aes.NewCipher(secret[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under secret with a fresh random nonce and returns
// the ciphertext (tag appended) and the nonce.
func Encrypt(plaintext []byte, secret domain.SharedSecret) (ciphertext, nonce []byte, err error) {
	aead, err := newAEAD(secret)
	if err != nil {
		return nil, nil, fmt.Errorf("aes-gcm: %w", err)
	}
	nonce = make([]byte, NonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("nonce: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens ciphertext. Any failure is reported as ErrDecryption.
func Decrypt(ciphertext, nonce []byte, secret domain.SharedSecret) ([]byte, error) {
	if len(nonce) != NonceBytes {
		return nil, fmt.Errorf("%w: nonce is %d bytes", ErrDecryption, len(nonce))
	}
	aead, err := newAEAD(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if len(ciphertext) < aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}
	pt, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return pt, nil
}

// Seal encrypts text into an Envelope addressed to to. meta is attached as
// is; nil means no display policy.
func Seal(to domain.ConnectionID, text string, secret domain.SharedSecret, meta *domain.Metadata) (domain.Envelope, error) {
	ct, nonce, err := Encrypt([]byte(text), secret)
	if err != nil {
		return domain.Envelope{}, err
	}
	return domain.Envelope{
		To:       to,
		Content:  base64.StdEncoding.EncodeToString(ct),
		IV:       base64.StdEncoding.EncodeToString(nonce),
		Metadata: meta,
	}, nil
}

// Open decodes and decrypts an Envelope's body.
func Open(env domain.Envelope, secret domain.SharedSecret) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(env.Content)
	if err != nil {
		return "", fmt.Errorf("%w: content: %v", ErrDecryption, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrDecryption, err)
	}
	pt, err := Decrypt(ct, nonce, secret)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
