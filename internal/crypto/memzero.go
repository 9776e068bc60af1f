package crypto

import (
	"crypto/subtle"
	"runtime"

	"enclave/internal/domain"
)

// Wipe zeroes b in place. Best effort: Go gives no guarantee the bytes were
// not copied elsewhere first.
//
//go:noinline
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.XORBytes(b, b, b)
	runtime.KeepAlive(&b)
}

// WipeSecret zeroes the secret s points at.
func WipeSecret(s *domain.SharedSecret) {
	if s != nil {
		Wipe(s[:])
	}
}
