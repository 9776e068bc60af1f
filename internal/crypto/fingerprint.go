package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"enclave/internal/domain"
)

const (
	fingerprintBytes = 8
	groupSeparator   = " · "
)

// Fingerprint returns a short human-comparable digest of a public key.
//
// It hashes the canonical "x|y" string with SHA-256, keeps the first 8 bytes
// and renders them as four upper-case hex groups, e.g. "A1B2 · C3D4 · E5F6 · 0788".
func Fingerprint(pub domain.PublicKeyBlob) domain.Fingerprint {
	sum := sha256.Sum256([]byte(pub.Canonical()))
	digits := strings.ToUpper(hex.EncodeToString(sum[:fingerprintBytes]))

	groups := make([]string, 0, fingerprintBytes/2)
	for i := 0; i < len(digits); i += 4 {
		groups = append(groups, digits[i:i+4])
	}
	return domain.Fingerprint(strings.Join(groups, groupSeparator))
}
