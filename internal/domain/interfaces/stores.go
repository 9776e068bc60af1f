package interfaces

import domaintypes "enclave/internal/domain/types"

// KnownKey is the last public key seen for a username.
type KnownKey struct {
	PublicKey domaintypes.PublicKeyBlob `json:"publicKey"`
	Verified  bool                      `json:"verified,omitempty"`
	FirstSeen int64                     `json:"firstSeen"`
	Changed   int64                     `json:"changed,omitempty"`
}

// KnownKeyStore remembers which key each username last announced, so key
// rotation can be detected across sessions.
type KnownKeyStore interface {
	LoadKnownKeys() (map[domaintypes.Username]KnownKey, error)
	SaveKnownKeys(keys map[domaintypes.Username]KnownKey) error
}
