package types

// Key type and curve names used in PublicKeyBlob.
const (
	KeyTypeEC    = "EC"
	CurveP256    = "P-256"
	SecretLength = 32
)

// PublicKeyBlob is the JWK-style wire form of a P-256 public key. X and Y are
// unpadded base64url coordinates so they can be read independently.
type PublicKeyBlob struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	Ext bool   `json:"ext,omitempty"`
}

// Canonical returns the "x|y" coordinate string that fingerprints hash.
func (b PublicKeyBlob) Canonical() string { return b.X + "|" + b.Y }

// IsZero reports whether no key was supplied.
func (b PublicKeyBlob) IsZero() bool { return b.X == "" && b.Y == "" }

// SharedSecret is a symmetric AES-256 key for exactly one pair of keys.
type SharedSecret [SecretLength]byte

// Slice returns the key as a []byte.
func (s SharedSecret) Slice() []byte { return s[:] }
