package crypto

import (
	"crypto/ecdh"
	"encoding/base64"
	"errors"
	"fmt"

	"enclave/internal/domain"
)

const coordBytes = 32

// ErrInvalidPublicKey is returned for blobs that are not a P-256 point.
var ErrInvalidPublicKey = errors.New("invalid public key")

// EncodePublicKey converts pub into its JWK-style blob.
func EncodePublicKey(pub *ecdh.PublicKey) domain.PublicKeyBlob {
	// Uncompressed SEC 1 form: 0x04 || X || Y.
	raw := pub.Bytes()
	return domain.PublicKeyBlob{
		Kty: domain.KeyTypeEC,
		Crv: domain.CurveP256,
		X:   base64.RawURLEncoding.EncodeToString(raw[1 : 1+coordBytes]),
		Y:   base64.RawURLEncoding.EncodeToString(raw[1+coordBytes:]),
		Ext: true,
	}
}

// DecodePublicKey parses blob and checks the point is on the curve.
func DecodePublicKey(blob domain.PublicKeyBlob) (*ecdh.PublicKey, error) {
	if blob.Kty != domain.KeyTypeEC || blob.Crv != domain.CurveP256 {
		return nil, fmt.Errorf("%w: want %s/%s, got %q/%q",
			ErrInvalidPublicKey, domain.KeyTypeEC, domain.CurveP256, blob.Kty, blob.Crv)
	}
	x, err := decodeCoord(blob.X)
	if err != nil {
		return nil, fmt.Errorf("%w: x: %v", ErrInvalidPublicKey, err)
	}
	y, err := decodeCoord(blob.Y)
	if err != nil {
		return nil, fmt.Errorf("%w: y: %v", ErrInvalidPublicKey, err)
	}

	raw := make([]byte, 0, 1+2*coordBytes)
	raw = append(raw, 0x04)
	raw = append(raw, x...)
	raw = append(raw, y...)

	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

func decodeCoord(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != coordBytes {
		return nil, fmt.Errorf("want %d bytes, got %d", coordBytes, len(b))
	}
	return b, nil
}
