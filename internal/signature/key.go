package signature

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mattjoyce/wordbot/internal/hexkey"
	"github.com/zeebo/blake3"
)

const (
	// KeySize is the length in bytes of a verifying key.
	KeySize = ed25519.PublicKeySize
	// SignatureSize is the length in bytes of a request signature.
	SignatureSize = ed25519.SignatureSize
)

// ErrInvalidKey is returned when key material does not describe an Ed25519 public key.
var ErrInvalidKey = errors.New("signature: invalid verifying key")

// VerifyingKey is the public half of the platform's signing key pair.
// It is built once at startup and only read afterwards; the zero value
// rejects every signature.
type VerifyingKey struct {
	key ed25519.PublicKey
}

// NewVerifyingKey validates raw key bytes and returns an owned copy.
// The bytes must be a canonical encoding of a point on the curve.
func NewVerifyingKey(b []byte) (VerifyingKey, error) {
	if len(b) != KeySize {
		return VerifyingKey{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(b), KeySize)
	}
	if _, err := new(edwards25519.Point).SetBytes(b); err != nil {
		return VerifyingKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	key := make(ed25519.PublicKey, KeySize)
	copy(key, b)
	return VerifyingKey{key: key}, nil
}

// ParseVerifyingKey decodes a 64-character hex string into a VerifyingKey.
func ParseVerifyingKey(s string) (VerifyingKey, error) {
	b, err := hexkey.Decode(s, KeySize)
	if err != nil {
		return VerifyingKey{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return NewVerifyingKey(b)
}

// IsZero reports whether k was never initialised.
func (k VerifyingKey) IsZero() bool {
	return len(k.key) == 0
}

// Bytes returns a copy of the raw key.
func (k VerifyingKey) Bytes() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

// String returns the lowercase hex encoding of the key.
func (k VerifyingKey) String() string {
	return hex.EncodeToString(k.key)
}

// Fingerprint returns a short BLAKE3 digest of the key, safe to log.
func (k VerifyingKey) Fingerprint() string {
	if k.IsZero() {
		return ""
	}
	sum := blake3.Sum256(k.key)
	return hex.EncodeToString(sum[:8])
}

// Equal reports whether both keys hold the same bytes.
func (k VerifyingKey) Equal(other VerifyingKey) bool {
	return k.key.Equal(other.key)
}
