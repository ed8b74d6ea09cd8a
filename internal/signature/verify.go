// Package signature authenticates inbound interaction requests.
//
// The platform signs every request with Ed25519 over the byte-exact
// concatenation of the X-Signature-Timestamp header and the raw request body.
// Verification never distinguishes why a well-formed signature failed: a
// wrong key, a tampered body and a corrupted signature all produce
// ErrInvalidSignature.
package signature

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mattjoyce/wordbot/internal/hexkey"
)

var (
	// ErrMalformedSignature is returned when the signature is not 128 hex characters.
	ErrMalformedSignature = errors.New("signature: malformed signature")
	// ErrInvalidSignature is returned for any cryptographic verification failure.
	ErrInvalidSignature = errors.New("signature: invalid signature")
	// ErrStaleTimestamp is returned when a freshness window is configured and
	// the signed timestamp falls outside it.
	ErrStaleTimestamp = errors.New("signature: timestamp outside allowed window")
)

// Verify checks signatureHex against timestamp ++ body using key.
// It performs no I/O and keeps no state.
func Verify(key VerifyingKey, signatureHex, timestamp string, body []byte) error {
	sig, err := hexkey.Decode(signatureHex, SignatureSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}

	if key.IsZero() {
		return ErrInvalidSignature
	}

	if !ed25519.Verify(key.key, Message(timestamp, body), sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Message builds the signed byte string: the timestamp's raw bytes followed
// by the body, with no separator.
func Message(timestamp string, body []byte) []byte {
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return msg
}

// Verifier binds a VerifyingKey to an optional freshness window.
// A Verifier is safe for concurrent use.
type Verifier struct {
	key     VerifyingKey
	maxSkew time.Duration
	now     func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMaxSkew rejects timestamps further than d from the current time.
// Zero or negative disables the check.
func WithMaxSkew(d time.Duration) Option {
	return func(v *Verifier) { v.maxSkew = d }
}

// WithClock overrides the time source used for the freshness window.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a Verifier for key.
func NewVerifier(key VerifyingKey, opts ...Option) *Verifier {
	v := &Verifier{key: key, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Key returns the verifying key.
func (v *Verifier) Key() VerifyingKey {
	return v.key
}

// MaxSkew returns the configured freshness window, zero when disabled.
func (v *Verifier) MaxSkew() time.Duration {
	if v.maxSkew < 0 {
		return 0
	}
	return v.maxSkew
}

// Verify authenticates the request and then, if enabled, applies the
// freshness window. The window is only consulted once the signature holds.
func (v *Verifier) Verify(signatureHex, timestamp string, body []byte) error {
	if err := Verify(v.key, signatureHex, timestamp, body); err != nil {
		return err
	}
	if v.MaxSkew() == 0 {
		return nil
	}

	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: unparseable timestamp", ErrStaleTimestamp)
	}
	// Compared in whole seconds so far-off timestamps cannot overflow a Duration.
	now := v.now().Unix()
	window := int64(v.maxSkew / time.Second)
	if secs < now-window || secs > now+window {
		return fmt.Errorf("%w: timestamp %d is outside %s of %d", ErrStaleTimestamp, secs, v.maxSkew, now)
	}
	return nil
}
