package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) (VerifyingKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := NewVerifyingKey(pub)
	require.NoError(t, err)
	return key, priv
}

func sign(priv ed25519.PrivateKey, timestamp string, body []byte) string {
	return hex.EncodeToString(ed25519.Sign(priv, Message(timestamp, body)))
}

func TestVerifyValidSignature(t *testing.T) {
	key, priv := newTestKey(t)
	ts := "1700000000"
	body := []byte(`{"type":1}`)

	assert.NoError(t, Verify(key, sign(priv, ts, body), ts, body))
	assert.NoError(t, Verify(key, strings.ToUpper(sign(priv, ts, body)), ts, body))
}

func TestVerifySingleBitFlips(t *testing.T) {
	key, priv := newTestKey(t)
	ts := "1700000000"
	body := []byte(`{"type":2,"data":{"name":"city"}}`)
	sig, err := hex.DecodeString(sign(priv, ts, body))
	require.NoError(t, err)

	t.Run("signature", func(t *testing.T) {
		for i := range sig {
			for bit := 0; bit < 8; bit++ {
				flipped := append([]byte(nil), sig...)
				flipped[i] ^= 1 << bit
				err := Verify(key, hex.EncodeToString(flipped), ts, body)
				require.ErrorIs(t, err, ErrInvalidSignature, "byte %d bit %d", i, bit)
			}
		}
	})

	t.Run("timestamp", func(t *testing.T) {
		for i := range len(ts) {
			flipped := []byte(ts)
			flipped[i] ^= 1
			err := Verify(key, hex.EncodeToString(sig), string(flipped), body)
			require.ErrorIs(t, err, ErrInvalidSignature, "byte %d", i)
		}
	})

	t.Run("body", func(t *testing.T) {
		for i := range body {
			flipped := append([]byte(nil), body...)
			flipped[i] ^= 0x80
			err := Verify(key, hex.EncodeToString(sig), ts, flipped)
			require.ErrorIs(t, err, ErrInvalidSignature, "byte %d", i)
		}
	})
}

func TestVerifyWrongKey(t *testing.T) {
	_, priv := newTestKey(t)
	other, _ := newTestKey(t)
	ts := "1700000000"
	body := []byte(`{"type":1}`)

	err := Verify(other, sign(priv, ts, body), ts, body)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyMessageBoundary(t *testing.T) {
	key, priv := newTestKey(t)
	// Moving bytes between timestamp and body keeps the concatenation intact.
	sig := sign(priv, "17000", []byte("00000{}"))
	assert.NoError(t, Verify(key, sig, "1700000000", []byte("{}")))
}

func TestVerifyMalformedSignature(t *testing.T) {
	key, _ := newTestKey(t)

	tests := []struct {
		name string
		sig  string
	}{
		{name: "empty", sig: ""},
		{name: "too short", sig: strings.Repeat("ab", 63)},
		{name: "too long", sig: strings.Repeat("ab", 65)},
		{name: "not hex", sig: strings.Repeat("zz", 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(key, tt.sig, "1", []byte("{}"))
			assert.ErrorIs(t, err, ErrMalformedSignature)
			assert.NotErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestVerifyZeroKeyRejects(t *testing.T) {
	_, priv := newTestKey(t)
	err := Verify(VerifyingKey{}, sign(priv, "1", nil), "1", nil)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseVerifyingKey(t *testing.T) {
	key, _ := newTestKey(t)

	parsed, err := ParseVerifyingKey(key.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(key))
	assert.Equal(t, key.Bytes(), parsed.Bytes())
	assert.Len(t, parsed.Fingerprint(), 16)

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "short", input: strings.Repeat("00", 31)},
		{name: "not hex", input: strings.Repeat("xy", 32)},
		{name: "non-canonical point", input: strings.Repeat("ff", 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVerifyingKey(tt.input)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestVerifyingKeyBytesIsCopy(t *testing.T) {
	key, _ := newTestKey(t)
	b := key.Bytes()
	b[0] ^= 0xff
	assert.NotEqual(t, b, key.Bytes())
}

func TestVerifierFreshnessWindow(t *testing.T) {
	key, priv := newTestKey(t)
	body := []byte(`{"type":1}`)
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }

	tests := []struct {
		name    string
		skew    time.Duration
		ts      string
		wantErr error
	}{
		{name: "disabled accepts ancient timestamp", skew: 0, ts: "1", wantErr: nil},
		{name: "exact now", skew: 5 * time.Minute, ts: "1700000000", wantErr: nil},
		{name: "inside past window", skew: 5 * time.Minute, ts: "1699999800", wantErr: nil},
		{name: "inside future window", skew: 5 * time.Minute, ts: "1700000300", wantErr: nil},
		{name: "too old", skew: 5 * time.Minute, ts: "1699999699", wantErr: ErrStaleTimestamp},
		{name: "too far ahead", skew: 5 * time.Minute, ts: "1700000301", wantErr: ErrStaleTimestamp},
		{name: "non numeric", skew: 5 * time.Minute, ts: "yesterday", wantErr: ErrStaleTimestamp},
		{name: "far future", skew: 5 * time.Minute, ts: "99999999999999", wantErr: ErrStaleTimestamp},
		{name: "far past", skew: 5 * time.Minute, ts: "-9223372036854775808", wantErr: ErrStaleTimestamp},
		{name: "max int64", skew: 5 * time.Minute, ts: "9223372036854775807", wantErr: ErrStaleTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(key, WithMaxSkew(tt.skew), WithClock(clock))
			err := v.Verify(sign(priv, tt.ts, body), tt.ts, body)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestVerifierChecksSignatureBeforeWindow(t *testing.T) {
	key, _ := newTestKey(t)
	v := NewVerifier(key, WithMaxSkew(time.Second), WithClock(func() time.Time { return time.Unix(0, 0) }))

	err := v.Verify(strings.Repeat("00", SignatureSize), "1700000000", []byte("{}"))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.NotErrorIs(t, err, ErrStaleTimestamp)
}
