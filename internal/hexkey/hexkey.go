// Package hexkey decodes fixed-length hexadecimal key material.
//
// Both the process verifying key (32 bytes) and every inbound request
// signature (64 bytes) travel as hex text. Decoding is all-or-nothing: a
// caller either gets exactly the number of bytes it asked for or an error.
package hexkey

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrInvalidLength is returned when the input is not exactly 2*n characters.
	ErrInvalidLength = errors.New("hexkey: invalid length")
	// ErrInvalidDigit is returned when a character pair is not a hex byte.
	ErrInvalidDigit = errors.New("hexkey: invalid hex digit")
)

// Decode decodes s into exactly n bytes. Upper and lower case digits are
// accepted; no prefix, separator or whitespace is.
func Decode(s string, n int) ([]byte, error) {
	if n < 0 || len(s) != 2*n {
		return nil, fmt.Errorf("%w: got %d characters, want %d", ErrInvalidLength, len(s), 2*n)
	}

	out := make([]byte, n)
	if _, err := hex.Decode(out, []byte(s)); err != nil {
		var ibe hex.InvalidByteError
		if errors.As(err, &ibe) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDigit, byte(ibe))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDigit, err)
	}
	return out, nil
}

// DecodeInto decodes s into dst, requiring len(s) == 2*len(dst). dst is left
// untouched on error.
func DecodeInto(dst []byte, s string) error {
	b, err := Decode(s, len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}
