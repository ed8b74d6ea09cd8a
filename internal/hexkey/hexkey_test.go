package hexkey

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 32, 64} {
		b := make([]byte, n)
		_, err := rand.Read(b)
		require.NoError(t, err)

		got, err := Decode(hex.EncodeToString(b), n)
		require.NoError(t, err)
		assert.Equal(t, b, got)

		got, err = Decode(strings.ToUpper(hex.EncodeToString(b)), n)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		n       int
		wantErr error
	}{
		{name: "empty for non-zero length", input: "", n: 2, wantErr: ErrInvalidLength},
		{name: "too short", input: "abc", n: 2, wantErr: ErrInvalidLength},
		{name: "too long", input: "abcdef", n: 2, wantErr: ErrInvalidLength},
		{name: "odd length", input: "abcde", n: 2, wantErr: ErrInvalidLength},
		{name: "non hex character", input: "zz00", n: 2, wantErr: ErrInvalidDigit},
		{name: "non hex in last pair", input: "00g0", n: 2, wantErr: ErrInvalidDigit},
		{name: "sign prefix", input: "+f00", n: 2, wantErr: ErrInvalidDigit},
		{name: "whitespace", input: " f00", n: 2, wantErr: ErrInvalidDigit},
		{name: "0x prefix", input: "0xff", n: 2, wantErr: ErrInvalidDigit},
		{name: "negative length", input: "", n: -1, wantErr: ErrInvalidLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input, tt.n)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestDecodeIntoLeavesDestinationOnError(t *testing.T) {
	dst := []byte{1, 2}
	err := DecodeInto(dst, "zz00")
	require.ErrorIs(t, err, ErrInvalidDigit)
	assert.Equal(t, []byte{1, 2}, dst)

	require.NoError(t, DecodeInto(dst, "a0b1"))
	assert.Equal(t, []byte{0xa0, 0xb1}, dst)
}
