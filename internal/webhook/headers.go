package webhook

import (
	"fmt"
	"io"
	"math"
	"net/http"
)

// signedHeaders extracts the signature and timestamp headers. Both must be
// present, non-empty printable ASCII; the timestamp must be decimal digits.
// The signature's hex form is checked later by the verifier.
func signedHeaders(h http.Header) (sig, ts string, err error) {
	sig, err = headerText(h, HeaderSignature)
	if err != nil {
		return "", "", err
	}
	ts, err = headerText(h, HeaderTimestamp)
	if err != nil {
		return "", "", err
	}
	for i := 0; i < len(ts); i++ {
		if ts[i] < '0' || ts[i] > '9' {
			return "", "", fmt.Errorf("%w: %s", ErrMalformedTimestamp, HeaderTimestamp)
		}
	}
	return sig, ts, nil
}

func headerText(h http.Header, name string) (string, error) {
	values := h.Values(name)
	if len(values) == 0 || values[0] == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingHeader, name)
	}
	v := values[0]
	for i := 0; i < len(v); i++ {
		if v[i] < 0x20 || v[i] > 0x7e {
			return "", fmt.Errorf("%w: %s", ErrInvalidHeaderEncoding, name)
		}
	}
	return v, nil
}

// readBody reads at most limit bytes and fails with ErrBodyTooLarge past it.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	n := limit
	if n < math.MaxInt64 {
		n++
	}
	body, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableBody, err)
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}
