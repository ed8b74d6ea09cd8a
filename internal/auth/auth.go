// Package auth guards the ops listener with a static bearer token.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingHeader = errors.New("missing Authorization header")
	ErrInvalidFormat = errors.New("invalid Authorization header format")
	ErrMissingToken  = errors.New("missing API key")
)

// ExtractBearerToken reads the token from an Authorization: Bearer <token> header.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingHeader
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrInvalidFormat
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// Authenticate compares the presented token with the configured key in
// constant time. An empty key never authenticates.
func Authenticate(presented, apiKey string) bool {
	if presented == "" || apiKey == "" {
		return false
	}
	if len(presented) != len(apiKey) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) == 1
}

// Middleware rejects requests without a valid bearer token with 401 and a
// JSON error body.
func Middleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := ExtractBearerToken(r)
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}
			if !Authenticate(token, apiKey) {
				writeUnauthorized(w, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="wordbot"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
