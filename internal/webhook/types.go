package webhook

import (
	"context"

	"github.com/mattjoyce/wordbot/internal/audit"
	"github.com/mattjoyce/wordbot/internal/interaction"
)

// Dispatcher turns a decoded interaction into its reply.
type Dispatcher interface {
	Dispatch(in interaction.Interaction) (interaction.Response, error)
}

// Verifier authenticates a request. Implemented by *signature.Verifier.
type Verifier interface {
	Verify(signatureHex, timestamp string, body []byte) error
}

// Recorder persists request metadata. Implemented by *audit.Store.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) (string, error)
}

// Config holds webhook server configuration.
type Config struct {
	Listen      string
	MaxBodySize int64 // bytes; 0 selects DefaultMaxBodySize
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Header names set by the platform on every delivery.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// DefaultMaxBodySize is used when Config.MaxBodySize is zero.
const DefaultMaxBodySize = 1 << 20
