package webhook

import (
	"errors"
	"net/http"

	"github.com/mattjoyce/wordbot/internal/command"
	"github.com/mattjoyce/wordbot/internal/interaction"
	"github.com/mattjoyce/wordbot/internal/signature"
)

var (
	// ErrMissingHeader is returned when a signature header is absent or empty.
	ErrMissingHeader = errors.New("webhook: missing signature header")
	// ErrInvalidHeaderEncoding is returned when a header is not printable ASCII.
	ErrInvalidHeaderEncoding = errors.New("webhook: header is not valid text")
	// ErrMalformedTimestamp is returned when the timestamp is not a decimal string.
	ErrMalformedTimestamp = errors.New("webhook: malformed timestamp")
	// ErrBodyTooLarge is returned when the body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("webhook: body too large")
	// ErrUnreadableBody is returned when the body cannot be read to the end.
	ErrUnreadableBody = errors.New("webhook: unreadable body")
)

// Outcome labels used in logs, metrics and the audit log.
const (
	OutcomeOK                   = "ok"
	OutcomeTooLarge             = "too_large"
	OutcomeBadBody              = "bad_body"
	OutcomeMissingHeader        = "missing_header"
	OutcomeInvalidHeader        = "invalid_header"
	OutcomeMalformedSignature   = "malformed_signature"
	OutcomeInvalidSignature     = "invalid_signature"
	OutcomeStaleTimestamp       = "stale_timestamp"
	OutcomeUnrecognizedEnvelope = "unrecognized_envelope"
	OutcomeUnknownCommand       = "unknown_command"
	OutcomeInternal             = "internal"
)

// failure is the caller-facing mapping of an error class.
type failure struct {
	status  int
	message string
	outcome string
}

// classify maps an error from any stage to a fixed status and message.
// The message never carries detail from err.
func classify(err error) failure {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return failure{http.StatusRequestEntityTooLarge, "payload too large", OutcomeTooLarge}
	case errors.Is(err, ErrUnreadableBody):
		return failure{http.StatusBadRequest, "unreadable body", OutcomeBadBody}
	case errors.Is(err, ErrMissingHeader):
		return failure{http.StatusBadRequest, "missing signature headers", OutcomeMissingHeader}
	case errors.Is(err, ErrInvalidHeaderEncoding), errors.Is(err, ErrMalformedTimestamp):
		return failure{http.StatusBadRequest, "malformed signature headers", OutcomeInvalidHeader}
	case errors.Is(err, signature.ErrMalformedSignature):
		return failure{http.StatusBadRequest, "malformed signature", OutcomeMalformedSignature}
	case errors.Is(err, signature.ErrInvalidSignature):
		return failure{http.StatusUnauthorized, "invalid request signature", OutcomeInvalidSignature}
	case errors.Is(err, signature.ErrStaleTimestamp):
		return failure{http.StatusUnauthorized, "invalid request signature", OutcomeStaleTimestamp}
	case errors.Is(err, interaction.ErrUnrecognizedEnvelope):
		return failure{http.StatusBadRequest, "unrecognized interaction", OutcomeUnrecognizedEnvelope}
	case errors.Is(err, command.ErrUnknownCommand):
		return failure{http.StatusBadRequest, "unknown command", OutcomeUnknownCommand}
	default:
		return failure{http.StatusInternalServerError, "internal error", OutcomeInternal}
	}
}
