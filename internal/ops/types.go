package ops

import (
	"context"

	"github.com/mattjoyce/wordbot/internal/audit"
	"github.com/mattjoyce/wordbot/internal/registration"
)

// RegistrationStatus reports the endpoint registration state.
// Implemented by *registration.Registrar.
type RegistrationStatus interface {
	Status() registration.Snapshot
}

// AuditReader lists recent audit entries. Implemented by *audit.Store.
type AuditReader interface {
	Recent(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// Config holds ops server configuration.
type Config struct {
	Listen string
	APIKey string
	// Commands and KeyFingerprint are reported by /healthz.
	Commands       []string
	KeyFingerprint string
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status         string                `json:"status"`
	UptimeSeconds  int64                 `json:"uptime_seconds"`
	Commands       []string              `json:"commands"`
	KeyFingerprint string                `json:"key_fingerprint,omitempty"`
	Registration   registration.Snapshot `json:"registration"`
	Subscribers    int                   `json:"event_subscribers"`
	EventsDropped  int64                 `json:"events_dropped"`
}

// ReadyzResponse is returned by GET /readyz.
type ReadyzResponse struct {
	Ready        bool   `json:"ready"`
	Registration string `json:"registration"`
}

// InteractionsResponse is returned by GET /interactions.
type InteractionsResponse struct {
	Entries []audit.Entry `json:"entries"`
}
