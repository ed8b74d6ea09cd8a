package events

import "time"

// Event types published by wordbot.
const (
	TypeInteractionHandled  = "interaction.handled"
	TypeRegistrationChanged = "registration.changed"
)

// InteractionHandled is the payload of TypeInteractionHandled. It carries
// request metadata only, never bodies or signatures.
type InteractionHandled struct {
	RequestID  string `json:"request_id,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Command    string `json:"command,omitempty"`
	Outcome    string `json:"outcome"`
	Status     int    `json:"status"`
	DurationMS int64  `json:"duration_ms"`
}

// RegistrationChanged is the payload of TypeRegistrationChanged.
type RegistrationChanged struct {
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	At        time.Time `json:"at"`
}
