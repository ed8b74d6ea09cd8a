// Package interaction models the envelopes exchanged with the platform's
// interactions webhook.
//
// Inbound envelopes decode into the closed Interaction set (Ping,
// ApplicationCommand) and outbound replies encode from the closed Response
// set (Pong, ChannelMessageWithSource). Every variant owns a compiled-in
// discriminant: decoding a variant reads and checks its "type" field before
// anything else, and encoding writes the variant's constant, never a value
// taken from request data.
package interaction

// Interaction is an inbound envelope. The set of implementations is closed.
type Interaction interface {
	// Kind is a stable lowercase name for logs and metrics.
	Kind() string
	isInteraction()
}

// Ping is the platform's liveness check. It carries only its tag.
type Ping struct{}

// ApplicationCommand is a user invoking a registered slash command.
type ApplicationCommand struct {
	Name string
}

func (Ping) Kind() string               { return "ping" }
func (ApplicationCommand) Kind() string { return "application_command" }

func (Ping) isInteraction()               {}
func (ApplicationCommand) isInteraction() {}

// Response is an outbound reply. The set of implementations is closed.
type Response interface {
	// Kind is a stable lowercase name for logs and metrics.
	Kind() string
	isResponse()
}

// Pong acknowledges a Ping.
type Pong struct{}

// ChannelMessageWithSource replies to a command with a visible message.
type ChannelMessageWithSource struct {
	Content string
}

func (Pong) Kind() string                     { return "pong" }
func (ChannelMessageWithSource) Kind() string { return "channel_message_with_source" }

func (Pong) isResponse()                     {}
func (ChannelMessageWithSource) isResponse() {}
