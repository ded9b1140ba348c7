package domain

import "context"

// EventKind enumerates the lifecycle events an automation client emits.
type EventKind string

const (
	EventQR            EventKind = "qr"
	EventAuthenticated EventKind = "authenticated"
	EventReady         EventKind = "ready"
	EventAuthFailure   EventKind = "auth_failure"
	EventDisconnected  EventKind = "disconnected"
)

// Event is one lifecycle notification from an automation client.
// Payload carries the QR code for EventQR and the reason for
// EventAuthFailure/EventDisconnected; empty otherwise.
type Event struct {
	Kind    EventKind
	Payload string
}

// Client is the capability interface over one browser-automation session.
// Implementations own the browser process; callers own the Client.
type Client interface {
	// Start begins the login flow. It blocks until the client is able to
	// emit events (not until authentication completes) and returns an
	// error only if the browser session could not be brought up at all.
	Start(ctx context.Context) error

	// Events delivers lifecycle events in emission order. The channel is
	// closed when the client shuts down.
	Events() <-chan Event

	// Send delivers a message to a fully formatted recipient address and
	// returns the transport-assigned message id.
	Send(ctx context.Context, address, body string) (string, error)

	// Destroy tears down the browser session. Idempotent.
	Destroy(ctx context.Context) error
}

// ClientFactory builds a Client scoped to one instance id and its
// credential directory.
type ClientFactory func(instanceID, authDir string) (Client, error)
