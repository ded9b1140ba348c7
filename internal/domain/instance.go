package domain

import (
	"context"
	"time"
)

// Status is the lifecycle state of a WhatsApp instance.
type Status string

const (
	StatusInitializing  Status = "initializing"
	StatusAwaitingScan  Status = "awaiting_scan"
	StatusAuthenticated Status = "authenticated"
	StatusReady         Status = "ready"
	StatusAuthFailed    Status = "auth_failed"
	StatusDisconnected  Status = "disconnected"
	StatusInitError     Status = "init_error"

	// StatusDestroyed never appears in a stored record; it is only
	// published to status subscribers when an instance is removed.
	StatusDestroyed Status = "destroyed"
)

// Terminal reports whether no further lifecycle events can move the
// instance to another state. Destroy is still allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusAuthFailed, StatusDisconnected, StatusInitError:
		return true
	}
	return false
}

// Instance is a point-in-time snapshot of one WhatsApp instance.
// QR is non-nil only while the instance is awaiting a scan.
type Instance struct {
	ID          string    `json:"instanceId"`
	Status      Status    `json:"status"`
	QR          *string   `json:"qr"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MessageReceipt is returned after a successful send.
type MessageReceipt struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusUpdate is published to subscribers whenever an instance
// changes state.
type StatusUpdate struct {
	InstanceID string  `json:"instanceId"`
	Status     Status  `json:"status"`
	QR         *string `json:"qr"`
}

// InstanceService is the application-facing contract for the registry,
// consumed by the HTTP layer.
type InstanceService interface {
	Create(ctx context.Context, id, phoneNumber string) (Instance, error)
	Get(id string) (Instance, error)
	List() []Instance
	Destroy(id string) error
	Send(ctx context.Context, id, rawNumber, message string) (MessageReceipt, error)
}
