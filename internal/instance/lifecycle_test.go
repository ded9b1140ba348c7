package instance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalecompra/whatsapp-api-manager/internal/domain"
)

func TestLifecycle_QRMovesToAwaitingScan(t *testing.T) {
	client := newFakeClient()
	reg, _ := testRegistry(t, client)

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	client.emit(domain.EventQR, "Q1")
	inst := waitForStatus(t, reg, "a", domain.StatusAwaitingScan)
	require.NotNil(t, inst.QR)
	assert.Equal(t, "Q1", *inst.QR)
}

func TestLifecycle_QRRefreshReplacesPayload(t *testing.T) {
	client := newFakeClient()
	reg, _ := testRegistry(t, client)

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	client.emit(domain.EventQR, "Q1")
	waitForStatus(t, reg, "a", domain.StatusAwaitingScan)
	client.emit(domain.EventQR, "Q2")

	require.Eventually(t, func() bool {
		inst, err := reg.Get("a")
		return err == nil && inst.QR != nil && *inst.QR == "Q2"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLifecycle_AuthenticatedClearsQR(t *testing.T) {
	client := newFakeClient()
	reg, _ := testRegistry(t, client)

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	client.emit(domain.EventQR, "Q1")
	waitForStatus(t, reg, "a", domain.StatusAwaitingScan)

	client.emit(domain.EventAuthenticated, "")
	inst := waitForStatus(t, reg, "a", domain.StatusAuthenticated)
	assert.Nil(t, inst.QR)
}

func TestLifecycle_ReadyClearsQR(t *testing.T) {
	client := newFakeClient()
	reg, _ := testRegistry(t, client)

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	client.emit(domain.EventQR, "Q1")
	waitForStatus(t, reg, "a", domain.StatusAwaitingScan)

	client.emit(domain.EventReady, "")
	inst := waitForStatus(t, reg, "a", domain.StatusReady)
	assert.Nil(t, inst.QR)
}

func TestLifecycle_DuplicateReadyIsNoOp(t *testing.T) {
	client := newFakeClient()
	reg, _ := testRegistry(t, client)

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	client.emit(domain.EventReady, "")
	waitForStatus(t, reg, "a", domain.StatusReady)

	client.emit(domain.EventReady, "")
	client.emit(domain.EventQR, "stale")

	// Stale events must neither change the status nor resurrect a QR code.
	assert.Never(t, func() bool {
		inst, err := reg.Get("a")
		return err != nil || inst.Status != domain.StatusReady || inst.QR != nil
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestLifecycle_AuthFailureIsTerminal(t *testing.T) {
	client := newFakeClient()
	reg, _ := testRegistry(t, client)

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	client.emit(domain.EventAuthFailure, "bad credentials")
	waitForStatus(t, reg, "a", domain.StatusAuthFailed)

	// No event recovers a terminal state.
	client.emit(domain.EventQR, "Q1")
	client.emit(domain.EventReady, "")
	assert.Never(t, func() bool {
		inst, err := reg.Get("a")
		return err != nil || inst.Status != domain.StatusAuthFailed
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestLifecycle_DisconnectedIsTerminal(t *testing.T) {
	client := newFakeClient()
	reg, _ := testRegistry(t, client)

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	client.emit(domain.EventReady, "")
	waitForStatus(t, reg, "a", domain.StatusReady)

	client.emit(domain.EventDisconnected, "logged out on phone")
	waitForStatus(t, reg, "a", domain.StatusDisconnected)
}

func TestLifecycle_StartFailureBecomesInitError(t *testing.T) {
	client := newFakeClient()
	client.startErr = errors.New("browser exited")
	reg, _ := testRegistry(t, client)

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	waitForStatus(t, reg, "a", domain.StatusInitError)
}

func TestLifecycle_EventAfterDestroyIsDiscarded(t *testing.T) {
	client := newFakeClient()
	factory := func(instanceID, authDir string) (domain.Client, error) {
		return client, nil
	}
	reg := NewRegistry(factory, t.TempDir(), clockwork.NewFakeClock(), nil)
	t.Cleanup(func() { _ = reg.Close() })

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	reg.mu.Lock()
	rec := reg.records["a"]
	reg.mu.Unlock()
	require.NotNil(t, rec)

	// Apply directly: the event races destroy, arriving after removal.
	require.NoError(t, reg.Destroy("a"))
	reg.applyEvent(rec, domain.Event{Kind: domain.EventReady})

	_, err = reg.Get("a")
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
	assert.Empty(t, reg.List())
}

func TestLifecycle_StaleEventNeverTouchesRecreatedInstance(t *testing.T) {
	first := newFakeClient()
	second := newFakeClient()
	reg, _ := testRegistry(t, first, second)

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	reg.mu.Lock()
	old := reg.records["a"]
	reg.mu.Unlock()
	require.NotNil(t, old)

	require.NoError(t, reg.Destroy("a"))

	_, err = reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	// A late event from the destroyed client's loop still carries the old
	// record; it must not move the fresh instance out of initializing.
	reg.applyEvent(old, domain.Event{Kind: domain.EventReady})
	reg.applyStatus(old, domain.StatusInitError)

	inst, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInitializing, inst.Status)

	_, err = reg.Send(context.Background(), "a", "+1 (555) 123-4567", "hi")
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestLifecycle_StaleEventFromDestroyedClientChannel(t *testing.T) {
	first := newFakeClient()
	second := newFakeClient()
	reg, _ := testRegistry(t, first, second)

	_, err := reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	// Buffer a ready event, then destroy before the loop necessarily
	// drains it and re-create the id with a fresh client.
	first.emit(domain.EventReady, "")
	require.NoError(t, reg.Destroy("a"))
	_, err = reg.Create(context.Background(), "a", "15551234567")
	require.NoError(t, err)

	assert.Never(t, func() bool {
		inst, err := reg.Get("a")
		return err != nil || inst.Status == domain.StatusReady
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestTransition_Table(t *testing.T) {
	tests := []struct {
		name    string
		current domain.Status
		event   domain.EventKind
		want    domain.Status
		applied bool
	}{
		{"qr from initializing", domain.StatusInitializing, domain.EventQR, domain.StatusAwaitingScan, true},
		{"qr refresh", domain.StatusAwaitingScan, domain.EventQR, domain.StatusAwaitingScan, true},
		{"qr after authenticated ignored", domain.StatusAuthenticated, domain.EventQR, domain.StatusAuthenticated, false},
		{"qr after ready ignored", domain.StatusReady, domain.EventQR, domain.StatusReady, false},
		{"authenticated from scan", domain.StatusAwaitingScan, domain.EventAuthenticated, domain.StatusAuthenticated, true},
		{"authenticated from initializing", domain.StatusInitializing, domain.EventAuthenticated, domain.StatusAuthenticated, true},
		{"authenticated after ready ignored", domain.StatusReady, domain.EventAuthenticated, domain.StatusReady, false},
		{"ready from authenticated", domain.StatusAuthenticated, domain.EventReady, domain.StatusReady, true},
		{"ready without scan", domain.StatusInitializing, domain.EventReady, domain.StatusReady, true},
		{"duplicate ready", domain.StatusReady, domain.EventReady, domain.StatusReady, false},
		{"auth failure from scan", domain.StatusAwaitingScan, domain.EventAuthFailure, domain.StatusAuthFailed, true},
		{"auth failure from ready", domain.StatusReady, domain.EventAuthFailure, domain.StatusAuthFailed, true},
		{"disconnect from ready", domain.StatusReady, domain.EventDisconnected, domain.StatusDisconnected, true},
		{"nothing leaves auth_failed", domain.StatusAuthFailed, domain.EventReady, domain.StatusAuthFailed, false},
		{"nothing leaves disconnected", domain.StatusDisconnected, domain.EventQR, domain.StatusDisconnected, false},
		{"nothing leaves init_error", domain.StatusInitError, domain.EventAuthenticated, domain.StatusInitError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, applied := transition(tt.current, tt.event)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.applied, applied)
		})
	}
}
