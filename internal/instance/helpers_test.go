package instance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dalecompra/whatsapp-api-manager/internal/domain"
	"github.com/dalecompra/whatsapp-api-manager/internal/logging"
)

func init() {
	logging.InitLogger("error", "text")
}

// fakeClient is a scriptable automation client for registry tests.
type fakeClient struct {
	mu          sync.Mutex
	events      chan domain.Event
	startErr    error
	sendID      string
	sendErr     error
	destroyed   bool
	sentAddress string
	sentBody    string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		events: make(chan domain.Event, 16),
		sendID: "true_15551234567@c.us_3EB0",
	}
}

func (f *fakeClient) Start(ctx context.Context) error {
	return f.startErr
}

func (f *fakeClient) Events() <-chan domain.Event {
	return f.events
}

func (f *fakeClient) Send(ctx context.Context, address, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sentAddress = address
	f.sentBody = body
	return f.sendID, nil
}

func (f *fakeClient) Destroy(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.destroyed {
		f.destroyed = true
		close(f.events)
	}
	return nil
}

func (f *fakeClient) emit(kind domain.EventKind, payload string) {
	f.events <- domain.Event{Kind: kind, Payload: payload}
}

func (f *fakeClient) isDestroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

func (f *fakeClient) lastSend() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentAddress, f.sentBody
}

// testRegistry builds a registry whose factory hands out the given clients
// in creation order.
func testRegistry(t *testing.T, clients ...*fakeClient) (*Registry, clockwork.Clock) {
	t.Helper()

	var mu sync.Mutex
	next := 0
	factory := func(instanceID, authDir string) (domain.Client, error) {
		mu.Lock()
		defer mu.Unlock()
		require.Less(t, next, len(clients), "factory called more times than clients provided")
		c := clients[next]
		next++
		return c, nil
	}

	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	reg := NewRegistry(factory, t.TempDir(), clock, nil)
	t.Cleanup(func() { _ = reg.Close() })
	return reg, clock
}

// waitForStatus blocks until the instance reaches the wanted status.
func waitForStatus(t *testing.T, reg *Registry, id string, want domain.Status) domain.Instance {
	t.Helper()

	var got domain.Instance
	require.Eventually(t, func() bool {
		inst, err := reg.Get(id)
		if err != nil {
			return false
		}
		got = inst
		return inst.Status == want
	}, 2*time.Second, 5*time.Millisecond, "instance %q never reached status %q", id, want)
	return got
}
