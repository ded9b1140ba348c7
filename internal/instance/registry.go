package instance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/dalecompra/whatsapp-api-manager/internal/domain"
	"github.com/dalecompra/whatsapp-api-manager/internal/logging"
	"github.com/dalecompra/whatsapp-api-manager/internal/metrics"
)

const destroyTimeout = 10 * time.Second

// record is the registry's internal mutable state for one instance.
// All fields are guarded by the Registry mutex except client and cancel,
// which are written once before the record becomes visible to events.
type record struct {
	id          string
	phoneNumber string
	status      domain.Status
	qr          string
	createdAt   time.Time
	client      domain.Client
	cancel      context.CancelFunc
}

func (r *record) snapshot() domain.Instance {
	inst := domain.Instance{
		ID:          r.id,
		Status:      r.status,
		PhoneNumber: r.phoneNumber,
		CreatedAt:   r.createdAt,
	}
	if r.qr != "" {
		qr := r.qr
		inst.QR = &qr
	}
	return inst
}

// Notifier receives a status update after every state change the registry
// applies. Called outside the registry lock; may be nil.
type Notifier func(domain.StatusUpdate)

// Registry owns all instances and serializes every mutation.
type Registry struct {
	mu      sync.Mutex
	records map[string]*record
	order   []string

	factory  domain.ClientFactory
	authRoot string
	clock    clockwork.Clock
	notify   Notifier

	loops sync.WaitGroup
}

// NewRegistry creates an empty registry. factory builds one automation
// client per instance, scoped to a credential directory under authRoot.
func NewRegistry(factory domain.ClientFactory, authRoot string, clock clockwork.Clock, notify Notifier) *Registry {
	return &Registry{
		records:  make(map[string]*record),
		factory:  factory,
		authRoot: authRoot,
		clock:    clock,
		notify:   notify,
	}
}

// Create registers a new instance and starts its automation client in the
// background. It returns as soon as the record exists; authentication
// progress is observed through Get/List.
func (r *Registry) Create(ctx context.Context, id, phoneNumber string) (domain.Instance, error) {
	r.mu.Lock()
	if _, ok := r.records[id]; ok {
		r.mu.Unlock()
		return domain.Instance{}, domain.ErrInstanceExists
	}

	// Reserve the id before doing filesystem and browser work, so a
	// concurrent create with the same id fails immediately.
	rec := &record{
		id:          id,
		phoneNumber: phoneNumber,
		status:      domain.StatusInitializing,
		createdAt:   r.clock.Now().UTC(),
	}
	r.records[id] = rec
	r.order = append(r.order, id)
	r.mu.Unlock()

	metrics.InstancesByStatus.WithLabelValues(string(domain.StatusInitializing)).Inc()

	authDir := filepath.Join(r.authRoot, id)
	if err := os.MkdirAll(authDir, 0o755); err != nil {
		r.remove(rec)
		return domain.Instance{}, fmt.Errorf("failed to create auth directory for %q: %w", id, err)
	}

	client, err := r.factory(id, authDir)
	if err != nil {
		r.remove(rec)
		return domain.Instance{}, fmt.Errorf("failed to build automation client for %q: %w", id, err)
	}

	lifecycleCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	// Destroy may have raced the setup above; hand the client straight to
	// teardown instead of resurrecting the record.
	current, ok := r.records[id]
	if !ok || current != rec {
		r.mu.Unlock()
		cancel()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), destroyTimeout)
			defer cancel()
			_ = client.Destroy(ctx)
		}()
		return domain.Instance{}, domain.ErrInstanceNotFound
	}
	rec.client = client
	rec.cancel = cancel
	snap := rec.snapshot()
	r.mu.Unlock()

	metrics.InstancesCreatedTotal.Inc()

	r.loops.Add(1)
	go r.runLifecycle(lifecycleCtx, rec, client)

	return snap, nil
}

// Get returns a snapshot of one instance.
func (r *Registry) Get(id string) (domain.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.Instance{}, domain.ErrInstanceNotFound
	}
	return rec.snapshot(), nil
}

// List returns snapshots of all instances in creation order.
func (r *Registry) List() []domain.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	instances := make([]domain.Instance, 0, len(r.order))
	for _, id := range r.order {
		if rec, ok := r.records[id]; ok {
			instances = append(instances, rec.snapshot())
		}
	}
	return instances
}

// Destroy tears down an instance's automation client (best effort) and
// removes the record, freeing the id for reuse. The credential directory
// is kept so a later create under the same id can resume its login.
func (r *Registry) Destroy(id string) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrInstanceNotFound
	}
	status := rec.status
	delete(r.records, id)
	r.removeFromOrder(id)
	r.mu.Unlock()

	if rec.cancel != nil {
		rec.cancel()
	}
	if rec.client != nil {
		client := rec.client
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), destroyTimeout)
			defer cancel()
			if err := client.Destroy(ctx); err != nil {
				logging.WithInstance(id).Warn("Client teardown failed", "error", err)
			}
		}()
	}

	metrics.InstancesDestroyedTotal.Inc()
	metrics.InstancesByStatus.WithLabelValues(string(status)).Dec()
	r.publish(domain.StatusUpdate{InstanceID: id, Status: domain.StatusDestroyed})

	return nil
}

// Close destroys all instances concurrently and waits for their event
// loops to drain. Used on graceful shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := r.Destroy(id); err != nil && err != domain.ErrInstanceNotFound {
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	r.loops.Wait()
	return err
}

// remove deletes a reservation that never got a client. No teardown needed.
// It only deletes the given record: if a destroy and re-create already
// replaced the reservation, the fresh record under the same id is left alone.
func (r *Registry) remove(rec *record) {
	r.mu.Lock()
	if current, ok := r.records[rec.id]; ok && current == rec {
		delete(r.records, rec.id)
		r.removeFromOrder(rec.id)
		metrics.InstancesByStatus.WithLabelValues(string(domain.StatusInitializing)).Dec()
	}
	r.mu.Unlock()
}

func (r *Registry) removeFromOrder(id string) {
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *Registry) publish(update domain.StatusUpdate) {
	if r.notify != nil {
		r.notify(update)
	}
}
