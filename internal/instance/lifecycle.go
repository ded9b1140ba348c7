package instance

import (
	"context"

	"github.com/dalecompra/whatsapp-api-manager/internal/domain"
	"github.com/dalecompra/whatsapp-api-manager/internal/logging"
	"github.com/dalecompra/whatsapp-api-manager/internal/metrics"
)

// runLifecycle starts the automation client and feeds its event stream
// into the state machine. One goroutine per instance; events for a given
// instance are therefore applied in emission order.
func (r *Registry) runLifecycle(ctx context.Context, rec *record, client domain.Client) {
	defer r.loops.Done()

	log := logging.WithInstance(rec.id)

	if err := client.Start(ctx); err != nil {
		log.Error("Client start failed", "error", err)
		r.applyStatus(rec, domain.StatusInitError)
		return
	}
	log.Info("Client started, waiting for lifecycle events")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-client.Events():
			if !ok {
				log.Info("Event stream closed")
				return
			}
			r.applyEvent(rec, ev)
		}
	}
}

// applyEvent translates one adapter event into a status transition.
// Duplicate, stale, or post-destroy events are discarded. The record
// identity check guards against an id that was destroyed and re-created:
// a late event from the old client must not touch the new record.
func (r *Registry) applyEvent(rec *record, ev domain.Event) {
	id := rec.id

	r.mu.Lock()
	if current, ok := r.records[id]; !ok || current != rec {
		// Destroyed (and possibly re-created) while the event was in flight.
		r.mu.Unlock()
		metrics.LifecycleEventsTotal.WithLabelValues(string(ev.Kind), "false").Inc()
		return
	}

	next, applied := transition(rec.status, ev.Kind)
	if !applied {
		r.mu.Unlock()
		metrics.LifecycleEventsTotal.WithLabelValues(string(ev.Kind), "false").Inc()
		return
	}

	prev := rec.status
	rec.status = next
	if ev.Kind == domain.EventQR {
		rec.qr = ev.Payload
	} else {
		// The QR payload only exists while awaiting a scan.
		rec.qr = ""
	}
	update := domain.StatusUpdate{InstanceID: id, Status: rec.status}
	if rec.qr != "" {
		qr := rec.qr
		update.QR = &qr
	}
	r.mu.Unlock()

	metrics.LifecycleEventsTotal.WithLabelValues(string(ev.Kind), "true").Inc()
	if prev != next {
		metrics.InstancesByStatus.WithLabelValues(string(prev)).Dec()
		metrics.InstancesByStatus.WithLabelValues(string(next)).Inc()
	}

	log := logging.WithInstance(id)
	switch ev.Kind {
	case domain.EventQR:
		log.Info("QR code received")
	case domain.EventAuthFailure:
		log.Error("Authentication failed", "reason", ev.Payload)
	case domain.EventDisconnected:
		log.Warn("Client disconnected", "reason", ev.Payload)
	default:
		log.Info("Status changed", "status", next)
	}

	r.publish(update)
}

// applyStatus forces a status outside the event-driven transitions,
// currently only for client start failure. Same identity check as
// applyEvent: a re-created record under the same id is off limits.
func (r *Registry) applyStatus(rec *record, status domain.Status) {
	id := rec.id

	r.mu.Lock()
	if current, ok := r.records[id]; !ok || current != rec || rec.status.Terminal() {
		r.mu.Unlock()
		return
	}
	prev := rec.status
	rec.status = status
	rec.qr = ""
	r.mu.Unlock()

	metrics.InstancesByStatus.WithLabelValues(string(prev)).Dec()
	metrics.InstancesByStatus.WithLabelValues(string(status)).Inc()
	r.publish(domain.StatusUpdate{InstanceID: id, Status: status})
}

// transition is the lifecycle state machine. It returns the next status
// and whether the event produces a change. Unlisted combinations are
// ignored: they arrive from stale adapter state, not from bugs.
func transition(current domain.Status, ev domain.EventKind) (domain.Status, bool) {
	if current.Terminal() {
		return current, false
	}

	switch ev {
	case domain.EventQR:
		// A fresh QR while already awaiting a scan replaces the payload.
		if current == domain.StatusInitializing || current == domain.StatusAwaitingScan {
			return domain.StatusAwaitingScan, true
		}
	case domain.EventAuthenticated:
		if current == domain.StatusInitializing || current == domain.StatusAwaitingScan {
			return domain.StatusAuthenticated, true
		}
	case domain.EventReady:
		if current != domain.StatusReady {
			return domain.StatusReady, true
		}
	case domain.EventAuthFailure:
		return domain.StatusAuthFailed, true
	case domain.EventDisconnected:
		return domain.StatusDisconnected, true
	}

	return current, false
}
