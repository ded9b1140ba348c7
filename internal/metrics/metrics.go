// Package metrics defines the Prometheus collectors shared across the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Instance lifecycle metrics
var (
	// InstancesByStatus tracks the number of registered instances per status
	InstancesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "whatsapp_instances",
			Help: "Number of registered instances by status",
		},
		[]string{"status"},
	)

	// LifecycleEventsTotal tracks adapter lifecycle events by instance outcome
	LifecycleEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_lifecycle_events_total",
			Help: "Total adapter lifecycle events by event kind and whether they caused a transition",
		},
		[]string{"event", "applied"},
	)

	// InstancesCreatedTotal counts registry create operations
	InstancesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_instances_created_total",
			Help: "Total instances created",
		},
	)

	// InstancesDestroyedTotal counts registry destroy operations
	InstancesDestroyedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_instances_destroyed_total",
			Help: "Total instances destroyed",
		},
	)
)

// Outbound message metrics
var (
	// MessagesSentTotal tracks sends by outcome
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_messages_sent_total",
			Help: "Total outbound messages by result",
		},
		[]string{"result"},
	)

	// SendDuration tracks adapter send latency in seconds
	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whatsapp_send_duration_seconds",
			Help:    "Adapter send duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// WebSocket status stream metrics
var (
	// StreamConnectedClients tracks connected status-stream clients
	StreamConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "status_stream_connected_clients",
			Help: "Number of connected status stream WebSocket clients",
		},
	)
)
