// Package metrics holds the process-wide Prometheus registry gate and the
// interfaces components record into.
//
// Metrics are opt-in: call InitRegistry once at startup to enable them.
// Constructors in pkg/metrics/prometheus return nil when the gate is off,
// and every recording method is a no-op on a nil receiver, so instrumented
// code never branches on configuration.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry creates the process registry and enables metrics collection.
// Safe to call more than once; later calls return the existing registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return registry
}

// GetRegistry returns the process registry, or nil when metrics are off.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

// Relay is the instrumentation surface of the ticket registry and the
// streaming handlers.
type Relay interface {
	// TicketMinted records a new ticket on the given tier.
	TicketMinted(tier string)

	// TicketUpgraded records an upgrade attempt by outcome.
	TicketUpgraded(ok bool)

	// TicketsCulled records n tickets dropped by one cull pass.
	TicketsCulled(n int)

	// TicketDeleted records an explicit delete.
	TicketDeleted()

	// SetActiveTickets tracks the current registry population.
	SetActiveTickets(n int)

	// BytesUploaded and BytesDownloaded record streamed byte counts.
	BytesUploaded(n int64)
	BytesDownloaded(n int64)
}
