// Package metrics exposes the kernel core's scheduling and IPC
// counters through github.com/prometheus/client_golang. Dispatch
// counts, IPC delivery outcomes, and per-status table occupancy are
// the quantities an operator (or a fairness test) actually wants, so
// they are exposed as counters and gauges rather than a side channel
// invented just for tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups every gauge/counter the kernel core updates.
type Registry struct {
	// EnvsByStatus counts table slots currently in each status,
	// labelled by status name; refreshed by the scheduler on every
	// dispatch so it always reflects the table under the big lock.
	EnvsByStatus *prometheus.GaugeVec

	// SchedDispatches counts every successful scheduler dispatch
	// across all CPUs.
	SchedDispatches prometheus.Counter

	// IPCSends, IPCDelivered and IPCNotRecv count ipc_try_send
	// outcomes: every attempt, the subset that found a waiting
	// receiver, and the subset that returned E_IPC_NOT_RECV.
	IPCSends     prometheus.Counter
	IPCDelivered prometheus.Counter
	IPCNotRecv   prometheus.Counter

	// EnvDestroys counts completed env_destroy calls.
	EnvDestroys prometheus.Counter
}

// NewRegistry registers the kernel core's metrics against reg. Pass
// prometheus.NewRegistry() for an isolated instance (what the cmd
// package does per booted kernel; run-scenario --metrics-addr serves
// that registry over /metrics) or prometheus.DefaultRegisterer for the
// process-wide default.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		EnvsByStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "zjos",
			Subsystem: "env",
			Name:      "status_count",
			Help:      "Number of environment table slots currently in each status.",
		}, []string{"status"}),
		SchedDispatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zjos",
			Subsystem: "sched",
			Name:      "dispatches_total",
			Help:      "Total number of environments dispatched to a CPU.",
		}),
		IPCSends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zjos",
			Subsystem: "ipc",
			Name:      "send_attempts_total",
			Help:      "Total number of ipc_try_send calls.",
		}),
		IPCDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zjos",
			Subsystem: "ipc",
			Name:      "delivered_total",
			Help:      "Total number of ipc_try_send calls that found a waiting receiver.",
		}),
		IPCNotRecv: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zjos",
			Subsystem: "ipc",
			Name:      "not_recv_total",
			Help:      "Total number of ipc_try_send calls that returned E_IPC_NOT_RECV.",
		}),
		EnvDestroys: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zjos",
			Subsystem: "env",
			Name:      "destroys_total",
			Help:      "Total number of completed env_destroy calls.",
		}),
	}
}

// RefreshEnvCounts sets EnvsByStatus from per-status slot counts. The
// scheduler calls this after every dispatch step; it is cheap enough
// (one pass over the table under the big lock) to run on that hot
// path at the table sizes this core targets.
func (r *Registry) RefreshEnvCounts(counts map[string]int) {
	if r == nil {
		return
	}
	for status, n := range counts {
		r.EnvsByStatus.WithLabelValues(status).Set(float64(n))
	}
}
