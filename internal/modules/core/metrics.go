package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "fear_tracker"

var (
	JoinCodesReserved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "join_codes_reserved_total",
		Help:      "Join codes handed out to new sessions.",
	})

	JoinCodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "join_code_collisions_total",
		Help:      "Generated join codes that were already held by a live reservation.",
	})

	JoinCodeAllocationsExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "join_code_allocations_exhausted_total",
		Help:      "Reservations that gave up after the maximum number of attempts.",
	})

	HeartbeatFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "heartbeat_failures_total",
		Help:      "Heartbeat writes that failed.",
	})

	StaleMembersEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "stale_members_evicted_total",
		Help:      "Members removed by host eviction sweeps.",
	})

	EvictionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "eviction_failures_total",
		Help:      "Eviction sweeps that failed.",
	})

	ActiveParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "active_participants",
		Help:      "Open session participant contexts.",
	})

	OpenStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "open_streams",
		Help:      "Open realtime streams.",
	})
)
