// Package metrics holds the process-wide prometheus collectors. Components
// import and poke these directly; arenad exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_active_sessions",
		Help: "Match sessions currently driving an engine.",
	})

	EngineTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_engine_ticks_total",
		Help: "Total engine ticks advanced across all sessions.",
	})

	FramesBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_frames_broadcast_total",
		Help: "Total frames fanned out to spectator rooms.",
	})

	SpectatorClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_spectator_clients",
		Help: "Websocket clients currently connected.",
	})

	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_bets_placed_total",
		Help: "Total bets accepted into pools.",
	})

	LedgerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_ledger_calls_total",
		Help: "Ledger calls by method and outcome.",
	}, []string{"method", "outcome"})

	LedgerRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_ledger_retries_total",
		Help: "Ledger call attempts beyond the first.",
	})

	TournamentsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_tournaments_active",
		Help: "Brackets currently in play.",
	})

	ChallengesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_challenges_active",
		Help: "Challenge matches currently waiting or running.",
	})

	JobQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_job_queue_depth",
		Help: "Match jobs waiting for a worker.",
	})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_jobs_completed_total",
		Help: "Match jobs finished by outcome.",
	}, []string{"outcome"})
)
