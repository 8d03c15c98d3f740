package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// CacheLookups counts cache engine reads by strategy and result (hit|miss|error).
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_cache_lookups_total",
			Help: "Cache engine lookups by strategy and result.",
		},
		[]string{"strategy", "result"},
	)

	// CoalescedSubscribers counts requests that joined an in-flight generation.
	CoalescedSubscribers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "testgen_coalesced_subscribers_total",
			Help: "Generation requests served by an already running upstream call.",
		},
	)

	// UpstreamAttempts counts LLM stream attempts by outcome (ok|retry|failed).
	UpstreamAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_upstream_attempts_total",
			Help: "Upstream model stream attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// LedgerOperations counts wallet procedure calls by procedure and outcome.
	LedgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_ledger_operations_total",
			Help: "Wallet procedure calls by procedure and outcome.",
		},
		[]string{"procedure", "outcome"},
	)

	// SandboxRuns counts sandbox executions by outcome
	// (passed|failed|rejected|timeout|error).
	SandboxRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_sandbox_runs_total",
			Help: "Sandbox executions by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(CacheLookups, CoalescedSubscribers, UpstreamAttempts, LedgerOperations, SandboxRuns)
}
