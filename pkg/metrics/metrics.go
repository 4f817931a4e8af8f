// Copyright 2025 Certen Protocol
//
// Metrics exposes the validator's Prometheus counters and gauges: audit
// pass outcomes, slash votes, and scheduler task health. Collectors are
// package-level so every caller shares one registration.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AuditPassesTotal counts completed audit passes, labeled by outcome.
	AuditPassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certen_validator",
		Name:      "audit_passes_total",
		Help:      "Completed audit passes by outcome.",
	}, []string{"outcome"})

	// AuditItemsPersisted counts bundle items the auditor accepted and stored.
	AuditItemsPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "certen_validator",
		Name:      "audit_items_persisted_total",
		Help:      "Bundle items verified and persisted by the auditor.",
	})

	// SlashVotesCast counts slashing votes cast, labeled by the violation kind.
	SlashVotesCast = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certen_validator",
		Name:      "slash_votes_cast_total",
		Help:      "Slashing votes cast, by violation kind.",
	}, []string{"violation"})

	// SchedulerTaskRuns counts scheduler task invocations, labeled by task name and result.
	SchedulerTaskRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certen_validator",
		Name:      "scheduler_task_runs_total",
		Help:      "Scheduler task invocations, by task name and result.",
	}, []string{"task", "result"})

	// SchedulerTaskLastRunSeconds tracks the unix timestamp of each task's last run.
	SchedulerTaskLastRunSeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "certen_validator",
		Name:      "scheduler_task_last_run_timestamp_seconds",
		Help:      "Unix timestamp of each named task's most recent run.",
	}, []string{"task"})
)

// Violation kinds recorded against SlashVotesCast.
const (
	ViolationForgedReceipt = "forged_receipt"
	ViolationLateInclusion = "late_inclusion"
	ViolationLateBundling  = "late_bundling"
)

// Registry is the set of collectors to register against a prometheus.Registerer.
var Registry = []prometheus.Collector{
	AuditPassesTotal,
	AuditItemsPersisted,
	SlashVotesCast,
	SchedulerTaskRuns,
	SchedulerTaskLastRunSeconds,
}

// MustRegister registers every validator collector against reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(Registry...)
}
