package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsSubmitted counts submitted workflow requests by workflow type.
	RequestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hrflow_requests_submitted_total",
		Help: "Workflow requests submitted, by workflow type.",
	}, []string{"workflow_type"})

	// DecisionsRecorded counts human approve/reject decisions.
	DecisionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hrflow_decisions_recorded_total",
		Help: "Human decisions recorded, by decision.",
	}, []string{"decision"})

	// SweepRuns counts SLA scheduler sweep executions.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hrflow_sla_sweep_runs_total",
		Help: "SLA scheduler sweep executions.",
	})

	// AutoActions counts timeout actions applied by the scheduler.
	AutoActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hrflow_sla_auto_actions_total",
		Help: "Timeout actions applied by the SLA scheduler, by action.",
	}, []string{"action"})
)
