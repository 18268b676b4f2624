// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	workflowsTotalCounter    *prometheus.CounterVec
	workflowsDeletedCounter  prometheus.Counter
	executionsTotalCounter   *prometheus.CounterVec
	stageTransitionsCounter  *prometheus.CounterVec
	agentRequestsCounter     *prometheus.CounterVec
	simulationDurationMetric prometheus.Histogram
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		workflowsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflows_total",
				Help: "Total number of workflow status transitions by status.",
			},
			[]string{"status"},
		)

		workflowsDeletedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workflows_deleted_total",
				Help: "Total number of deleted workflows.",
			},
		)

		executionsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "executions_recorded_total",
				Help: "Total number of recorded execution records by status.",
			},
			[]string{"status"},
		)

		stageTransitionsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authoring_stage_transitions_total",
				Help: "Total number of authoring stage entries by stage.",
			},
			[]string{"stage"},
		)

		agentRequestsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_requests_total",
				Help: "Total number of intent interpreter calls by outcome.",
			},
			[]string{"outcome"},
		)

		simulationDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "simulation_duration_seconds",
				Help:    "Duration of test-run simulations in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		prometheus.MustRegister(
			workflowsTotalCounter,
			workflowsDeletedCounter,
			executionsTotalCounter,
			stageTransitionsCounter,
			agentRequestsCounter,
			simulationDurationMetric,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, status := range []string{"draft", "active", "paused"} {
			workflowsTotalCounter.WithLabelValues(status)
		}
		for _, status := range []string{"success", "failed", "running"} {
			executionsTotalCounter.WithLabelValues(status)
		}
		for _, stage := range []string{"describe", "configure", "test", "complete"} {
			stageTransitionsCounter.WithLabelValues(stage)
		}
		for _, outcome := range []string{"ok", "failed"} {
			agentRequestsCounter.WithLabelValues(outcome)
		}
	})
}

func IncWorkflowStatus(status string) {
	Init()
	workflowsTotalCounter.WithLabelValues(status).Inc()
}

func IncWorkflowDeleted() {
	Init()
	workflowsDeletedCounter.Inc()
}

func IncExecutionRecorded(status string) {
	Init()
	executionsTotalCounter.WithLabelValues(status).Inc()
}

func IncStageTransition(stage string) {
	Init()
	stageTransitionsCounter.WithLabelValues(stage).Inc()
}

func IncAgentRequest(outcome string) {
	Init()
	agentRequestsCounter.WithLabelValues(outcome).Inc()
}

func ObserveSimulationDuration(d time.Duration) {
	Init()
	simulationDurationMetric.Observe(d.Seconds())
}
