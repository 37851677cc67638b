// Package metrics exposes the pipeline core's Prometheus instrumentation:
// LLM call counts and latency, SQL execution latency, and retry counts
// across the SplitQuery and GenerateSQL subgraphs. The collectors change
// only through the Observe* functions in this package, which no other
// package in this module calls.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// LLMCallsTotal counts every LLM invocation, labeled by stage and
	// outcome ("ok" or "error").
	LLMCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finquery_llm_calls_total",
			Help: "Total number of LLM invocations, labeled by pipeline stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	// LLMCallDurationSeconds observes LLM invocation latency, labeled by
	// stage.
	LLMCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finquery_llm_call_duration_seconds",
			Help:    "LLM invocation latency in seconds, labeled by pipeline stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// SQLExecutionDurationSeconds observes SQL statement execution latency.
	SQLExecutionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finquery_sql_execution_duration_seconds",
			Help:    "SQL statement execution latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SQLExecutionsTotal counts SQL statement executions, labeled by
	// outcome ("ok" or "error").
	SQLExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finquery_sql_executions_total",
			Help: "Total number of SQL statement executions, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	// RetriesTotal counts retry attempts consumed, labeled by subgraph
	// ("split_query" or "generate_sql").
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finquery_retries_total",
			Help: "Total number of retry attempts consumed, labeled by subgraph.",
		},
		[]string{"subgraph"},
	)
)

// Register adds every collector in this package to reg. Callers typically
// pass prometheus.DefaultRegisterer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		LLMCallsTotal,
		LLMCallDurationSeconds,
		SQLExecutionDurationSeconds,
		SQLExecutionsTotal,
		RetriesTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveLLMCall records the outcome and duration of a single LLM call.
func ObserveLLMCall(stage string, durationS float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LLMCallsTotal.WithLabelValues(stage, outcome).Inc()
	LLMCallDurationSeconds.WithLabelValues(stage).Observe(durationS)
}

// ObserveSQLExecution records the outcome and duration of a single SQL
// statement execution.
func ObserveSQLExecution(durationS float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SQLExecutionsTotal.WithLabelValues(outcome).Inc()
	SQLExecutionDurationSeconds.Observe(durationS)
}

// ObserveRetry records one retry attempt consumed by subgraph.
func ObserveRetry(subgraph string) {
	RetriesTotal.WithLabelValues(subgraph).Inc()
}
