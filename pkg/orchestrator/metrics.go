// Copyright Contributors to the Opus project

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TasksRegistered is a counter tracking registered tasks by kind.
	TasksRegistered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opus_tasks_registered_total",
			Help: "Number of tasks registered, by kind",
		},
		[]string{"kind"},
	)

	// ProcessingRuns is a counter tracking ProcessContext invocations.
	ProcessingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opus_processing_runs_total",
			Help: "Number of processing runs, by command and environment",
		},
		[]string{"command", "environment"},
	)

	// TaskProcessingFailures is a counter tracking failed task executions.
	TaskProcessingFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opus_task_processing_failures_total",
			Help: "Number of task executions that ended in a failure, by kind and command",
		},
		[]string{"kind", "command"},
	)

	// TaskProcessingDuration is a histogram tracking per-task processing
	// duration in seconds.
	TaskProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opus_task_processing_duration_seconds",
			Help:    "Duration of a single task processing pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		},
		[]string{"kind", "command"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksRegistered,
		ProcessingRuns,
		TaskProcessingFailures,
		TaskProcessingDuration,
	)
}
