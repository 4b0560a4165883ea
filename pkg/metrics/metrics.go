package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TrafficStatements counts background statements by category and outcome.
	TrafficStatements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pganomaly_traffic_statements_total",
			Help: "Background traffic statements executed",
		},
		[]string{"target", "category", "outcome"},
	)

	// TrafficCycles counts completed background traffic cycles
	TrafficCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pganomaly_traffic_cycles_total",
			Help: "Background traffic cycles completed",
		},
		[]string{"target"},
	)

	// TrafficConnectFailures counts cycles skipped because no connection could be opened
	TrafficConnectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pganomaly_traffic_connect_failures_total",
			Help: "Background traffic connection failures",
		},
		[]string{"target"},
	)

	// GeneratorRunning is 1 while a target's background generator runs
	GeneratorRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pganomaly_generator_running",
			Help: "Whether background traffic is running for a target",
		},
		[]string{"target"},
	)

	// ScenarioExecutions counts anomaly scenario executions by outcome
	ScenarioExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pganomaly_scenario_executions_total",
			Help: "Anomaly scenario executions",
		},
		[]string{"target", "scenario", "outcome"},
	)

	// ScenarioDuration tracks how long each scenario burst takes
	ScenarioDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pganomaly_scenario_duration_seconds",
			Help:    "Duration of anomaly scenario executions",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"scenario"},
	)

	// SchedulerRound is the current anomaly round per target
	SchedulerRound = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pganomaly_scheduler_round",
			Help: "Current anomaly round",
		},
		[]string{"target"},
	)

	// TargetRuns counts per-target demo runs by outcome (completed, skipped, interrupted)
	TargetRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pganomaly_target_runs_total",
			Help: "Demo runs per target by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(TrafficStatements)
	prometheus.MustRegister(TrafficCycles)
	prometheus.MustRegister(TrafficConnectFailures)
	prometheus.MustRegister(GeneratorRunning)
	prometheus.MustRegister(ScenarioExecutions)
	prometheus.MustRegister(ScenarioDuration)
	prometheus.MustRegister(SchedulerRound)
	prometheus.MustRegister(TargetRuns)
}

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeFailed      = "failed"
	OutcomeCompleted   = "completed"
	OutcomeSkipped     = "skipped"
	OutcomeInterrupted = "interrupted"
)
