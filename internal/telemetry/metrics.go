// Package telemetry wires the runtime's ambient observability: Prometheus
// counters/histograms for thread, mailbox, and run-loop activity, and an
// OpenTelemetry tracer for per-turn and per-tool spans. Both are pure
// side-channels — nothing in pkg/events or internal/thread depends on this
// package; callers in internal/agentloop and internal/team invoke it
// opportunistically.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the runtime's Prometheus instrumentation.
type Metrics struct {
	// RunIterations counts agent-loop turns by agent name and outcome
	// (tool_calls|terminal|threshold|error).
	RunIterations *prometheus.CounterVec

	// RunPrice tracks accumulated per-run price by agent name.
	RunPrice *prometheus.CounterVec

	// ToolDispatchDuration measures tool execution latency in seconds.
	// Labels: tool_name, status (success|error)
	ToolDispatchDuration *prometheus.HistogramVec

	// ToolDispatchCounter counts tool invocations by name and status.
	ToolDispatchCounter *prometheus.CounterVec

	// ThreadEventsAppended counts events appended to conversation threads
	// by kind (message|tool_request|tool_response|summary).
	ThreadEventsAppended *prometheus.CounterVec

	// BudgetedViewCompactions counts getBudgetedView calls that triggered
	// compaction, by thread name.
	BudgetedViewCompactions *prometheus.CounterVec

	// MailboxMessages counts Mailbox.Send calls by delivery mode
	// (queued|waiter_woken).
	MailboxMessages *prometheus.CounterVec

	// TaskClaimAttempts counts TaskList.Claim outcomes (succeeded|rejected).
	TaskClaimAttempts *prometheus.CounterVec

	// ActiveTeammates is a gauge of currently non-stopped TeammateSessions
	// by team id.
	ActiveTeammates *prometheus.GaugeVec
}

// NewMetrics registers the runtime's metric families against reg. A nil
// reg registers against the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunIterations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_run_iterations_total",
				Help: "Total agent run-loop iterations by agent and outcome",
			},
			[]string{"agent", "outcome"},
		),
		RunPrice: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_run_price_total",
				Help: "Accumulated run price by agent",
			},
			[]string{"agent"},
		),
		ToolDispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_tool_dispatch_duration_seconds",
				Help:    "Tool dispatch latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name", "status"},
		),
		ToolDispatchCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_tool_dispatch_total",
				Help: "Tool dispatches by name and status",
			},
			[]string{"tool_name", "status"},
		),
		ThreadEventsAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_thread_events_appended_total",
				Help: "Events appended to conversation threads by kind",
			},
			[]string{"kind"},
		),
		BudgetedViewCompactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_budgeted_view_compactions_total",
				Help: "getBudgetedView calls that triggered compaction, by thread name",
			},
			[]string{"thread_name"},
		),
		MailboxMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_mailbox_messages_total",
				Help: "Mailbox sends by delivery mode",
			},
			[]string{"mode"},
		),
		TaskClaimAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_task_claim_attempts_total",
				Help: "TaskList.Claim outcomes",
			},
			[]string{"outcome"},
		),
		ActiveTeammates: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loom_active_teammates",
				Help: "Currently non-stopped teammate sessions by team id",
			},
			[]string{"team_id"},
		),
	}
}
