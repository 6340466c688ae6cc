package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// NewMetrics takes a Registerer precisely so tests can exercise the real
// field set against an isolated registry instead of the process-global
// default one.
func TestNewMetricsRunIterations(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RunIterations.WithLabelValues("researcher", "tool_calls").Inc()
	m.RunIterations.WithLabelValues("researcher", "tool_calls").Inc()
	m.RunIterations.WithLabelValues("writer", "terminal").Inc()

	if count := testutil.CollectAndCount(m.RunIterations); count != 2 {
		t.Fatalf("expected 2 label combinations, got %d", count)
	}
	if got := testutil.ToFloat64(m.RunIterations.WithLabelValues("researcher", "tool_calls")); got != 2 {
		t.Fatalf("expected researcher/tool_calls=2, got %v", got)
	}
}

func TestNewMetricsRunPrice(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RunPrice.WithLabelValues("researcher").Add(0.03)
	m.RunPrice.WithLabelValues("researcher").Add(0.02)

	if got := testutil.ToFloat64(m.RunPrice.WithLabelValues("researcher")); got != 0.05 {
		t.Fatalf("expected accumulated price 0.05, got %v", got)
	}
}

func TestNewMetricsThreadEventsAppended(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ThreadEventsAppended.WithLabelValues("message").Inc()
	m.ThreadEventsAppended.WithLabelValues("tool_request").Inc()
	m.ThreadEventsAppended.WithLabelValues("tool_response").Inc()

	if count := testutil.CollectAndCount(m.ThreadEventsAppended); count != 3 {
		t.Fatalf("expected 3 label combinations, got %d", count)
	}
}

func TestNewMetricsBudgetedViewCompactions(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.BudgetedViewCompactions.WithLabelValues("lead").Inc()

	if got := testutil.ToFloat64(m.BudgetedViewCompactions.WithLabelValues("lead")); got != 1 {
		t.Fatalf("expected 1 compaction recorded, got %v", got)
	}
}

func TestNewMetricsMailboxMessages(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.MailboxMessages.WithLabelValues("queued").Inc()
	m.MailboxMessages.WithLabelValues("waiter_woken").Inc()
	m.MailboxMessages.WithLabelValues("waiter_woken").Inc()

	if got := testutil.ToFloat64(m.MailboxMessages.WithLabelValues("waiter_woken")); got != 2 {
		t.Fatalf("expected waiter_woken=2, got %v", got)
	}
}

func TestNewMetricsTaskClaimAttempts(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.TaskClaimAttempts.WithLabelValues("succeeded").Inc()
	m.TaskClaimAttempts.WithLabelValues("rejected").Inc()
	m.TaskClaimAttempts.WithLabelValues("rejected").Inc()

	if got := testutil.ToFloat64(m.TaskClaimAttempts.WithLabelValues("rejected")); got != 2 {
		t.Fatalf("expected rejected=2, got %v", got)
	}
}

func TestNewMetricsToolDispatch(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ToolDispatchCounter.WithLabelValues("search", "success").Inc()
	m.ToolDispatchDuration.WithLabelValues("search", "success").Observe(0.25)

	if got := testutil.ToFloat64(m.ToolDispatchCounter.WithLabelValues("search", "success")); got != 1 {
		t.Fatalf("expected 1 tool dispatch recorded, got %v", got)
	}
	if count := testutil.CollectAndCount(m.ToolDispatchDuration); count != 1 {
		t.Fatalf("expected 1 histogram series, got %d", count)
	}
}

func TestNewMetricsActiveTeammates(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ActiveTeammates.WithLabelValues("team1").Inc()
	m.ActiveTeammates.WithLabelValues("team1").Inc()
	m.ActiveTeammates.WithLabelValues("team1").Dec()

	if got := testutil.ToFloat64(m.ActiveTeammates.WithLabelValues("team1")); got != 1 {
		t.Fatalf("expected 1 active teammate, got %v", got)
	}
}
