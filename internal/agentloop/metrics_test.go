package agentloop

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/loomrun/loom/internal/interactor"
	"github.com/loomrun/loom/internal/runtimeconfig"
	"github.com/loomrun/loom/internal/telemetry"
	"github.com/loomrun/loom/internal/thread"
	"github.com/loomrun/loom/pkg/events"
)

func newTestAgentWithMetrics(name string, provider LLMProvider, toolbox Toolbox, registry Registry, metrics *telemetry.Metrics) *Agent {
	cfg := LoopConfig{
		RunOptions: runtimeconfig.DefaultRunOptions(),
		Toolbox:    toolbox,
		Registry:   registry,
		Interactor: interactor.NewChanInteractor(32),
		Metrics:    metrics,
	}
	return New(name, provider, cfg)
}

// Run records one RunIterations/"terminal" sample and one
// ThreadEventsAppended sample per message it appends.
func TestRunRecordsIterationAndAppendMetrics(t *testing.T) {
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	provider := &scriptedProvider{turns: [][]CompletionChunk{{{Kind: ChunkText, TextDelta: "done"}}}}
	agent := newTestAgentWithMetrics("bot", provider, &stubToolbox{}, &stubRegistry{}, metrics)
	th := thread.New("alice", "root")

	if err := agent.Run(context.Background(), th, "hi"); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(metrics.RunIterations.WithLabelValues("bot", "terminal")); got != 1 {
		t.Fatalf("expected 1 terminal iteration, got %v", got)
	}
	// one user message + one assistant message
	if got := testutil.ToFloat64(metrics.ThreadEventsAppended.WithLabelValues("message")); got != 2 {
		t.Fatalf("expected 2 message appends recorded, got %v", got)
	}
}

// Run accumulates per-agent price from usage deltas into RunPrice.
func TestRunRecordsPriceMetric(t *testing.T) {
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	provider := &scriptedProvider{turns: [][]CompletionChunk{
		{
			{Kind: ChunkUsageDelta, Usage: &thread.UsageDelta{Price: 0.04}},
			{Kind: ChunkText, TextDelta: "ok"},
		},
	}}
	agent := newTestAgentWithMetrics("bot", provider, &stubToolbox{}, &stubRegistry{}, metrics)
	th := thread.New("alice", "root")

	if err := agent.Run(context.Background(), th, "hi"); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(metrics.RunPrice.WithLabelValues("bot")); got != 0.04 {
		t.Fatalf("expected accumulated price 0.04, got %v", got)
	}
}

// dispatchGeneric records a tool dispatch, exercising the same
// ToolDispatchCounter/ToolDispatchDuration seam RunIterations shares.
func TestDispatchGenericRecordsToolMetrics(t *testing.T) {
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	toolbox := &stubToolbox{tools: map[string]ToolDescriptor{
		"search": {
			Name:             "search",
			ParametersSchema: []byte(`{"type":"object"}`),
			Invoke: func(ctx context.Context, argsJSON string) (string, error) {
				return "ok", nil
			},
		},
	}}
	provider := &scriptedProvider{turns: [][]CompletionChunk{
		{{Kind: ChunkToolCall, ToolCall: &events.ToolRequestPayload{ToolRequestID: "t1", Name: "search", Args: `{}`}}},
		{{Kind: ChunkText, TextDelta: "done"}},
	}}
	agent := newTestAgentWithMetrics("bot", provider, toolbox, &stubRegistry{}, metrics)
	th := thread.New("alice", "root")

	if err := agent.Run(context.Background(), th, "search"); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(metrics.ToolDispatchCounter.WithLabelValues("search", "success")); got != 1 {
		t.Fatalf("expected 1 successful tool dispatch, got %v", got)
	}
}

// Run and dispatchTool open real spans via StartRun/StartToolDispatch when
// the loop carries a Tracer; this must not panic or change the run's
// outcome.
func TestRunAndDispatchUseTracerWhenConfigured(t *testing.T) {
	tracer, shutdown := telemetry.NewTracer(telemetry.TraceConfig{ServiceName: "loom-test"})
	defer func() { _ = shutdown(context.Background()) }()

	toolbox := &stubToolbox{tools: map[string]ToolDescriptor{
		"search": {
			Name:             "search",
			ParametersSchema: []byte(`{"type":"object"}`),
			Invoke: func(ctx context.Context, argsJSON string) (string, error) {
				return "", errors.New("boom")
			},
		},
	}}
	provider := &scriptedProvider{turns: [][]CompletionChunk{
		{{Kind: ChunkToolCall, ToolCall: &events.ToolRequestPayload{ToolRequestID: "t1", Name: "search", Args: `{}`}}},
		{{Kind: ChunkText, TextDelta: "done"}},
	}}
	cfg := LoopConfig{
		RunOptions: runtimeconfig.DefaultRunOptions(),
		Toolbox:    toolbox,
		Registry:   &stubRegistry{},
		Interactor: interactor.NewChanInteractor(32),
		Tracer:     tracer,
	}
	agent := New("bot", provider, cfg)
	th := thread.New("alice", "root")

	if err := agent.Run(context.Background(), th, "search"); err != nil {
		t.Fatal(err)
	}
}
