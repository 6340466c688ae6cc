package agentloop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/loomrun/loom/internal/interactor"
	"github.com/loomrun/loom/internal/runtimeconfig"
	"github.com/loomrun/loom/internal/thread"
	"github.com/loomrun/loom/pkg/events"
)

// scriptedProvider replays a fixed sequence of turns; each call to
// Complete returns the next turn's chunks.
type scriptedProvider struct {
	turns [][]CompletionChunk
	calls int
}

func (p *scriptedProvider) Complete(ctx context.Context, evs []events.Event, tools []ToolDescriptor, meta ThreadMeta) (<-chan CompletionChunk, error) {
	ch := make(chan CompletionChunk)
	turn := p.turns[p.calls]
	p.calls++
	go func() {
		defer close(ch)
		for _, c := range turn {
			ch <- c
		}
	}()
	return ch, nil
}

type stubToolbox struct {
	tools map[string]ToolDescriptor
}

func (s *stubToolbox) GetTools(ctx context.Context, cc CommandContext) []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t)
	}
	return out
}

func (s *stubToolbox) Lookup(ctx context.Context, cc CommandContext, name string) (ToolDescriptor, bool) {
	t, ok := s.tools[name]
	return t, ok
}

type stubRegistry struct {
	agents map[string]*Agent
}

func (r *stubRegistry) Lookup(name string) (*Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

func newTestAgent(name string, provider LLMProvider, toolbox Toolbox, registry Registry) *Agent {
	cfg := LoopConfig{
		RunOptions: runtimeconfig.DefaultRunOptions(),
		Toolbox:    toolbox,
		Registry:   registry,
		Interactor: interactor.NewChanInteractor(32),
	}
	return New(name, provider, cfg)
}

func TestRunStopsNaturallyOnEmptyToolCalls(t *testing.T) {
	provider := &scriptedProvider{turns: [][]CompletionChunk{
		{{Kind: ChunkText, TextDelta: "hello there"}},
	}}
	agent := newTestAgent("bot", provider, &stubToolbox{}, &stubRegistry{})
	th := thread.New("alice", "root")

	if err := agent.Run(context.Background(), th, "hi"); err != nil {
		t.Fatal(err)
	}

	evs := th.Events()
	if len(evs) != 2 {
		t.Fatalf("expected [user, assistant], got %d events: %+v", len(evs), evs)
	}
	if evs[1].Message.Role != events.RoleAssistant || evs[1].Message.ContentParts[0].Text != "hello there" {
		t.Fatalf("unexpected assistant message: %+v", evs[1])
	}
	if th.RunStatus() != thread.StatusStopped {
		t.Fatalf("expected STOPPED after natural completion, got %s", th.RunStatus())
	}
}

func TestRunDispatchesToolAndContinues(t *testing.T) {
	provider := &scriptedProvider{turns: [][]CompletionChunk{
		{{Kind: ChunkToolCall, ToolCall: &events.ToolRequestPayload{ToolRequestID: "t1", Name: "search", Args: `{"q":"go"}`}}},
		{{Kind: ChunkText, TextDelta: "done"}},
	}}
	toolbox := &stubToolbox{tools: map[string]ToolDescriptor{
		"search": {
			Name: "search",
			Invoke: func(ctx context.Context, argsJSON string) (string, error) {
				return "results for go", nil
			},
		},
	}}
	agent := newTestAgent("bot", provider, toolbox, &stubRegistry{})
	th := thread.New("alice", "root")

	if err := agent.Run(context.Background(), th, "search go"); err != nil {
		t.Fatal(err)
	}

	var sawResponse bool
	for _, e := range th.Events() {
		if e.Kind == events.KindToolResponse && e.ToolResponse.Output == "results for go" {
			sawResponse = true
		}
	}
	if !sawResponse {
		t.Fatal("expected a ToolResponse with the tool's output")
	}
	if provider.calls != 2 {
		t.Fatalf("expected 2 provider turns (initial + after tool result), got %d", provider.calls)
	}
}

func TestRunCapturesToolErrorAsResponseText(t *testing.T) {
	provider := &scriptedProvider{turns: [][]CompletionChunk{
		{{Kind: ChunkToolCall, ToolCall: &events.ToolRequestPayload{ToolRequestID: "t1", Name: "fail", Args: `{}`}}},
		{{Kind: ChunkText, TextDelta: "ok"}},
	}}
	toolbox := &stubToolbox{tools: map[string]ToolDescriptor{
		"fail": {
			Name: "fail",
			Invoke: func(ctx context.Context, argsJSON string) (string, error) {
				return "", errBoom
			},
		},
	}}
	agent := newTestAgent("bot", provider, toolbox, &stubRegistry{})
	th := thread.New("alice", "root")

	if err := agent.Run(context.Background(), th, "try"); err != nil {
		t.Fatal(err)
	}

	var sawErrText bool
	for _, e := range th.Events() {
		if e.Kind == events.KindToolResponse && e.ToolResponse.Output == errBoom.Error() {
			sawErrText = true
		}
	}
	if !sawErrText {
		t.Fatal("expected the tool error message captured as the response output")
	}
}

func TestRunStopsOnIterationThreshold(t *testing.T) {
	toolCall := CompletionChunk{Kind: ChunkToolCall, ToolCall: &events.ToolRequestPayload{ToolRequestID: "t", Name: "noop", Args: "{}"}}
	provider := &scriptedProvider{turns: [][]CompletionChunk{{toolCall}, {toolCall}, {toolCall}}}
	toolbox := &stubToolbox{tools: map[string]ToolDescriptor{
		"noop": {Name: "noop", Invoke: func(ctx context.Context, argsJSON string) (string, error) { return "ok", nil }},
	}}
	cfg := LoopConfig{
		RunOptions: runtimeconfig.RunOptions{IterationsThreshold: 2},
		Toolbox:    toolbox,
		Registry:   &stubRegistry{},
		Interactor: interactor.NewChanInteractor(32),
	}
	agent := New("bot", provider, cfg)
	th := thread.New("alice", "root")

	if err := agent.Run(context.Background(), th, "go"); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 2 {
		t.Fatalf("expected the loop to stop after 2 iterations, got %d provider calls", provider.calls)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	provider := &scriptedProvider{turns: [][]CompletionChunk{{{Kind: ChunkText, TextDelta: "x"}}}}
	agent := newTestAgent("bot", provider, &stubToolbox{}, &stubRegistry{})
	th := thread.New("alice", "root")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := agent.Run(ctx, th, "hi"); err == nil {
		t.Fatal("expected cancelled context to abort the run with an error")
	}
}

func TestDelegateForksRunsAndMerges(t *testing.T) {
	researcherProvider := &scriptedProvider{turns: [][]CompletionChunk{
		{{Kind: ChunkText, TextDelta: "researched answer"}, {Kind: ChunkUsageDelta, Usage: &thread.UsageDelta{Price: 1.25}}},
	}}
	researcher := newTestAgent("researcher", researcherProvider, &stubToolbox{}, &stubRegistry{})
	registry := &stubRegistry{agents: map[string]*Agent{"researcher": researcher}}

	args, _ := json.Marshal(delegateArgs{AgentName: "researcher", Query: "look into it"})
	leadProvider := &scriptedProvider{turns: [][]CompletionChunk{
		{{Kind: ChunkToolCall, ToolCall: &events.ToolRequestPayload{ToolRequestID: "d1", Name: "delegate", Args: string(args)}}},
		{{Kind: ChunkText, TextDelta: "relayed"}},
	}}
	lead := newTestAgent("lead", leadProvider, &stubToolbox{}, registry)
	th := thread.New("alice", "root")

	if err := lead.Run(context.Background(), th, "please research"); err != nil {
		t.Fatal(err)
	}

	if th.Price() != 1.25 {
		t.Fatalf("expected the delegate's price merged back into the parent, got %v", th.Price())
	}

	var sawDelegateOutput bool
	for _, e := range th.Events() {
		if e.Kind == events.KindToolResponse && e.ToolResponse.Output == "researched answer" {
			sawDelegateOutput = true
		}
	}
	if !sawDelegateOutput {
		t.Fatal("expected delegate's ToolResponse to carry the sub-agent's final message")
	}
}

var errBoom = testErr("boom")

type testErr string

func (e testErr) Error() string { return string(e) }
