// Package agentloop implements the per-turn Agent run loop: ask the
// provider, dispatch any tool calls synchronously, feed the responses
// back, and decide when to stop.
package agentloop

import (
	"context"
	"encoding/json"

	"github.com/loomrun/loom/internal/thread"
	"github.com/loomrun/loom/pkg/events"
)

// ChunkKind discriminates a CompletionChunk's variant.
type ChunkKind string

const (
	ChunkText       ChunkKind = "text"
	ChunkToolCall   ChunkKind = "tool_call"
	ChunkUsageDelta ChunkKind = "usage_delta"
)

// CompletionChunk is one increment of a provider's streamed response.
type CompletionChunk struct {
	Kind ChunkKind

	TextDelta string

	ToolCall *events.ToolRequestPayload

	Usage *thread.UsageDelta
}

// ThreadMeta carries run-scoped metadata a provider needs beyond the
// event list itself (model selector, temperature, output budget).
type ThreadMeta struct {
	Model          string
	Temperature    float64
	MaxOutputChars int
}

// LLMProvider is the external, streaming chat-completion contract. The
// core never implements this; providers/ supplies concrete adapters.
type LLMProvider interface {
	Complete(ctx context.Context, evs []events.Event, tools []ToolDescriptor, meta ThreadMeta) (<-chan CompletionChunk, error)
}

// ToolDescriptor is one tool the model may call.
type ToolDescriptor struct {
	Name              string
	Description       string
	ParametersSchema  json.RawMessage
	Invoke            func(ctx context.Context, argsJSON string) (string, error)
}

// CommandContext scopes which tools are available and bounds delegation.
type CommandContext struct {
	Project             string
	SelectedThreadID     string
	EnabledIntegrations []string
	DelegationDepth     int
}

// Toolbox resolves the tools available under a CommandContext.
type Toolbox interface {
	GetTools(ctx context.Context, cc CommandContext) []ToolDescriptor
	Lookup(ctx context.Context, cc CommandContext, name string) (ToolDescriptor, bool)
}

// QueryQueue receives queryUser requests so the front-end can prompt the
// user between turns without blocking the current one.
type QueryQueue interface {
	Enqueue(message string)
}

// Registry locates a named Agent for delegate/redirect dispatch.
type Registry interface {
	Lookup(name string) (*Agent, bool)
}
