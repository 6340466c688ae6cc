// Package anthropicprovider adapts the Anthropic Messages API to
// agentloop.LLMProvider: it converts a thread's event history and tool
// descriptors into a streaming request, and converts the resulting SSE
// events back into agentloop.CompletionChunk values.
package anthropicprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/loomrun/loom/internal/agentloop"
	"github.com/loomrun/loom/internal/thread"
	"github.com/loomrun/loom/pkg/events"
)

// Config holds the settings needed to construct a Provider.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
}

// Provider implements agentloop.LLMProvider against Claude models.
type Provider struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int
}

// New builds a Provider, applying the same defaulting conventions used
// elsewhere in this module's ambient stack: zero-valued optional fields
// fall back to sane constants rather than failing construction.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropicprovider: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

func (p *Provider) model(meta agentloop.ThreadMeta) string {
	if meta.Model != "" {
		return meta.Model
	}
	return p.defaultModel
}

// Complete streams one model turn. Errors during request construction
// (malformed tool schemas) are returned directly; errors encountered
// mid-stream are folded into a final text chunk so the caller always
// sees a clean channel close rather than a dangling goroutine.
func (p *Provider) Complete(ctx context.Context, evs []events.Event, tools []agentloop.ToolDescriptor, meta agentloop.ThreadMeta) (<-chan agentloop.CompletionChunk, error) {
	messages := convertEvents(evs)
	anthropicTools, err := convertTools(tools)
	if err != nil {
		return nil, fmt.Errorf("anthropicprovider: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(meta)),
		Messages:  messages,
		MaxTokens: int64(p.maxTokens),
	}
	if len(anthropicTools) > 0 {
		params.Tools = anthropicTools
	}

	out := make(chan agentloop.CompletionChunk)

	go func() {
		defer close(out)
		stream := p.client.Messages.NewStreaming(ctx, params)
		processStream(stream, out)
		if err := stream.Err(); err != nil {
			out <- agentloop.CompletionChunk{Kind: agentloop.ChunkText, TextDelta: fmt.Sprintf("[anthropic stream error: %v]", err)}
		}
	}()

	return out, nil
}

func convertTools(tools []agentloop.ToolDescriptor) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		if len(t.ParametersSchema) > 0 {
			if err := json.Unmarshal(t.ParametersSchema, &schema); err != nil {
				return nil, fmt.Errorf("tool %q: invalid parameters schema: %w", t.Name, err)
			}
		}
		inputSchema := anthropic.ToolInputSchemaParam{}
		if props, ok := schema["properties"]; ok {
			inputSchema.Properties = props
		}
		if req := toStringSlice(schema["required"]); len(req) > 0 {
			inputSchema.Required = req
		}
		tool := anthropic.ToolUnionParamOfTool(inputSchema, t.Name)
		tool.OfTool.Description = anthropic.String(t.Description)
		out = append(out, tool)
	}
	return out, nil
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// convertEvents flattens a thread's historical events into Anthropic
// chat turns. Summaries are rendered as a leading user-role note so the
// model sees compaction as ordinary conversational context.
func convertEvents(evs []events.Event) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, e := range evs {
		switch e.Kind {
		case events.KindMessage:
			role := anthropic.MessageParamRoleUser
			if e.Message.Role == events.RoleAssistant {
				role = anthropic.MessageParamRoleAssistant
			}
			var text strings.Builder
			for _, part := range e.Message.ContentParts {
				text.WriteString(part.Text)
			}
			out = append(out, anthropic.MessageParam{
				Role:    role,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(text.String())},
			})
		case events.KindToolRequest:
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewToolUseBlock(e.ToolRequest.ToolRequestID, json.RawMessage(e.ToolRequest.Args), e.ToolRequest.Name)},
			})
		case events.KindToolResponse:
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewToolResultBlock(e.ToolResponse.ToolRequestID, e.ToolResponse.Output, false)},
			})
		case events.KindSummary:
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock("[summary of earlier conversation] " + e.Summary.Text)},
			})
		}
	}
	return out
}

// processStream drains one Anthropic SSE stream into chunks, assembling
// tool_use input fragments as they arrive and closing out a tool call on
// its content_block_stop.
func processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- agentloop.CompletionChunk) {
	var toolID, toolName string
	var toolInput strings.Builder
	inToolUse := false

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				toolID = toolUse.ID
				toolName = toolUse.Name
				toolInput.Reset()
				inToolUse = true
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- agentloop.CompletionChunk{Kind: agentloop.ChunkText, TextDelta: delta.Text}
				}
			case "input_json_delta":
				toolInput.WriteString(delta.PartialJSON)
			}
		case "content_block_stop":
			if inToolUse {
				out <- agentloop.CompletionChunk{Kind: agentloop.ChunkToolCall, ToolCall: &events.ToolRequestPayload{
					ToolRequestID: toolID,
					Name:          toolName,
					Args:          toolInput.String(),
				}}
				inToolUse = false
			}
		case "message_start":
			usage := event.AsMessageStart().Message.Usage
			if usage.InputTokens > 0 {
				out <- agentloop.CompletionChunk{Kind: agentloop.ChunkUsageDelta, Usage: &thread.UsageDelta{InputTokens: int(usage.InputTokens)}}
			}
		case "message_delta":
			usage := event.AsMessageDelta().Usage
			if usage.OutputTokens > 0 {
				out <- agentloop.CompletionChunk{Kind: agentloop.ChunkUsageDelta, Usage: &thread.UsageDelta{OutputTokens: int(usage.OutputTokens)}}
			}
		case "message_stop":
			return
		}
	}
}
