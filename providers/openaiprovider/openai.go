// Package openaiprovider adapts the OpenAI chat-completions API to
// agentloop.LLMProvider.
package openaiprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/loomrun/loom/internal/agentloop"
	"github.com/loomrun/loom/internal/thread"
	"github.com/loomrun/loom/pkg/events"
)

// Provider implements agentloop.LLMProvider against GPT models.
type Provider struct {
	client       *openai.Client
	defaultModel string
}

// New builds a Provider. apiKey is required; defaultModel falls back to
// "gpt-4o" when empty.
func New(apiKey, defaultModel string) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openaiprovider: API key is required")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &Provider{client: openai.NewClient(apiKey), defaultModel: defaultModel}, nil
}

func (p *Provider) model(meta agentloop.ThreadMeta) string {
	if meta.Model != "" {
		return meta.Model
	}
	return p.defaultModel
}

// Complete streams one model turn via OpenAI's SSE chat-completions API.
func (p *Provider) Complete(ctx context.Context, evs []events.Event, tools []agentloop.ToolDescriptor, meta agentloop.ThreadMeta) (<-chan agentloop.CompletionChunk, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model(meta),
		Messages: convertEvents(evs),
		Stream:   true,
	}
	if meta.MaxOutputChars > 0 {
		req.MaxTokens = meta.MaxOutputChars / 4
	}
	if len(tools) > 0 {
		req.Tools = convertTools(tools)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openaiprovider: %w", err)
	}

	out := make(chan agentloop.CompletionChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		processStream(ctx, stream, out)
	}()

	return out, nil
}

func convertTools(tools []agentloop.ToolDescriptor) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params map[string]any
		if len(t.ParametersSchema) > 0 {
			_ = json.Unmarshal(t.ParametersSchema, &params)
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// convertEvents flattens a thread's historical events into OpenAI chat
// messages, rendering tool requests/responses via OpenAI's
// tool_calls/tool role convention rather than Anthropic's content-block
// one.
func convertEvents(evs []events.Event) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	for _, e := range evs {
		switch e.Kind {
		case events.KindMessage:
			role := openai.ChatMessageRoleUser
			if e.Message.Role == events.RoleAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			var text strings.Builder
			for _, part := range e.Message.ContentParts {
				text.WriteString(part.Text)
			}
			out = append(out, openai.ChatCompletionMessage{Role: role, Content: text.String()})
		case events.KindToolRequest:
			out = append(out, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   e.ToolRequest.ToolRequestID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      e.ToolRequest.Name,
						Arguments: e.ToolRequest.Args,
					},
				}},
			})
		case events.KindToolResponse:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    e.ToolResponse.Output,
				ToolCallID: e.ToolResponse.ToolRequestID,
			})
		case events.KindSummary:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: "[summary of earlier conversation] " + e.Summary.Text,
			})
		}
	}
	return out
}

// processStream drains one OpenAI SSE stream, assembling tool_calls
// across their delta fragments (OpenAI streams tool call args as
// incremental JSON fragments per index, unlike plain text) and emitting
// each completed call once the stream signals finish_reason=tool_calls
// or ends.
func processStream(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- agentloop.CompletionChunk) {
	type partialCall struct {
		id, name string
		args     strings.Builder
	}
	calls := make(map[int]*partialCall)

	flush := func() {
		for _, c := range calls {
			if c.id == "" || c.name == "" {
				continue
			}
			out <- agentloop.CompletionChunk{Kind: agentloop.ChunkToolCall, ToolCall: &events.ToolRequestPayload{
				ToolRequestID: c.id,
				Name:          c.name,
				Args:          c.args.String(),
			}}
		}
		calls = make(map[int]*partialCall)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				flush()
				return
			}
			out <- agentloop.CompletionChunk{Kind: agentloop.ChunkText, TextDelta: fmt.Sprintf("[openai stream error: %v]", err)}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if resp.Usage != nil {
			out <- agentloop.CompletionChunk{Kind: agentloop.ChunkUsageDelta, Usage: &thread.UsageDelta{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
			}}
		}
		if choice.Delta.Content != "" {
			out <- agentloop.CompletionChunk{Kind: agentloop.ChunkText, TextDelta: choice.Delta.Content}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			if calls[idx] == nil {
				calls[idx] = &partialCall{}
			}
			if tc.ID != "" {
				calls[idx].id = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				calls[idx].args.WriteString(tc.Function.Arguments)
			}
		}
		if choice.FinishReason == "tool_calls" {
			flush()
		}
	}
}
