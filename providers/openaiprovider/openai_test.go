package openaiprovider

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/loomrun/loom/internal/agentloop"
	"github.com/loomrun/loom/pkg/events"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Fatal("expected missing API key to be rejected")
	}
}

func TestNewAppliesDefaultModel(t *testing.T) {
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.defaultModel != "gpt-4o" {
		t.Fatalf("expected default model gpt-4o, got %s", p.defaultModel)
	}
}

func TestModelPrefersMetaOverride(t *testing.T) {
	p, _ := New("sk-test", "gpt-4o")
	if got := p.model(agentloop.ThreadMeta{Model: "gpt-4-turbo"}); got != "gpt-4-turbo" {
		t.Fatalf("expected meta override, got %s", got)
	}
}

func TestConvertEventsRendersToolRoleTurns(t *testing.T) {
	evs := []events.Event{
		{Kind: events.KindMessage, Message: &events.MessagePayload{Role: events.RoleUser, ContentParts: []events.ContentPart{{Type: "text", Text: "hi"}}}},
		{Kind: events.KindToolRequest, ToolRequest: &events.ToolRequestPayload{ToolRequestID: "t1", Name: "search", Args: `{}`}},
		{Kind: events.KindToolResponse, ToolResponse: &events.ToolResponsePayload{ToolRequestID: "t1", Output: "ok"}},
	}
	out := convertEvents(evs)
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if out[1].ToolCalls[0].ID != "t1" || out[1].Role != openai.ChatMessageRoleAssistant {
		t.Fatalf("expected tool request rendered as assistant tool_calls message, got %+v", out[1])
	}
	if out[2].Role != openai.ChatMessageRoleTool || out[2].ToolCallID != "t1" {
		t.Fatalf("expected tool response rendered with tool role and matching call id, got %+v", out[2])
	}
}

func TestConvertToolsMapsFunctionDefinition(t *testing.T) {
	tools := []agentloop.ToolDescriptor{{Name: "search", Description: "search the web", ParametersSchema: []byte(`{"type":"object"}`)}}
	out := convertTools(tools)
	if len(out) != 1 || out[0].Function.Name != "search" {
		t.Fatalf("expected one converted tool named search, got %+v", out)
	}
}
