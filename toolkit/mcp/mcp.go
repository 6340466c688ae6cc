// Package mcp adapts Model Context Protocol servers into an
// agentloop.Toolbox: every tool a connected server advertises becomes a
// ToolDescriptor whose Invoke dispatches a CallTool request.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/loomrun/loom/internal/agentloop"
)

// ServerConfig describes how to reach one MCP server.
type ServerConfig struct {
	Name    string
	Type    string // "stdio" | "http" | "sse"
	URL     string
	Command string
	Args    []string
	Env     map[string]string
	Headers map[string]string
}

// Toolbox connects to a set of MCP servers and exposes their tools
// under a "<server>_<tool>" naming convention so names never collide
// across servers.
type Toolbox struct {
	mu      sync.RWMutex
	clients map[string]*client.Client
	tools   []agentloop.ToolDescriptor
}

// New constructs an empty Toolbox; call Connect for each configured
// server before handing it to an agentloop.LoopConfig.
func New() *Toolbox {
	return &Toolbox{clients: make(map[string]*client.Client)}
}

// Connect starts, initializes, and lists tools from one MCP server,
// registering its tools under the Toolbox.
func (t *Toolbox) Connect(ctx context.Context, cfg ServerConfig) error {
	mcpClient, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("mcp: start %s: %w", cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{Params: mcp.InitializeParams{
		ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		ClientInfo:      mcp.Implementation{Name: "loom", Version: "0.1.0"},
	}}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("mcp: initialize %s: %w", cfg.Name, err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("mcp: list tools %s: %w", cfg.Name, err)
	}

	descriptors := make([]agentloop.ToolDescriptor, 0, len(listResp.Tools))
	for _, tool := range listResp.Tools {
		schema, err := json.Marshal(tool.InputSchema)
		if err != nil {
			mcpClient.Close()
			return fmt.Errorf("mcp: marshal schema for %s: %w", tool.Name, err)
		}
		descriptors = append(descriptors, agentloop.ToolDescriptor{
			Name:             fmt.Sprintf("%s_%s", cfg.Name, tool.Name),
			Description:      tool.Description,
			ParametersSchema: schema,
			Invoke:           invoker(mcpClient, tool.Name),
		})
	}

	t.mu.Lock()
	t.clients[cfg.Name] = mcpClient
	t.tools = append(t.tools, descriptors...)
	t.mu.Unlock()
	return nil
}

func newClient(cfg ServerConfig) (*client.Client, error) {
	switch cfg.Type {
	case "stdio", "":
		if cfg.Command == "" {
			return nil, fmt.Errorf("command is required for stdio transport")
		}
		envVars := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			envVars = append(envVars, k+"="+v)
		}
		return client.NewStdioMCPClient(cfg.Command, envVars, cfg.Args...)
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("URL is required for http transport")
		}
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return client.NewStreamableHttpClient(cfg.URL, opts...)
	case "sse":
		if cfg.URL == "" {
			return nil, fmt.Errorf("URL is required for sse transport")
		}
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		return client.NewSSEMCPClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("unsupported MCP transport type: %s", cfg.Type)
	}
}

func invoker(mcpClient *client.Client, toolName string) func(ctx context.Context, argsJSON string) (string, error) {
	return func(ctx context.Context, argsJSON string) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		var args map[string]any
		if len(argsJSON) > 0 {
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "", fmt.Errorf("mcp: parse arguments: %w", err)
			}
		}

		resp, err := mcpClient.CallTool(callCtx, mcp.CallToolRequest{Params: mcp.CallToolParams{Name: toolName, Arguments: args}})
		if err != nil {
			return "", fmt.Errorf("mcp: call %s: %w", toolName, err)
		}

		out, err := json.Marshal(resp.Content)
		if err != nil {
			return fmt.Sprintf("%v", resp.Content), nil
		}
		return string(out), nil
	}
}

// GetTools implements agentloop.Toolbox.
func (t *Toolbox) GetTools(ctx context.Context, cc agentloop.CommandContext) []agentloop.ToolDescriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]agentloop.ToolDescriptor, len(t.tools))
	copy(out, t.tools)
	return out
}

// Lookup implements agentloop.Toolbox.
func (t *Toolbox) Lookup(ctx context.Context, cc agentloop.CommandContext, name string) (agentloop.ToolDescriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, d := range t.tools {
		if d.Name == name {
			return d, true
		}
	}
	return agentloop.ToolDescriptor{}, false
}

// Close shuts down every connected MCP client.
func (t *Toolbox) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.clients {
		c.Close()
	}
}
