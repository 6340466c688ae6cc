package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/loomrun/loom/internal/thread"
	"github.com/loomrun/loom/pkg/events"
	"github.com/loomrun/loom/toolkit/schema"
)

// delegateArgs/redirectArgs mirror the JSON argument shape a provider
// sends for the delegate(agentName, query) and redirect(agentName, query)
// special tools.
type delegateArgs struct {
	AgentName string `json:"agentName"`
	Query     string `json:"query"`
}

type queryUserArgs struct {
	Message string `json:"message"`
}

// dispatchTool executes one ToolRequest and returns its response string.
// No error ever escapes this method: execution failures and refusals
// alike become the response text.
func (a *Agent) dispatchTool(ctx context.Context, th *thread.Thread, req events.ToolRequestPayload) string {
	if a.Config.Tracer != nil {
		var span trace.Span
		ctx, span = a.Config.Tracer.StartToolDispatch(ctx, req.Name)
		defer span.End()
	}

	switch req.Name {
	case "delegate":
		return a.dispatchDelegate(ctx, th, req.Args)
	case "redirect":
		return a.dispatchRedirect(ctx, th, req.Args)
	case "queryUser":
		return a.dispatchQueryUser(req.Args)
	default:
		return a.dispatchGeneric(ctx, req)
	}
}

func (a *Agent) dispatchGeneric(ctx context.Context, req events.ToolRequestPayload) string {
	tool, ok := a.Config.Toolbox.Lookup(ctx, a.Config.CommandContext, req.Name)
	if !ok {
		return fmt.Sprintf("tool %q is not available", req.Name)
	}

	if err := schema.Validate(string(tool.ParametersSchema), req.Args); err != nil {
		if a.Config.Metrics != nil {
			a.Config.Metrics.ToolDispatchCounter.WithLabelValues(req.Name, "invalid_args").Inc()
		}
		return fmt.Sprintf("invalid arguments for %q: %v", req.Name, err)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if a.Config.ToolTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, a.Config.ToolTimeout)
		defer cancel()
	}

	start := time.Now()
	output, err := tool.Invoke(callCtx, req.Args)
	status := "success"
	if err != nil {
		status = "error"
		output = err.Error()
		if a.Config.Tracer != nil {
			a.Config.Tracer.RecordError(trace.SpanFromContext(ctx), err)
		}
	}
	if a.Config.Metrics != nil {
		a.Config.Metrics.ToolDispatchCounter.WithLabelValues(req.Name, status).Inc()
		a.Config.Metrics.ToolDispatchDuration.WithLabelValues(req.Name, status).Observe(time.Since(start).Seconds())
	}
	return output
}

// dispatchDelegate forks th under agentName, runs the named agent on the
// fork with query as its new input, and merges the fork's price back into
// th once the nested run completes.
func (a *Agent) dispatchDelegate(ctx context.Context, th *thread.Thread, argsJSON string) string {
	var args delegateArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Sprintf("delegate: malformed arguments: %v", err)
	}

	sub, ok := a.Config.Registry.Lookup(args.AgentName)
	if !ok {
		return fmt.Sprintf("delegate: unknown agent %q", args.AgentName)
	}

	child, err := th.Fork(args.AgentName)
	if err != nil {
		return fmt.Sprintf("delegate: %v", err)
	}

	if err := sub.Run(ctx, child, args.Query); err != nil {
		th.Merge(child)
		return fmt.Sprintf("delegate: %s failed: %v", args.AgentName, err)
	}
	th.Merge(child)

	name, ok := child.LastAgentName()
	if !ok {
		return ""
	}
	return lastMessageText(child, name)
}

// dispatchRedirect runs the named agent on the caller's own (unforked)
// thread: events and price accumulate directly on th.
func (a *Agent) dispatchRedirect(ctx context.Context, th *thread.Thread, argsJSON string) string {
	var args delegateArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Sprintf("redirect: malformed arguments: %v", err)
	}

	sub, ok := a.Config.Registry.Lookup(args.AgentName)
	if !ok {
		return fmt.Sprintf("redirect: unknown agent %q", args.AgentName)
	}

	if err := sub.Run(ctx, th, args.Query); err != nil {
		return fmt.Sprintf("redirect: %s failed: %v", args.AgentName, err)
	}

	name, ok := th.LastAgentName()
	if !ok {
		return ""
	}
	return lastMessageText(th, name)
}

// dispatchQueryUser enqueues a prompt for the user without blocking the
// current turn.
func (a *Agent) dispatchQueryUser(argsJSON string) string {
	var args queryUserArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Sprintf("queryUser: malformed arguments: %v", err)
	}
	if a.Config.QueryQueue != nil {
		a.Config.QueryQueue.Enqueue(args.Message)
	}
	return "queued for the user; continue without waiting"
}

// lastMessageText renders the most recent assistant message by name as
// plain text, concatenating its content parts.
func lastMessageText(th *thread.Thread, name string) string {
	evs := th.Events()
	for i := len(evs) - 1; i >= 0; i-- {
		e := evs[i]
		if e.Kind != events.KindMessage || e.Message == nil || e.Message.Role != events.RoleAssistant || e.Message.Name != name {
			continue
		}
		var out string
		for _, p := range e.Message.ContentParts {
			out += p.Text
		}
		return out
	}
	return ""
}
