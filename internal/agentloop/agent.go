package agentloop

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/loomrun/loom/internal/coreerr"
	"github.com/loomrun/loom/internal/thread"
	"github.com/loomrun/loom/pkg/events"
)

// Agent is a named configuration bound to a provider and toolbox.
type Agent struct {
	Name     string
	Provider LLMProvider
	Config   LoopConfig
}

// New builds an Agent with sanitized loop configuration.
func New(name string, provider LLMProvider, cfg LoopConfig) *Agent {
	return &Agent{Name: name, Provider: provider, Config: sanitizeLoopConfig(cfg)}
}

// Run drives the turn protocol against th until the model produces a
// terminal (tool-call-free) message, an explicit stop signal fires via
// ctx, or a threshold is breached. It appends every event it
// produces to th; text deltas, warnings and errors are also sent through
// the configured Interactor.
func (a *Agent) Run(ctx context.Context, th *thread.Thread, input string) error {
	var span trace.Span
	if a.Config.Tracer != nil {
		ctx, span = a.Config.Tracer.StartRun(ctx, a.Name)
		defer span.End()
	}

	th.AppendUserMessage(a.Name, events.ContentPart{Type: "text", Text: input})
	a.countAppend(events.KindMessage)
	th.ResetUsageForRun(a.Config.RunOptions.IterationsThreshold, a.Config.RunOptions.PriceThreshold)
	th.SetRunStatus(thread.StatusRunning)
	defer th.SetRunStatus(thread.StatusStopped)

	for {
		select {
		case <-ctx.Done():
			a.Config.Interactor.Warn(fmt.Sprintf("%s: run cancelled", a.Name))
			a.countIteration("error")
			a.recordSpanError(span, ctx.Err())
			return ctx.Err()
		default:
		}

		view, err := th.GetBudgetedView(a.Config.RunOptions.CharBudget, a.Config.Compactor)
		if err != nil {
			a.Config.Interactor.Error(fmt.Sprintf("%s: compaction failed: %v", a.Name, err))
			a.countIteration("error")
			wrapped := coreerr.NewProviderError(a.Name, err)
			a.recordSpanError(span, wrapped)
			return wrapped
		}
		if view.Compacted && a.Config.Metrics != nil {
			a.Config.Metrics.BudgetedViewCompactions.WithLabelValues(th.Name()).Inc()
		}

		tools := a.Config.Toolbox.GetTools(ctx, a.Config.CommandContext)
		stream, err := a.Provider.Complete(ctx, view.Events, tools, ThreadMeta{})
		if err != nil {
			a.Config.Interactor.Error(fmt.Sprintf("%s: provider error: %v", a.Name, err))
			a.countIteration("error")
			wrapped := coreerr.NewProviderError(a.Name, err)
			a.recordSpanError(span, wrapped)
			return wrapped
		}

		var accumText string
		var toolCalls []events.ToolRequestPayload
		var usage thread.UsageDelta

		for chunk := range stream {
			switch chunk.Kind {
			case ChunkText:
				accumText += chunk.TextDelta
				a.Config.Interactor.DisplayText(chunk.TextDelta)
			case ChunkToolCall:
				if chunk.ToolCall == nil {
					continue
				}
				toolCalls = append(toolCalls, *chunk.ToolCall)
			case ChunkUsageDelta:
				if chunk.Usage != nil {
					usage.InputTokens += chunk.Usage.InputTokens
					usage.OutputTokens += chunk.Usage.OutputTokens
					usage.CacheReadTokens += chunk.Usage.CacheReadTokens
					usage.CacheWriteTokens += chunk.Usage.CacheWriteTokens
					usage.Price += chunk.Usage.Price
				}
			}
		}

		if accumText != "" {
			th.AppendAgentMessage(a.Name, events.ContentPart{Type: "text", Text: accumText})
			a.countAppend(events.KindMessage)
		}

		if len(toolCalls) > 0 {
			th.AppendToolRequests(a.Name, toolCalls)
			a.countAppend(events.KindToolRequest)
			for _, req := range toolCalls {
				output := a.dispatchTool(ctx, th, req)
				th.AppendToolResponses(a.Name, []events.ToolResponsePayload{{ToolRequestID: req.ToolRequestID, Output: output}})
				a.countAppend(events.KindToolResponse)
			}
		}

		th.AddUsage(usage)
		if a.Config.Metrics != nil && usage.Price != 0 {
			a.Config.Metrics.RunPrice.WithLabelValues(a.Name).Add(usage.Price)
		}

		if breached, reason := th.ThresholdBreached(); breached {
			a.Config.Interactor.Warn(fmt.Sprintf("%s: stopping, %s threshold breached", a.Name, reason))
			a.countIteration("threshold")
			return nil
		}

		if len(toolCalls) == 0 {
			a.countIteration("terminal")
			return nil
		}
		a.countIteration("tool_calls")
	}
}

// countIteration records one agent-loop iteration by outcome.
func (a *Agent) countIteration(outcome string) {
	if a.Config.Metrics != nil {
		a.Config.Metrics.RunIterations.WithLabelValues(a.Name, outcome).Inc()
	}
}

// countAppend records one event appended to th by kind.
func (a *Agent) countAppend(kind events.Kind) {
	if a.Config.Metrics != nil {
		a.Config.Metrics.ThreadEventsAppended.WithLabelValues(string(kind)).Inc()
	}
}

// recordSpanError marks span (if tracing is enabled) as failed.
func (a *Agent) recordSpanError(span trace.Span, err error) {
	if span != nil && a.Config.Tracer != nil {
		a.Config.Tracer.RecordError(span, err)
	}
}
