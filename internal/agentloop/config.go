package agentloop

import (
	"time"

	"github.com/loomrun/loom/internal/interactor"
	"github.com/loomrun/loom/internal/mailbox"
	"github.com/loomrun/loom/internal/runtimeconfig"
	"github.com/loomrun/loom/internal/telemetry"
	"github.com/loomrun/loom/internal/thread"
)

// LoopConfig configures an Agent's run loop.
type LoopConfig struct {
	RunOptions runtimeconfig.RunOptions

	Toolbox  Toolbox
	Registry Registry

	// CommandContext scopes the available tools and delegation depth for
	// every turn of this run.
	CommandContext CommandContext

	// Compactor condenses overflowing prefixes into Summary events;
	// nil disables compaction (GetBudgetedView simply drops overflow).
	Compactor thread.Compactor

	Interactor interactor.Interactor
	Mailbox    *mailbox.Mailbox
	Metrics    *telemetry.Metrics
	Tracer     *telemetry.Tracer
	QueryQueue QueryQueue

	// ToolTimeout bounds a single tool dispatch (zero disables the timeout).
	ToolTimeout time.Duration
}

// sanitizeLoopConfig fills in conservative defaults for zero-valued
// fields so a caller can supply a partially-populated LoopConfig.
func sanitizeLoopConfig(cfg LoopConfig) LoopConfig {
	if cfg.RunOptions == (runtimeconfig.RunOptions{}) {
		cfg.RunOptions = runtimeconfig.DefaultRunOptions()
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = cfg.RunOptions.ToolTimeout
	}
	if cfg.Interactor == nil {
		cfg.Interactor = interactor.NewChanInteractor(64)
	}
	return cfg
}
