// Package runtimeconfig holds the knobs an Agent run loop and Team need at
// construction time: thresholds, delegation limits, and the character
// budget handed to ConversationThread.GetBudgetedView. Loading, merging,
// and masking these from a project/user config file on disk is out of
// scope here; this package only validates the values once they reach the
// core.
package runtimeconfig

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// RunOptions bounds one Agent.Run invocation.
type RunOptions struct {
	// CharBudget is the character budget passed to GetBudgetedView. Zero
	// means unbounded (the whole log is always sent to the provider).
	CharBudget int `yaml:"char_budget"`

	// IterationsThreshold stops a run after this many loop iterations.
	// Zero means unbounded.
	IterationsThreshold int `yaml:"iterations_threshold"`

	// PriceThreshold stops a run once accumulated price reaches this
	// value. Zero means unbounded.
	PriceThreshold float64 `yaml:"price_threshold"`

	// MaxDelegationDepth is the configured fork-depth limit; zero means
	// unbounded. The run loop does not apply it: a thread's limit is set
	// with thread.WithMaxDelegationDepth.
	MaxDelegationDepth int `yaml:"max_delegation_depth"`

	// ToolTimeout bounds a single tool dispatch; on timeout the tool
	// returns an error string and the run loop continues.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
}

// DefaultRunOptions returns conservative, non-zero defaults: an unbounded
// run is rarely what an operator wants by accident.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		CharBudget:          200_000,
		IterationsThreshold: 50,
		PriceThreshold:      5.0,
		MaxDelegationDepth:  6,
		ToolTimeout:         2 * time.Minute,
	}
}

// Sanitize returns an error naming the first negative field it finds, or
// nil if every field is >= 0. It does not modify o.
func (o *RunOptions) Sanitize() error {
	if o.CharBudget < 0 {
		return fmt.Errorf("runtimeconfig: char_budget must be >= 0, got %d", o.CharBudget)
	}
	if o.IterationsThreshold < 0 {
		return fmt.Errorf("runtimeconfig: iterations_threshold must be >= 0, got %d", o.IterationsThreshold)
	}
	if o.PriceThreshold < 0 {
		return fmt.Errorf("runtimeconfig: price_threshold must be >= 0, got %v", o.PriceThreshold)
	}
	if o.MaxDelegationDepth < 0 {
		return fmt.Errorf("runtimeconfig: max_delegation_depth must be >= 0, got %d", o.MaxDelegationDepth)
	}
	if o.ToolTimeout < 0 {
		return fmt.Errorf("runtimeconfig: tool_timeout must be >= 0, got %s", o.ToolTimeout)
	}
	return nil
}

// ParseRunOptionsYAML decodes RunOptions from a YAML document, applying
// DefaultRunOptions for any field left unset, then sanitizing the result.
func ParseRunOptionsYAML(doc []byte) (RunOptions, error) {
	opts := DefaultRunOptions()
	if len(doc) > 0 {
		if err := yaml.Unmarshal(doc, &opts); err != nil {
			return RunOptions{}, fmt.Errorf("runtimeconfig: parse: %w", err)
		}
	}
	if err := opts.Sanitize(); err != nil {
		return RunOptions{}, err
	}
	return opts, nil
}
