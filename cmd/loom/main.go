// Package main provides the CLI entry point for loom, a terminal client
// driving the agent run loop against Anthropic or OpenAI models.
package main

import (
	"log/slog"
	"os"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("loom: fatal", "error", err)
		os.Exit(1)
	}
}
