package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// buildRootCmd assembles the loom CLI: run with no subcommand starts an
// interactive session against the configured provider.
func buildRootCmd() *cobra.Command {
	var (
		providerName string
		model        string
		dbPath       string
		username     string
		debug        bool
	)

	cmd := &cobra.Command{
		Use:   "loom",
		Short: "Drive a multi-agent conversation thread from a terminal",
		Long: `loom starts an interactive session backed by a ConversationThread:
messages are sent to the default agent unless addressed with "@name", and
"/promptName" replays a stored, parameter-interpolated command chain.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(appConfig{
				Provider: providerName,
				Model:    model,
				DBPath:   dbPath,
				Username: username,
				Debug:    debug,
			})
			if err != nil {
				return fmt.Errorf("loom: initialize: %w", err)
			}
			defer app.Close()
			return app.RunREPL(cmd.Context(), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "anthropic", "LLM provider: anthropic | openai")
	cmd.Flags().StringVar(&model, "model", "", "model override; empty uses the provider's default")
	cmd.Flags().StringVar(&dbPath, "db", "loom.db", "path to the SQLite thread/config store (\":memory:\" for ephemeral)")
	cmd.Flags().StringVar(&username, "username", "local", "identity attached to new threads")
	cmd.Flags().BoolVar(&debug, "debug", false, "emit Debug events to the terminal")

	cmd.AddCommand(buildThreadCmd())
	return cmd
}
