package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/store/sqlitestore"
)

// buildThreadCmd exposes the thread lifecycle verbs as scriptable
// subcommands, independent of the interactive REPL.
func buildThreadCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Inspect and manage persisted threads",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "loom.db", "path to the SQLite thread store")

	list := &cobra.Command{
		Use:   "list",
		Short: "List persisted threads",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := sqlitestore.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			snaps, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range snaps {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.ID, s.Name, s.ModifiedDate.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a persisted thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := sqlitestore.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()
			return st.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}
