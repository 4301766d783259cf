package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the archive database",
	Long: `Create the SQLite database and schema if they do not exist.

Running init-db on an existing database is safe; the schema statements are
idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Database initialized at: %s\n", cfg.DatabasePath())
		if !st.FTS5Available() {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning: this SQLite build lacks FTS5; search will not work.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
