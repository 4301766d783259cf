package cmd

import (
	"github.com/retext/retext/internal/search"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.GetStats()
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		out := cmd.OutOrStdout()
		p.Fprintf(out, "Database: %s\n", cfg.DatabasePath())
		p.Fprintf(out, "  Messages: %d\n", stats.MessageCount)
		if stats.MessageCount > 0 {
			p.Fprintf(out, "  Oldest:   %s\n", search.FormatTimestamp(stats.OldestMs))
			p.Fprintf(out, "  Newest:   %s\n", search.FormatTimestamp(stats.NewestMs))
		}
		p.Fprintf(out, "  Size:     %.2f MB\n", float64(stats.DatabaseSize)/(1024*1024))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
