package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/retext/retext/internal/search"
	"github.com/spf13/cobra"
)

var (
	searchPage int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the message archive",
	Long: `Search message bodies with full-text phrase search.

The whole query matches as one phrase, so multi-word queries find messages
containing those words in sequence. Stemming is applied: "meeting" also
finds "meetings".

Examples:
  retext search party
  retext search "see you tomorrow"
  retext search party --page 2 --json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		engine := search.NewEngine(st, cfg.Server.PerPage, logger)
		page, err := engine.Search(query, searchPage)
		if err != nil {
			if errors.Is(err, search.ErrEmptyQuery) {
				return fmt.Errorf("empty search query")
			}
			return err
		}

		out := cmd.OutOrStdout()
		if searchJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		}

		if page.Total == 0 {
			fmt.Fprintln(out, "No matches.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tFROM\tMESSAGE")
		for _, r := range page.Results {
			who := r.Address
			if r.ContactName != nil {
				who = *r.ContactName
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.FormattedDate, who, plainBody(r.Body))
		}
		w.Flush()

		fmt.Fprintf(out, "\nPage %d: %d of %d matches", page.Page, len(page.Results), page.Total)
		if page.HasMore {
			fmt.Fprintf(out, " (use --page %d for more)", page.Page+1)
		}
		fmt.Fprintln(out)
		return nil
	},
}

// plainBody strips the HTML highlight markers for terminal display.
func plainBody(body string) string {
	body = strings.ReplaceAll(body, "<mark>", "")
	return strings.ReplaceAll(body, "</mark>", "")
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page to show")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
}
