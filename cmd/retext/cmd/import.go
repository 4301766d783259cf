package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/retext/retext/internal/importer"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	importBatchSize int
	importStrict    bool
)

var importCmd = &cobra.Command{
	Use:   "import <backup.xml>",
	Short: "Import an SMS Backup & Restore export",
	Long: `Import an SMS Backup & Restore XML export into the archive.

The file is streamed, so arbitrarily large exports import in bounded memory.
Messages already in the archive (same timestamp, address, and body) are
skipped as duplicates, making repeat imports of overlapping backups safe.

Examples:
  retext init-db
  retext import sms-20260829.xml`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		out := cmd.OutOrStdout()
		p := message.NewPrinter(language.English)
		interactive := isatty.IsTerminal(os.Stdout.Fd())

		p.Fprintf(out, "Importing: %s\n", path)
		start := time.Now()

		batchSize := importBatchSize
		if batchSize <= 0 {
			batchSize = cfg.Import.BatchSize
		}

		summary, err := importer.Import(cmd.Context(), st, path, importer.Options{
			BatchSize: batchSize,
			Strict:    importStrict,
			Logger:    logger,
			Progress: func(processed, total int64, pct float64) {
				if interactive {
					p.Fprintf(out, "\rProgress: %d / %d (%.1f%%)", processed, total, pct)
				} else {
					p.Fprintf(out, "Progress: %d / %d (%.1f%%)\n", processed, total, pct)
				}
			},
		})
		if interactive {
			fmt.Fprintln(out)
		}

		if err != nil {
			// Committed batches survive the failure; say so with the counts.
			if summary.Imported > 0 || summary.Duplicates > 0 {
				p.Fprintf(out, "Stopped after %d imported, %d duplicates.\n",
					summary.Imported, summary.Duplicates)
			}
			switch {
			case errors.Is(err, importer.ErrParse):
				return fmt.Errorf("failed to parse XML file: %w", err)
			case errors.Is(err, importer.ErrIO):
				return fmt.Errorf("cannot read backup file: %w", err)
			case errors.Is(err, context.Canceled):
				return context.Canceled
			default:
				return err
			}
		}

		p.Fprintf(out, "Complete: %d messages imported (%d duplicates, %d skipped)\n",
			summary.Imported, summary.Duplicates, summary.Skipped)
		p.Fprintf(out, "Time: %.1f seconds\n", time.Since(start).Seconds())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 0, "records per transaction (default from config, normally 1000)")
	importCmd.Flags().BoolVar(&importStrict, "strict", false, "fail on records with missing or malformed fields instead of skipping them")
}
