package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/bassamadnan/rfimail/ingest"
	"github.com/spf13/cobra"
)

func newIngestCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one batch import from the configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.pipeline(ctx, true)
			if err != nil {
				return err
			}
			defer p.Close()

			result, runErr := p.runner.Run(ctx, p.source)
			if result != nil {
				if err := printResult(cmd, result, asJSON); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	flags := cmd.Flags()
	flags.String("source", "", "Source to read: gmail, imap, mbox or fixtures")
	flags.Int("workers", 0, "Number of parse workers")
	flags.Bool("mark-read", true, "Acknowledge processed messages to the source")
	flags.String("fixtures", "", "Directory with threads.json/messages.json for the fixtures source")
	flags.String("mbox", "", "Path of the mbox file for the mbox source")
	flags.BoolVar(&asJSON, "json", false, "Print the run summary as JSON")
	bindFlags(cmd, map[string]string{
		"source":    "ingest.source",
		"workers":   "ingest.workers",
		"mark-read": "ingest.mark_read",
		"fixtures":  "ingest.fixtures_dir",
		"mbox":      "mbox.path",
	})
	return cmd
}

func printResult(cmd *cobra.Command, r *ingest.Result, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	_, err := fmt.Fprintf(out, "run %s from %s: found %d, stored %d, skipped %d, failed %d\n",
		r.RunID, r.Source, r.Found, r.Stored, r.Skipped, r.Failed)
	if err == nil && len(r.FailedIDs) > 0 {
		_, err = fmt.Fprintf(out, "failed: %v\n", r.FailedIDs)
	}
	return err
}
