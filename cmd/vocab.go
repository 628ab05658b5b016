package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/bassamadnan/rfimail/config"
	"github.com/spf13/cobra"
)

func newVocabCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Show or edit thread types, job names and skip rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the vocabulary file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.vocabulary()
			if err != nil {
				return err
			}
			v := m.Vocabulary()
			doc := config.Document{ThreadTypes: v.ThreadTypes, JobNames: v.JobNames, Filters: m.Filters()}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	})

	edits := []struct {
		use, short string
		apply      func(*config.Manager, string) error
	}{
		{"add-type", "Add a thread type", (*config.Manager).AddThreadType},
		{"remove-type", "Remove a thread type", (*config.Manager).RemoveThreadType},
		{"add-job", "Add a job name", (*config.Manager).AddJobName},
		{"remove-job", "Remove a job name", (*config.Manager).RemoveJobName},
		{"ignore-sender", "Skip future messages from senders containing the value", (*config.Manager).AddIgnoreSender},
		{"ignore-keyword", "Skip future messages whose subject contains the value", (*config.Manager).AddIgnoreKeywordInSubject},
	}
	for _, e := range edits {
		e := e
		cmd.AddCommand(&cobra.Command{
			Use:   e.use + " [value]",
			Short: e.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := a.vocabulary()
				if err != nil {
					return err
				}
				if err := e.apply(m, args[0]); err != nil {
					return err
				}
				a.logger.Info("Vocabulary updated", "op", e.use, "value", args[0])
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", e.use, args[0])
				return err
			},
		})
	}
	return cmd
}
