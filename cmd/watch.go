package cmd

import (
	"context"
	"fmt"

	"github.com/bassamadnan/rfimail/parser"
	"github.com/bassamadnan/rfimail/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "watch",
		Short:       "Poll the configured source and show new records in a dashboard",
		Annotations: map[string]string{ownsTerminal: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			p, err := a.pipeline(ctx, true)
			if err != nil {
				return err
			}
			defer p.Close()

			records := make(chan parser.Record, 16)
			monitorDone := make(chan struct{})
			go func() {
				defer close(monitorDone)
				defer close(records)
				p.runner.Monitor(ctx, p.source, a.cfg.Ingest.PollInterval, records)
			}()
			// the store stays open until the monitor is done with it
			defer func() {
				cancel()
				<-monitorDone
			}()

			model := tui.NewModel(records, tui.Options{
				Source:       p.source.Name(),
				PollInterval: a.cfg.Ingest.PollInterval,
				Logger:       a.logger,
			})
			program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := program.Run(); err != nil && ctx.Err() == nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			a.logger.Info("Dashboard closed")
			return nil
		},
	}

	cmd.Flags().String("source", "", "Source to poll: gmail, imap, mbox or fixtures")
	cmd.Flags().Duration("interval", 0, "Time between polls")
	bindFlags(cmd, map[string]string{
		"source":   "ingest.source",
		"interval": "ingest.poll_interval",
	})
	return cmd
}
