package cmd

import (
	"github.com/bassamadnan/rfimail/api"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var noIngest bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the parse, ingest and query HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.pipeline(ctx, !noIngest)
			if err != nil {
				return err
			}
			defer p.Close()

			deps := api.Deps{
				Parser:     p.parser,
				Store:      p.store,
				Vocabulary: p.vocab,
				Settings:   a.cfg.Parser,
				Logger:     a.logger,
			}
			if p.source != nil {
				deps.Runner, deps.Source, deps.Attachments = p.runner, p.source, p.attachments
			}
			return api.New(deps).ListenAndServe(ctx, a.cfg.Server.Addr)
		},
	}

	cmd.Flags().String("addr", "", "Listen address")
	cmd.Flags().String("source", "", "Source for POST /api/ingest: gmail, imap, mbox or fixtures")
	cmd.Flags().BoolVar(&noIngest, "no-ingest", false, "Serve stored records only; POST /api/ingest answers 503")
	bindFlags(cmd, map[string]string{
		"addr":   "server.addr",
		"source": "ingest.source",
	})
	return cmd
}
