package cmd

import (
	"os"

	"github.com/bassamadnan/rfimail/gmail"
	"github.com/spf13/cobra"
)

func newAuthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and store the OAuth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := gmail.NewTokenStore(a.cfg.Gmail)
			if err != nil {
				return err
			}
			return gmail.Authorize(cmd.Context(), a.cfg.Gmail, tokens, os.Stdin, cmd.OutOrStdout())
		},
	}
}
