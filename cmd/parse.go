package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bassamadnan/rfimail/eml"
	"github.com/bassamadnan/rfimail/tui"
	"github.com/spf13/cobra"
	"google.golang.org/api/gmail/v1"
)

func newParseCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse one message (.json in Gmail API form, or .eml) and print the record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := readMessage(args[0])
			if err != nil {
				return err
			}

			vocab, err := a.vocabulary()
			if err != nil {
				return err
			}
			p, err := a.parser(vocab)
			if err != nil {
				return err
			}
			parsed, err := p.Parse(msg)
			if err != nil {
				return err
			}

			rec := parsed.Record()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			_, err = fmt.Fprintln(out, tui.RenderRecord(rec))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	return cmd
}

// readMessage loads a Gmail message from a .eml/.msg file or a JSON file.
func readMessage(path string) (*gmail.Message, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eml", ".msg":
		return eml.ConvertFile(path, eml.Options{})
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var msg gmail.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &msg, nil
}
