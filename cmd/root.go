// Package cmd holds the rfimail command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bassamadnan/rfimail/config"
	"github.com/bassamadnan/rfimail/parser"
	"github.com/bassamadnan/rfimail/subject"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app is the state shared by every command once the config is loaded.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	logger     *log.Logger
	closeLog   func() error
}

// ownsTerminal marks commands whose output would be garbled by log lines;
// they log to a file even when log.file is empty.
const ownsTerminal = "owns-terminal"

// viperKey is the flag annotation naming the config key a flag overrides.
const viperKey = "viper-key"

// bindFlags records which config key each flag overrides. Binding happens
// in load, for the command that runs only, since several commands share
// keys.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		_ = cmd.Flags().SetAnnotation(flag, viperKey, []string{key})
	}
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func NewRootCmd() *cobra.Command {
	a := &app{v: config.NewViper(), closeLog: func() error { return nil }}

	root := &cobra.Command{
		Use:          "rfimail",
		Short:        "Parse, classify and store project email threads",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closeLog()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath(), "Path to the YAML config file")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-file", "", "Also write logs to this file")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.file", flags.Lookup("log-file"))

	root.AddCommand(
		newParseCmd(a),
		newIngestCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newAuthCmd(a),
		newVocabCmd(a),
	)
	return root
}

// load binds the running command's flags, reads the config and sets up
// logging.
func (a *app) load(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys, ok := f.Annotations[viperKey]; ok && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, closeLog, err := newLogger(cfg.Log, cmd.Annotations[ownsTerminal] == "true")
	if err != nil {
		return err
	}
	a.logger, a.closeLog = logger, closeLog
	a.logger.Debug("Config loaded", "path", a.configPath)
	return nil
}

// newLogger writes to stderr, to stderr and log.file when one is set, or
// only to a file when fileOnly is set.
func newLogger(cfg config.LogConfig, fileOnly bool) (*log.Logger, func() error, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	noop := func() error { return nil }
	path := cfg.File
	if path == "" && fileOnly {
		path = filepath.Join(config.DefaultDir(), "rfimail.log")
	}

	var w io.Writer = os.Stderr
	closeFn := noop
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closeFn = f.Close
		w = f
		if !fileOnly {
			w = io.MultiWriter(os.Stderr, f)
		}
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "rfimail",
	})
	return logger, closeFn, nil
}

func (a *app) vocabulary() (*config.Manager, error) {
	m, err := config.NewManager(a.cfg.Vocabulary.Path)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return m, nil
}

// parser builds a parser over a snapshot of the current vocabulary.
func (a *app) parser(vocab *config.Manager) (*parser.Parser, error) {
	c, err := subject.NewClassifier(vocab.Vocabulary(), a.cfg.Parser.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	return parser.New(c, parser.Options{
		PreferHTML: a.cfg.Parser.PreferHTML,
		MaxDepth:   a.cfg.Parser.MaxDepth,
	}), nil
}
