package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ParserConfig tunes message parsing and classification.
type ParserConfig struct {
	// ConfidenceThreshold is the score (0-100) a fuzzy match must exceed.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	PreferHTML          bool    `mapstructure:"prefer_html"`
	MaxDepth            int     `mapstructure:"max_depth"`
}

type VocabularyConfig struct {
	Path string `mapstructure:"path"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// GmailConfig points at the OAuth client secrets and decides where the
// user token lives.
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	// TokenStore is "file" or "keyring".
	TokenStore string `mapstructure:"token_store"`
	User       string `mapstructure:"user"`
	Query      string `mapstructure:"query"`
}

type IMAPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// Security is "tls", "starttls" or "none".
	Security string `mapstructure:"security"`
	Mailbox  string `mapstructure:"mailbox"`
}

type MboxConfig struct {
	Path string `mapstructure:"path"`
}

// IngestConfig controls batch runs.
type IngestConfig struct {
	// Source is one of "gmail", "imap", "mbox" or "fixtures".
	Source       string        `mapstructure:"source"`
	FixturesDir  string        `mapstructure:"fixtures_dir"`
	Workers      int           `mapstructure:"workers"`
	MarkRead     bool          `mapstructure:"mark_read"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the application configuration.
type Config struct {
	Parser     ParserConfig     `mapstructure:"parser"`
	Vocabulary VocabularyConfig `mapstructure:"vocabulary"`
	Store      StoreConfig      `mapstructure:"store"`
	Gmail      GmailConfig      `mapstructure:"gmail"`
	IMAP       IMAPConfig       `mapstructure:"imap"`
	Mbox       MboxConfig       `mapstructure:"mbox"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
}

// DefaultDir returns ~/.config/rfimail, or the working directory when the
// home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rfimail")
}

// DefaultPath returns the default location of the YAML config file.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// NewViper returns a viper instance carrying every default. Environment
// variables prefixed with RFIMAIL_ override file values, e.g.
// RFIMAIL_PARSER_CONFIDENCE_THRESHOLD.
func NewViper() *viper.Viper {
	dir := DefaultDir()
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("rfimail")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("parser.confidence_threshold", 75)
	v.SetDefault("parser.prefer_html", false)
	v.SetDefault("parser.max_depth", 64)
	v.SetDefault("vocabulary.path", filepath.Join(dir, "vocabulary.json"))
	v.SetDefault("store.path", filepath.Join(dir, "rfimail.db"))
	v.SetDefault("gmail.credentials_file", filepath.Join(dir, "credentials.json"))
	v.SetDefault("gmail.token_file", filepath.Join(dir, "token.json"))
	v.SetDefault("gmail.token_store", "file")
	v.SetDefault("gmail.user", "me")
	v.SetDefault("gmail.query", "in:inbox is:unread -in:draft")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.security", "tls")
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("ingest.source", "gmail")
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.mark_read", true)
	v.SetDefault("ingest.poll_interval", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("server.addr", ":8080")
	return v
}

// Load reads the YAML file at path into a Config using v. A missing file is
// not an error; defaults, environment and bound flags still apply.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Parser.ConfidenceThreshold < 0 || c.Parser.ConfidenceThreshold > 100 {
		return fmt.Errorf("parser.confidence_threshold must be between 0 and 100, got %v", c.Parser.ConfidenceThreshold)
	}
	if c.Parser.MaxDepth < 1 {
		return fmt.Errorf("parser.max_depth must be at least 1, got %d", c.Parser.MaxDepth)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be at least 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.PollInterval <= 0 {
		return fmt.Errorf("ingest.poll_interval must be positive, got %s", c.Ingest.PollInterval)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Gmail.TokenStore {
	case "file", "keyring":
	default:
		return fmt.Errorf("gmail.token_store must be file or keyring, got %q", c.Gmail.TokenStore)
	}
	switch c.Ingest.Source {
	case "gmail", "imap", "mbox", "fixtures":
	default:
		return fmt.Errorf("ingest.source must be gmail, imap, mbox or fixtures, got %q", c.Ingest.Source)
	}
	switch c.IMAP.Security {
	case "tls", "starttls", "none":
	default:
		return fmt.Errorf("imap.security must be tls, starttls or none, got %q", c.IMAP.Security)
	}
	return nil
}
