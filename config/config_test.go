package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 75.0, cfg.Parser.ConfidenceThreshold)
	assert.Equal(t, 64, cfg.Parser.MaxDepth)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 30*time.Second, cfg.Ingest.PollInterval)
	assert.Equal(t, "gmail", cfg.Ingest.Source)
	assert.Equal(t, "me", cfg.Gmail.User)
	assert.Equal(t, "INBOX", cfg.IMAP.Mailbox)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
parser:
  confidence_threshold: 60
  prefer_html: true
ingest:
  source: mbox
  workers: 2
  poll_interval: 5s
mbox:
  path: /tmp/inbox.mbox
log:
  level: debug
`), 0o644))

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, 60.0, cfg.Parser.ConfidenceThreshold)
	assert.True(t, cfg.Parser.PreferHTML)
	assert.Equal(t, "mbox", cfg.Ingest.Source)
	assert.Equal(t, 2, cfg.Ingest.Workers)
	assert.Equal(t, 5*time.Second, cfg.Ingest.PollInterval)
	assert.Equal(t, "/tmp/inbox.mbox", cfg.Mbox.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched sections keep defaults
	assert.Equal(t, 64, cfg.Parser.MaxDepth)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RFIMAIL_INGEST_WORKERS", "9")
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Ingest.Workers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parser:\n  confidence_threshold: 150\n"), 0o644))

	_, err := Load(NewViper(), path)
	assert.ErrorContains(t, err, "confidence_threshold")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(NewViper(), "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative threshold", func(c *Config) { c.Parser.ConfidenceThreshold = -1 }, "confidence_threshold"},
		{"zero depth", func(c *Config) { c.Parser.MaxDepth = 0 }, "max_depth"},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }, "workers"},
		{"zero poll", func(c *Config) { c.Ingest.PollInterval = 0 }, "poll_interval"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad token store", func(c *Config) { c.Gmail.TokenStore = "vault" }, "token_store"},
		{"bad source", func(c *Config) { c.Ingest.Source = "pop3" }, "ingest.source"},
		{"bad security", func(c *Config) { c.IMAP.Security = "ssl" }, "imap.security"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
