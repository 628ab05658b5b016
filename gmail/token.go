package gmail

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"
	"github.com/bassamadnan/rfimail/config"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by a TokenStore that has nothing saved yet.
var ErrNoToken = errors.New("no stored oauth token")

const keyringService = "rfimail"

// TokenStore persists the user's OAuth token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(*oauth2.Token) error
}

// NewTokenStore picks the store named by cfg.TokenStore.
func NewTokenStore(cfg config.GmailConfig) (TokenStore, error) {
	switch cfg.TokenStore {
	case "", "file":
		return &FileTokenStore{Path: cfg.TokenFile}, nil
	case "keyring":
		return NewKeyringTokenStore(filepath.Dir(cfg.TokenFile), cfg.User)
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// FileTokenStore keeps the token as JSON on disk, readable by the owner only.
type FileTokenStore struct {
	Path string
}

func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", s.Path, err)
	}
	return tok, nil
}

func (s *FileTokenStore) Save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// KeyringTokenStore keeps the token in the OS keychain, falling back to an
// encrypted file under dir when no keychain is available.
type KeyringTokenStore struct {
	ring keyring.Keyring
	key  string
}

func NewKeyringTokenStore(dir, user string) (*KeyringTokenStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("rfimail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return newKeyringTokenStore(ring, user), nil
}

func newKeyringTokenStore(ring keyring.Keyring, user string) *KeyringTokenStore {
	if user == "" {
		user = "me"
	}
	return &KeyringTokenStore{ring: ring, key: "gmail-token-" + user}
}

func (s *KeyringTokenStore) Load() (*oauth2.Token, error) {
	item, err := s.ring.Get(s.key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("getting credential %q: %w", s.key, err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(item.Data, tok); err != nil {
		return nil, fmt.Errorf("decode credential %q: %w", s.key, err)
	}
	return tok, nil
}

func (s *KeyringTokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := s.ring.Set(keyring.Item{Key: s.key, Label: "rfimail Gmail token", Data: data}); err != nil {
		return fmt.Errorf("setting credential %q: %w", s.key, err)
	}
	return nil
}

// savingTokenSource writes every newly refreshed token back to the store so
// the next run starts from a valid access token.
type savingTokenSource struct {
	base   oauth2.TokenSource
	store  TokenStore
	logger *log.Logger

	mu   sync.Mutex
	last string
}

func newSavingTokenSource(base oauth2.TokenSource, initial *oauth2.Token, store TokenStore, logger *log.Logger) *savingTokenSource {
	s := &savingTokenSource{base: base, store: store, logger: logger}
	if initial != nil {
		s.last = initial.AccessToken
	}
	return s
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Save(tok); err != nil {
			s.logger.Warn("Could not save refreshed token", "error", err)
		} else {
			s.logger.Debug("Saved refreshed token", "expiry", tok.Expiry)
		}
	}
	return tok, nil
}
