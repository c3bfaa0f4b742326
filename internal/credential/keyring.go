package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const (
	serviceName = "campus-notifier"
	tokenKey    = "gateway-token"

	// EnvToken overrides the stored token when set.
	EnvToken = "CAMPUS_NOTIFIER_TOKEN"
)

// ErrNoToken is returned when no bearer token is stored or configured.
var ErrNoToken = errors.New("not logged in: no token stored")

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/campus-notifier/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("campus-notifier-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// TokenStore keeps the gateway bearer token. It satisfies
// gateway.TokenSource so the client reads the current token per request,
// which makes logout take effect immediately.
type TokenStore struct {
	ring keyring.Keyring
}

// Open opens the system keyring.
func Open() (*TokenStore, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return &TokenStore{ring: ring}, nil
}

// NewTokenStore wraps an already opened keyring, e.g. keyring.NewArrayKeyring
// in tests.
func NewTokenStore(ring keyring.Keyring) *TokenStore {
	return &TokenStore{ring: ring}
}

// Token returns the bearer token. The environment override wins over the
// keyring.
func (s *TokenStore) Token() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		return v, nil
	}

	item, err := s.ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", tokenKey, err)
	}
	if len(item.Data) == 0 {
		return "", ErrNoToken
	}
	return string(item.Data), nil
}

// LoggedIn reports whether a token is available.
func (s *TokenStore) LoggedIn() bool {
	_, err := s.Token()
	return err == nil
}

// Save stores the bearer token.
func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token must not be empty")
	}

	err := s.ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "Campus notifier gateway token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}
	return nil
}

// Clear removes the stored token. Clearing an absent token is not an error.
func (s *TokenStore) Clear() error {
	err := s.ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", tokenKey, err)
	}
	return nil
}
