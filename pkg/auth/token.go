package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenStore persists the bearer credential between sessions. Absence of a
// token is not an error; callers must check the ok return before opening any
// authenticated request.
type TokenStore struct {
	mu       sync.RWMutex
	filePath string
	token    string
}

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	SavedAt     time.Time `json:"saved_at"`
}

// NewTokenStore creates a token store backed by the given file, loading an
// existing token if one is present.
func NewTokenStore(filePath string) (*TokenStore, error) {
	ts := &TokenStore{filePath: filePath}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	if _, err := os.Stat(filePath); err == nil {
		if err := ts.load(); err != nil {
			return nil, fmt.Errorf("failed to load token: %w", err)
		}
	}

	return ts, nil
}

// Token returns the stored credential and whether one is present
func (ts *TokenStore) Token() (string, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	return ts.token, ts.token != ""
}

// Save stores and persists a credential
func (ts *TokenStore) Save(token string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.token = token

	data, err := json.MarshalIndent(tokenFile{
		AccessToken: token,
		SavedAt:     time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(ts.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// Clear removes the credential from memory and disk
func (ts *TokenStore) Clear() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.token = ""
	if err := os.Remove(ts.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

func (ts *TokenStore) load() error {
	data, err := os.ReadFile(ts.filePath)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("failed to unmarshal token file: %w", err)
	}

	ts.token = tf.AccessToken
	return nil
}
