package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// TokenFile keeps the latest OAuth refresh token per user so rotated tokens
// survive restarts. Keys are lower-cased user names.
type TokenFile struct {
	path string

	mu     sync.Mutex
	tokens map[string]string
}

// OpenTokenFile loads path if it exists. A missing file starts empty.
func OpenTokenFile(path string) (*TokenFile, error) {
	t := &TokenFile{path: path, tokens: map[string]string{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(data, &t.tokens); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

// RefreshToken returns the stored token for user.
func (t *TokenFile) RefreshToken(user string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tok, ok := t.tokens[strings.ToLower(user)]
	return tok, ok && tok != ""
}

// SaveRefreshToken stores tok for user and rewrites the file.
func (t *TokenFile) SaveRefreshToken(user, tok string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := strings.ToLower(user)
	if t.tokens[key] == tok {
		return nil
	}
	t.tokens[key] = tok
	data, err := json.MarshalIndent(t.tokens, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(t.path, append(data, '\n'), 0o600)
}
