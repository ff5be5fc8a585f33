// Package auth provides the bearer credential store consumed by the API
// client and the terminal multiplexer. The token is loaded once and read
// synchronously; its absence blocks terminal connects but nothing else.
package auth

import (
	"os"
	"strings"
	"sync"
)

// EnvToken is the environment variable consulted before the token file.
const EnvToken = "COCKPIT_TOKEN"

// Store holds a single bearer token. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	token string
}

// NewStore creates a Store with the given token. An empty token is valid and
// simply leaves the store unpopulated.
func NewStore(token string) *Store {
	return &Store{token: strings.TrimSpace(token)}
}

// Load builds a Store from the environment or, failing that, from the token
// file at path. A missing or unreadable file is not an error: the store is
// returned empty and connects remain blocked until a token is set.
func Load(path string) *Store {
	if token := strings.TrimSpace(os.Getenv(EnvToken)); token != "" {
		return NewStore(token)
	}
	if path == "" {
		return NewStore("")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return NewStore("")
	}
	return NewStore(string(data))
}

// Token returns the current bearer token, or "" when none is available.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the stored token.
func (s *Store) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

// HasToken reports whether a non-empty token is available.
func (s *Store) HasToken() bool {
	return s.Token() != ""
}
