// Package auth holds the signed-in user's tokens and persists them next to
// the survey session.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chefriend/chefriend-cli/internal/session"
)

// StorageKey is the document key for persisted credentials.
const StorageKey = "auth-storage"

// User is the cached identity of the signed-in account.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// Credentials are the tokens issued at login.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// SignedIn reports whether an access token is present.
func (c Credentials) SignedIn() bool {
	return c.AccessToken != ""
}

type persistedCredentials struct {
	State   Credentials `json:"state"`
	Version int         `json:"version"`
}

// Store keeps the current credentials in memory and writes them through to a
// session.Store. A nil document store keeps them in memory only.
type Store struct {
	mu    sync.RWMutex
	docs  session.Store
	creds Credentials
}

// NewStore loads any persisted credentials from docs.
func NewStore(ctx context.Context, docs session.Store) (*Store, error) {
	s := &Store{docs: docs}
	if docs == nil {
		return s, nil
	}
	doc, err := docs.Load(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("auth: load credentials: %w", err)
	}
	if doc != nil {
		var pc persistedCredentials
		if err := json.Unmarshal(doc.Value, &pc); err != nil {
			return nil, fmt.Errorf("auth: decode credentials: %w", err)
		}
		s.creds = pc.State
	}
	return s, nil
}

// Current returns a copy of the stored credentials.
func (s *Store) Current() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.creds
	if c.User != nil {
		u := *c.User
		c.User = &u
	}
	return c
}

// AccessToken returns the current access token.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken
}

// RefreshToken returns the current refresh token.
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.RefreshToken
}

// Set replaces the credentials.
func (s *Store) Set(ctx context.Context, c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = c
	return s.persist(ctx)
}

// SetAccessToken swaps in a refreshed access token, keeping the rest.
func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.AccessToken = token
	return s.persist(ctx)
}

// SetUser caches the identity returned by the backend.
func (s *Store) SetUser(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.User = &u
	return s.persist(ctx)
}

// Clear signs out.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
	if s.docs == nil {
		return nil
	}
	if err := s.docs.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("auth: clear credentials: %w", err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	if s.docs == nil {
		return nil
	}
	value, err := json.Marshal(persistedCredentials{State: s.creds})
	if err != nil {
		return fmt.Errorf("auth: encode credentials: %w", err)
	}
	if err := s.docs.Save(ctx, &session.Document{Key: StorageKey, Value: value}); err != nil {
		return fmt.Errorf("auth: persist credentials: %w", err)
	}
	return nil
}
