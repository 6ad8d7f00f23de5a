package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spec-kit/user-directory/internal/domain"
)

// Persisted session keys. They are always written and cleared together.
const (
	keyToken         = "token"
	keyUser          = "user"
	keyAuthenticated = "isAuthenticated"
)

// State is a snapshot of the client session.
type State struct {
	Token         string
	User          *domain.PublicAccount
	Authenticated bool
}

// Session holds the caller's token and account between CLI invocations.
type Session struct {
	store *Store

	mu    sync.RWMutex
	state State
}

// NewSession wraps a store. Call Load to restore a previous session.
func NewSession(store *Store) *Session {
	return &Session{store: store}
}

// Load restores the persisted session. A partial or unreadable record is
// treated as signed out and cleared.
func (s *Session) Load(ctx context.Context) error {
	token, err := s.store.Get(ctx, keyToken)
	if err != nil {
		return err
	}
	rawUser, err := s.store.Get(ctx, keyUser)
	if err != nil {
		return err
	}
	flag, err := s.store.Get(ctx, keyAuthenticated)
	if err != nil {
		return err
	}

	if len(token) == 0 || len(rawUser) == 0 || string(flag) != "true" {
		return s.reset(ctx, token != nil || rawUser != nil || flag != nil)
	}

	var user domain.PublicAccount
	if err := json.Unmarshal(rawUser, &user); err != nil {
		return s.reset(ctx, true)
	}

	s.mu.Lock()
	s.state = State{Token: string(token), User: &user, Authenticated: true}
	s.mu.Unlock()
	return nil
}

// Save persists token and user as the active session.
func (s *Session) Save(ctx context.Context, token string, user domain.PublicAccount) error {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	if err := s.store.SetAll(ctx, map[string][]byte{
		keyToken:         []byte(token),
		keyUser:          rawUser,
		keyAuthenticated: []byte("true"),
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = State{Token: token, User: &user, Authenticated: true}
	s.mu.Unlock()
	return nil
}

// SetToken replaces the token of an active session, keeping its user.
func (s *Session) SetToken(ctx context.Context, token string) error {
	current := s.Get()
	if !current.Authenticated || current.User == nil {
		return ErrNotSignedIn
	}
	return s.Save(ctx, token, *current.User)
}

// Clear drops the session both in memory and on disk.
func (s *Session) Clear(ctx context.Context) error {
	return s.reset(ctx, true)
}

// Get returns the current state.
func (s *Session) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	if state.User != nil {
		user := *state.User
		state.User = &user
	}
	return state
}

func (s *Session) reset(ctx context.Context, persisted bool) error {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
	if !persisted {
		return nil
	}
	return s.store.Clear(ctx)
}
