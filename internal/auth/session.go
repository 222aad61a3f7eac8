// Package auth provides session management types.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caremesh/telehealth/internal/shared/types"
)

// SessionKey is the single fixed key the static demo session lives under,
// mirroring the browser local-storage slot of the original client. Absence
// of a value under this key means "logged out".
const SessionKey = "telehealth_static_session"

// ErrNoSession is returned when no static session is active.
var ErrNoSession = errors.New("no active session")

// StaticSessionUser is a simulated principal for static demo mode. It has no
// server-side identity and bypasses all authorization checks by design.
type StaticSessionUser struct {
	ID          types.ID  `json:"id"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// StaticSessionStore holds at most one StaticSessionUser under SessionKey.
// The optional file path persists the session across process restarts the
// way local storage persists it across page reloads.
type StaticSessionStore struct {
	mu       sync.RWMutex
	values   map[string][]byte
	filePath string
}

// NewStaticSessionStore creates an in-memory static session store.
func NewStaticSessionStore() *StaticSessionStore {
	return &StaticSessionStore{values: make(map[string][]byte)}
}

// NewFileSessionStore creates a static session store persisted to a file.
// A missing or unreadable file starts the store logged out.
func NewFileSessionStore(path string) *StaticSessionStore {
	s := &StaticSessionStore{
		values:   make(map[string][]byte),
		filePath: path,
	}

	if data, err := os.ReadFile(path); err == nil {
		var user StaticSessionUser
		if json.Unmarshal(data, &user) == nil {
			s.values[SessionKey] = data
		}
	}

	return s
}

// SignIn stores the user as the active static session.
func (s *StaticSessionStore) SignIn(user StaticSessionUser) error {
	if user.ID.IsZero() {
		return fmt.Errorf("session user must have an id")
	}
	if !user.Role.IsValid() {
		return fmt.Errorf("unknown role %q", user.Role)
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[SessionKey] = data
	return s.persist()
}

// Current returns the active static session user, or ErrNoSession.
func (s *StaticSessionStore) Current() (*StaticSessionUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.values[SessionKey]
	if !ok {
		return nil, ErrNoSession
	}

	var user StaticSessionUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("corrupt session data: %w", err)
	}

	return &user, nil
}

// SignOut removes the active static session.
func (s *StaticSessionStore) SignOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, SessionKey)
	return s.persist()
}

// SignedIn reports whether a static session is active.
func (s *StaticSessionStore) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.values[SessionKey]
	return ok
}

func (s *StaticSessionStore) persist() error {
	if s.filePath == "" {
		return nil
	}

	data, ok := s.values[SessionKey]
	if !ok {
		if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear session file: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(s.filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}
