// Package session implements client-side session state and route guarding
// on top of the shared token contract. The session is an explicit object
// loaded once at startup, not ambient global state.
package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/token"
)

// TokenStore persists the session token between application runs
type TokenStore interface {
	Get() (string, error)
	Set(tokenString string) error
	Clear() error
}

// MemoryStore is an in-memory TokenStore
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore creates an empty in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryStore) Set(tokenString string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tokenString
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// TokenValidator validates a session token and returns the embedded identity
type TokenValidator interface {
	Validate(tokenString string) (*token.Identity, error)
}

// State is the session resolution state
type State int

const (
	// StateLoading means the stored token has not been resolved yet.
	// No rendering decision is made in this state.
	StateLoading State = iota

	// StateResolved means the stored token has been validated or found
	// absent/invalid
	StateResolved
)

// Session holds the resolved authentication state for a client run
type Session struct {
	store     TokenStore
	validator TokenValidator
	logger    *zap.Logger

	mu       sync.RWMutex
	state    State
	identity *token.Identity
}

// NewSession creates an unresolved session; call Load before evaluating
// any guarded route
func NewSession(store TokenStore, validator TokenValidator, logger *zap.Logger) *Session {
	return &Session{
		store:     store,
		validator: validator,
		logger:    logger,
		state:     StateLoading,
	}
}

// Load resolves the persisted token. A token that fails validation is
// treated identically to no token: it is cleared from storage and the
// session resolves unauthenticated. Authentication is re-resolved on every
// load, never cached from a previous run.
func (s *Session) Load() error {
	stored, err := s.store.Get()
	if err != nil {
		return err
	}

	var identity *token.Identity
	if stored != "" {
		identity, err = s.validator.Validate(stored)
		if err != nil {
			// Malformed and expired are handled the same way, the
			// distinction only matters for logging
			s.logger.Debug("stored token rejected", zap.Error(err))
			if clearErr := s.store.Clear(); clearErr != nil {
				return clearErr
			}
			identity = nil
		}
	}

	s.mu.Lock()
	s.identity = identity
	s.state = StateResolved
	s.mu.Unlock()
	return nil
}

// SignIn stores a freshly minted token and resolves the session with its
// identity
func (s *Session) SignIn(tokenString string) error {
	identity, err := s.validator.Validate(tokenString)
	if err != nil {
		return err
	}
	if err := s.store.Set(tokenString); err != nil {
		return err
	}

	s.mu.Lock()
	s.identity = identity
	s.state = StateResolved
	s.mu.Unlock()
	return nil
}

// SignOut clears the stored token and the resolved identity
func (s *Session) SignOut() error {
	if err := s.store.Clear(); err != nil {
		return err
	}

	s.mu.Lock()
	s.identity = nil
	s.state = StateResolved
	s.mu.Unlock()
	return nil
}

// State returns the current resolution state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Identity returns the authenticated identity, or nil when unauthenticated
// or still loading
func (s *Session) Identity() *token.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}
