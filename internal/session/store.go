// ABOUTME: Token persistence for restoring a session across process restarts
// ABOUTME: Provides an OS keyring backend and an in-memory backend for tests

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrNoSession is returned by a TokenStore that holds no session.
var ErrNoSession = errors.New("no stored session")

// TokenStore persists the token pair. Only tokens are persisted; habit data
// is always reloaded from the server.
type TokenStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// MemoryStore is a TokenStore that lives for the duration of the process.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, ErrNoSession
	}
	return *s.session, nil
}

func (s *MemoryStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &sess
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

// KeyringStore keeps the serialized session in the OS keyring.
type KeyringStore struct {
	Service string
	User    string
}

// NewKeyringStore creates a KeyringStore for the given service name.
func NewKeyringStore(service, user string) *KeyringStore {
	if user == "" {
		user = "session"
	}
	return &KeyringStore{Service: service, User: user}
}

func (s *KeyringStore) Load() (Session, error) {
	raw, err := keyring.Get(s.Service, s.User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("reading keyring: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, fmt.Errorf("decoding stored session: %w", err)
	}
	return sess, nil
}

func (s *KeyringStore) Save(sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := keyring.Set(s.Service, s.User, string(raw)); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear() error {
	err := keyring.Delete(s.Service, s.User)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring entry: %w", err)
	}
	return nil
}
