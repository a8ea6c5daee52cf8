// Package store persists the subscriber list, the last processed post and
// run statistics as one JSON document. Every mutation loads the whole
// document, applies a pure mutator and replaces the file atomically via
// write-to-temp-then-rename, so concurrent readers never observe a partial
// write.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/models"
	"go.uber.org/zap"
)

const stateFile = "subscribers.json"

type Store struct {
	log  *zap.Logger
	path string

	// Serializes writers within this process. Cross-process safety is out of
	// scope: a single instance owns the data directory.
	mu sync.Mutex
}

func NewStore(log *zap.Logger, cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{log: log, path: filepath.Join(cfg.DataDir, stateFile)}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		if err := s.write(&models.State{Subscribers: []models.Subscriber{}}); err != nil {
			return nil, fmt.Errorf("initialize state document: %w", err)
		}
		log.Sugar().Infof("Initialized state document at %s", s.path)
	}
	return s, nil
}

// Load returns a private copy of the current state.
func (s *Store) Load() (*models.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read state document: %w", err)
	}

	state := &models.State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, &models.StoreCorruptError{Path: s.path, Err: err}
	}
	if state.Subscribers == nil {
		state.Subscribers = []models.Subscriber{}
	}
	return state, nil
}

// Update applies mutate to the current state and persists the whole document
// atomically. The mutator must be pure: it may only touch the state it is
// given.
func (s *Store) Update(mutate func(*models.State) error) (*models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := mutate(state); err != nil {
		return nil, err
	}
	if err := s.write(state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Store) write(state *models.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), stateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Snapshot returns the serialized state document, for the dashboard and the
// backup exporter.
func (s *Store) Snapshot() ([]byte, error) {
	state, err := s.Load()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(state, "", "  ")
}

func (s *Store) Subscribers() ([]models.Subscriber, error) {
	state, err := s.Load()
	if err != nil {
		return nil, err
	}
	return state.Subscribers, nil
}

func (s *Store) LastPost() (*models.LastPost, error) {
	state, err := s.Load()
	if err != nil {
		return nil, err
	}
	return state.LastPost, nil
}

// AddSubscriber registers a new email address. Returns false without error
// when the address is already subscribed.
func (s *Store) AddSubscriber(email string) (bool, error) {
	token, err := newToken()
	if err != nil {
		return false, err
	}

	added := false
	_, err = s.Update(func(state *models.State) error {
		if state.FindSubscriber(email) != nil {
			return nil
		}
		state.Subscribers = append(state.Subscribers, models.Subscriber{
			Email:            email,
			SubscribedAt:     time.Now().UTC(),
			UnsubscribeToken: token,
		})
		added = true
		return nil
	})
	return added, err
}

// RemoveSubscriber deletes the subscriber holding token. Returns false
// without error when no subscriber matches.
func (s *Store) RemoveSubscriber(token string) (bool, error) {
	removed := false
	_, err := s.Update(func(state *models.State) error {
		kept := state.Subscribers[:0]
		for _, sub := range state.Subscribers {
			if sub.UnsubscribeToken == token {
				removed = true
				continue
			}
			kept = append(kept, sub)
		}
		state.Subscribers = kept
		return nil
	})
	return removed, err
}

// newToken draws 256 bits from crypto/rand. The token is the only credential
// for removal; it is never reused.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate unsubscribe token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
