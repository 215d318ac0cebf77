// Package store persists form sessions in a bbolt database so an HTTP
// client can fill a form over several requests.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when no session has the requested ID.
var ErrNotFound = errors.New("store: session not found")

const bucketSessions = "sessions"

// Session is the persisted state of one form fill. Values are flat,
// keyed by dot-path.
type Session struct {
	ID        string         `json:"id"`
	Spec      string         `json:"spec"`
	Module    string         `json:"module"`
	Section   string         `json:"section,omitempty"`
	Values    map[string]any `json:"values"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store is a bbolt backed session store.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens or creates the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSessions))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores a new session with a fresh ID and returns it.
func (s *Store) Create(session Session) (Session, error) {
	session.ID = uuid.NewString()
	now := s.now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Values == nil {
		session.Values = map[string]any{}
	}
	if err := s.write(session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Put replaces an existing session and bumps its UpdatedAt.
func (s *Store) Put(session Session) (Session, error) {
	return s.Update(session.ID, func(existing *Session) error {
		createdAt := existing.CreatedAt
		*existing = session
		existing.CreatedAt = createdAt
		return nil
	})
}

// Update applies fn to the stored session and saves the result in the same
// transaction, so concurrent updates of one session are serialised. An
// error from fn aborts the update and is returned as is. The ID and
// CreatedAt cannot be changed.
func (s *Store) Update(id string, fn func(*Session) error) (Session, error) {
	if id == "" {
		return Session{}, fmt.Errorf("store: session id is required")
	}
	var session Session
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSessions))
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var existing Session
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("store: decode session %s: %w", id, err)
		}

		session = existing
		if err := fn(&session); err != nil {
			return err
		}
		session.ID = existing.ID
		session.CreatedAt = existing.CreatedAt
		session.UpdatedAt = s.now().UTC()
		if session.Values == nil {
			session.Values = map[string]any{}
		}
		return put(b, session)
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *Store) write(session Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket([]byte(bucketSessions)), session)
	})
}

func put(b *bolt.Bucket, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("store: encode session %s: %w", session.ID, err)
	}
	return b.Put([]byte(session.ID), data)
}

// Get returns a session by ID.
func (s *Store) Get(id string) (Session, error) {
	var session Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketSessions)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &session)
	})
	return session, err
}

// Delete removes a session. Deleting an unknown ID returns ErrNotFound.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSessions))
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}

// List returns every session, oldest first.
func (s *Store) List() ([]Session, error) {
	var sessions []Session
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSessions)).ForEach(func(_, data []byte) error {
			var session Session
			if err := json.Unmarshal(data, &session); err != nil {
				return err
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}
