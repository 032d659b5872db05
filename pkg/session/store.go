package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var bucketSessions = []byte("subagent_sessions")

// Store is a durable session store backed by BoltDB. Bolt's single-writer
// transactions give Touch its atomicity: concurrent resume attempts on the
// same id serialize, and the loser of the race sees the updated counters.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the session database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening session db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes a session record, overwriting any previous state.
func (s *Store) Save(sess *Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("marshaling session %s: %w", sess.ID, err)
		}
		return tx.Bucket(bucketSessions).Put([]byte(sess.ID), data)
	})
}

// Get loads a session by id.
func (s *Store) Get(id string) (*Session, error) {
	var sess Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return &ResumeError{SessionID: id, Err: ErrResumeNotFound}
		}
		return json.Unmarshal(data, &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Touch validates the session and, when resumable, increments its resume
// count and refreshes the last-resumed timestamp — all inside one update
// transaction, so double-counting under concurrent resumes is impossible.
// Returns the post-increment session.
func (s *Store) Touch(id string, now time.Time) (*Session, error) {
	var sess Session
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data := b.Get([]byte(id))
		if data == nil {
			return &ResumeError{SessionID: id, Err: ErrResumeNotFound}
		}
		if err := json.Unmarshal(data, &sess); err != nil {
			return fmt.Errorf("unmarshaling session %s: %w", id, err)
		}
		if err := Validate(&sess, now); err != nil {
			return err
		}
		sess.ResumeCount++
		sess.LastResumedAt = now
		updated, err := json.Marshal(&sess)
		if err != nil {
			return fmt.Errorf("marshaling session %s: %w", id, err)
		}
		return b.Put([]byte(id), updated)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Delete removes a session record. Missing ids are not an error; expiry is
// enforced at resume time, so deletion is housekeeping only.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(id))
	})
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
