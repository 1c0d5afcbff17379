package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/guardhome/guardhome/internal/guard/domain"
	"github.com/guardhome/guardhome/internal/guard/services/unblock"
)

var bucketAttempts = []byte("attempts")

// Journal records every rule-mutation attempt in a bbolt database, one
// entry per invocation, keyed by an ever-increasing sequence. It is an
// audit surface: writes never fail a user-facing call, callers log and
// move on.
type Journal struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures the
// attempts bucket exists.
func New(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAttempts)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Append persists one attempt entry and assigns it a sequence number.
func (j *Journal) Append(e domain.Attempt) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		e.Seq = seq
		val, err := json.Marshal(e)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, val)
	})
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]domain.Attempt, error) {
	if n <= 0 {
		return nil, fmt.Errorf("n must be positive, got %d", n)
	}
	var entries []domain.Attempt
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAttempts).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var e domain.Attempt
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("corrupt journal entry: %w", err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Len returns the number of journaled attempts.
func (j *Journal) Len() (int, error) {
	var n int
	err := j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketAttempts).Stats().KeyN
		return nil
	})
	return n, err
}

var _ unblock.AttemptJournal = (*Journal)(nil)
