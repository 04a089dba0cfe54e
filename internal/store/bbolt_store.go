package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"licensekeys-bot/internal/license"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	bucketDispensations = "dispensations"
	bucketDispensedKeys = "dispensed_keys"
)

type BBoltStore struct {
	db *bbolt.DB
}

func OpenBBolt(path string) (*BBoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	st := &BBoltStore{db: db}
	if err := st.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketDispensations)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketDispensedKeys)); err != nil {
			return err
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *BBoltStore) Close() error { return s.db.Close() }

// RecordDispensation appends d to the journal, filling ID and DispensedAt
// when unset. The latest dispensation of a key wins the key index.
func (s *BBoltStore) RecordDispensation(d Dispensation) (Dispensation, error) {
	if d.Key == "" {
		return Dispensation{}, fmt.Errorf("%w: dispensation without key", license.ErrMalformedInput)
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.DispensedAt.IsZero() {
		d.DispensedAt = time.Now().UTC()
	}
	buf, err := json.Marshal(d)
	if err != nil {
		return Dispensation{}, err
	}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDispensations))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id := itob(seq)
		if err := b.Put(id, buf); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketDispensedKeys)).Put([]byte(license.NormalizeKey(d.Key)), id)
	}); err != nil {
		return Dispensation{}, err
	}
	return d, nil
}

// RecentDispensations returns up to limit entries, newest first.
func (s *BBoltStore) RecentDispensations(limit int) ([]Dispensation, error) {
	if limit <= 0 {
		limit = 20
	}
	out := make([]Dispensation, 0, limit)
	if err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketDispensations)).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var d Dispensation
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// FindDispensation returns the latest dispensation of key, compared the same
// way the export compares keys.
func (s *BBoltStore) FindDispensation(key string) (Dispensation, error) {
	var d Dispensation
	if err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(bucketDispensedKeys)).Get([]byte(license.NormalizeKey(key)))
		if id == nil {
			return license.ErrKeyNotFound
		}
		v := tx.Bucket([]byte(bucketDispensations)).Get(id)
		if v == nil {
			return license.ErrKeyNotFound
		}
		return json.Unmarshal(v, &d)
	}); err != nil {
		return Dispensation{}, err
	}
	return d, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
