// Package inventory reconciles, allocates and edits the local key pool
// against the license export.
package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"licensekeys-bot/internal/ledger"
	"licensekeys-bot/internal/license"
	"licensekeys-bot/internal/pool"
	"licensekeys-bot/internal/store"
)

type Ledger interface {
	Load() (*ledger.Snapshot, error)
	MarkUsed(key string) error
}

type PoolStore interface {
	Load() pool.Pool
	Save(p pool.Pool) error
}

// Journal records handed-out keys. Optional.
type Journal interface {
	RecordDispensation(d store.Dispensation) (store.Dispensation, error)
	RecentDispensations(limit int) ([]store.Dispensation, error)
	FindDispensation(key string) (store.Dispensation, error)
}

type Dependencies struct {
	Ledger  Ledger
	Pool    PoolStore
	Journal Journal
	Logger  *slog.Logger
}

// Service runs every pool operation under one mutex, so concurrent callers
// never interleave a load-mutate-save sequence.
type Service struct {
	ledger  Ledger
	pool    PoolStore
	journal Journal
	logger  *slog.Logger
	intN    func(n int) int

	mu sync.Mutex
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:  deps.Ledger,
		pool:    deps.Pool,
		journal: deps.Journal,
		logger:  logger,
		intN:    rand.Intn,
	}
}

type SyncResult struct {
	Monthly  int `json:"monthly"`
	Lifetime int `json:"lifetime"`
}

type Recipient struct {
	Name   string
	ChatID int64
}

type Allocation struct {
	Key          string
	Class        license.Class
	LedgerMarked bool
}

type KeyStatus struct {
	Key          string
	Status       license.Status
	Class        license.Class
	UsedAt       time.Time // zero when the export has no usage time
	Dispensation *store.Dispensation
}

// Reconcile rebuilds the pool from every unused record of the export and
// overwrites whatever the pool held before, including keys added by hand.
func (s *Service) Reconcile() (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.ledger.Load()
	if err != nil {
		return SyncResult{}, err
	}

	monthly, lifetime := newKeySet(), newKeySet()
	for _, rec := range snap.Records() {
		if !rec.Status().Eligible() {
			continue
		}
		key := rec.Key()
		if key == "" {
			continue
		}
		if rec.Class().Bucket() == license.ClassLifetime {
			lifetime.add(key)
		} else {
			monthly.add(key)
		}
	}

	p := pool.Pool{Monthly: monthly.keys, Lifetime: lifetime.keys}
	if err := s.pool.Save(p); err != nil {
		return SyncResult{}, err
	}
	res := SyncResult{Monthly: len(p.Monthly), Lifetime: len(p.Lifetime)}
	s.logger.Info("license pool reconciled", "monthly", res.Monthly, "lifetime", res.Lifetime)
	return res, nil
}

// Allocate removes a uniformly random key of class c from the pool and
// marks it used in the export. A failed export update is logged and does
// not fail the allocation: the key has already left the pool.
func (s *Service) Allocate(c license.Class, to Recipient) (Allocation, error) {
	if c != license.ClassMonthly && c != license.ClassLifetime {
		return Allocation{}, fmt.Errorf("%w: cannot allocate %q keys", license.ErrMalformedInput, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pool.Load()
	n := p.Len(c)
	if n == 0 {
		return Allocation{}, fmt.Errorf("%w: %s", license.ErrPoolExhausted, c)
	}
	key := p.TakeAt(c, s.intN(n))
	if err := s.pool.Save(p); err != nil {
		return Allocation{}, err
	}

	alloc := Allocation{Key: key, Class: c, LedgerMarked: true}
	d := store.Dispensation{Key: key, Class: c, Recipient: to.Name, ChatID: to.ChatID, LedgerMarked: true}
	if err := s.ledger.MarkUsed(key); err != nil {
		s.logger.Warn("could not mark key as used in export", "class", c, "error", err)
		alloc.LedgerMarked = false
		d.LedgerMarked = false
		d.LedgerError = err.Error()
	}
	if s.journal != nil {
		if _, err := s.journal.RecordDispensation(d); err != nil {
			s.logger.Warn("could not journal dispensation", "class", c, "error", err)
		}
	}
	s.logger.Info("license key dispensed", "class", c, "recipient", to.Name, "remaining", n-1)
	return alloc, nil
}

func (s *Service) Status(key string) (KeyStatus, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return KeyStatus{}, fmt.Errorf("%w: empty key", license.ErrMalformedInput)
	}
	snap, err := s.ledger.Load()
	if err != nil {
		return KeyStatus{}, err
	}
	rec, ok := snap.Find(key)
	if !ok {
		return KeyStatus{}, fmt.Errorf("%w: %s", license.ErrKeyNotFound, key)
	}
	st := KeyStatus{Key: rec.Key(), Status: rec.Status(), Class: rec.Class()}
	if sec, ok := rec.UsedAt(); ok {
		st.UsedAt = time.Unix(sec, 0).UTC()
	}
	if s.journal != nil {
		d, err := s.journal.FindDispensation(key)
		switch {
		case err == nil:
			st.Dispensation = &d
		case !errors.Is(err, license.ErrKeyNotFound):
			s.logger.Warn("could not read dispensation journal", "error", err)
		}
	}
	return st, nil
}

// AddKey stores key in the bucket its export record implies, or Monthly
// when the export does not know it.
func (s *Service) AddKey(key string) (license.Class, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: empty key", license.ErrMalformedInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := license.ClassMonthly
	if snap, err := s.ledger.Load(); err == nil {
		if rec, ok := snap.Find(key); ok {
			c = rec.Class().Bucket()
		}
	}

	p := s.pool.Load()
	if p.Contains(c, key) {
		return c, fmt.Errorf("%w: %s", license.ErrDuplicateKey, c)
	}
	p.Add(c, key)
	if err := s.pool.Save(p); err != nil {
		return c, err
	}
	s.logger.Info("license key added", "class", c)
	return c, nil
}

// RemoveKey drops the first exact match of key, Monthly before Lifetime.
func (s *Service) RemoveKey(key string) (license.Class, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: empty key", license.ErrMalformedInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pool.Load()
	c, ok := p.Remove(key)
	if !ok {
		return "", fmt.Errorf("%w in local pool", license.ErrKeyNotFound)
	}
	if err := s.pool.Save(p); err != nil {
		return c, err
	}
	s.logger.Info("license key removed", "class", c)
	return c, nil
}

// ListUnused returns every export key not marked Used, in export order.
// It reads the export directly and ignores the pool.
func (s *Service) ListUnused() ([]string, error) {
	snap, err := s.ledger.Load()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rec := range snap.Records() {
		if rec.Status() == license.StatusUsed {
			continue
		}
		out = append(out, rec.Display())
	}
	return out, nil
}

func (s *Service) Counts() SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pool.Load()
	return SyncResult{Monthly: len(p.Monthly), Lifetime: len(p.Lifetime)}
}

func (s *Service) Recent(limit int) ([]store.Dispensation, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.RecentDispensations(limit)
}

type keySet struct {
	seen map[string]struct{}
	keys []string
}

func newKeySet() *keySet {
	return &keySet{seen: map[string]struct{}{}, keys: []string{}}
}

func (k *keySet) add(key string) {
	if _, ok := k.seen[key]; ok {
		return
	}
	k.seen[key] = struct{}{}
	k.keys = append(k.keys, key)
}
