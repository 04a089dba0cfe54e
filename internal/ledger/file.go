// Package ledger reads and updates the license export produced by the
// license-issuing service. The export is authoritative for key status.
package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"licensekeys-bot/internal/atomicfile"
	"licensekeys-bot/internal/license"
)

// File is the export on disk. MarkUsed calls are serialized.
type File struct {
	path   string
	logger *slog.Logger
	nowFn  func() time.Time

	mu sync.Mutex
}

func NewFile(path string, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.Default()
	}
	return &File{path: path, logger: logger, nowFn: time.Now}
}

func (f *File) Path() string { return f.path }

// Load reads and parses the export. An absent or unparseable file yields
// license.ErrLedgerMissing; parse failures additionally wrap
// license.ErrMalformedInput.
func (f *File) Load() (*Snapshot, error) {
	snap, _, err := f.load()
	return snap, err
}

func (f *File) load() (*Snapshot, fs.FileMode, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, license.ErrLedgerMissing
		}
		f.logger.Warn("license export unreadable", "path", f.path, "error", err)
		return nil, 0, fmt.Errorf("%w: %v", license.ErrLedgerMissing, err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		f.logger.Warn("license export unreadable", "path", f.path, "error", err)
		return nil, 0, fmt.Errorf("%w: %v", license.ErrLedgerMissing, err)
	}
	snap, err := Parse(data)
	if err != nil {
		f.logger.Warn("license export malformed", "path", f.path, "error", err)
		return nil, 0, fmt.Errorf("%w: %w", license.ErrLedgerMissing, err)
	}
	return snap, info.Mode().Perm(), nil
}

// MarkUsed flags the record matching key as Used with the current time and
// rewrites the whole export. Nothing is written when the key is absent.
func (f *File) MarkUsed(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap, perm, err := f.load()
	if err != nil {
		return err
	}
	i := snap.index(key)
	if i < 0 {
		return fmt.Errorf("%w in export: %s", license.ErrKeyNotFound, key)
	}
	snap.records[i].markUsed(f.nowFn().Unix())

	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("%w: encode export: %v", license.ErrPersistFailed, err)
	}
	if err := atomicfile.WriteFile(f.path, data, perm); err != nil {
		return fmt.Errorf("%w: %v", license.ErrPersistFailed, err)
	}
	f.logger.Debug("license marked used", "key", snap.records[i].Key(), "shape", snap.Shape().String())
	return nil
}
