package pool

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"licensekeys-bot/internal/atomicfile"
	"licensekeys-bot/internal/license"

	"github.com/tidwall/jsonc"
)

// FileStore keeps the pool as a JSON document on disk. It does no locking of
// its own; callers that load, mutate and save must hold their own lock.
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Path() string { return s.path }

// Load reads the pool. A missing, unreadable or unrecognized file yields an
// empty pool. Files in the older per-user layout are discarded, not migrated.
func (s *FileStore) Load() Pool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("failed to read license pool", "path", s.path, "error", err)
		}
		return Empty()
	}
	p, err := decode(data)
	if err != nil {
		s.logger.Warn("discarding license pool", "path", s.path, "error", err)
		return Empty()
	}
	return p
}

// Save overwrites the pool file in one step.
func (s *FileStore) Save(p Pool) error {
	p.normalize()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", license.ErrPersistFailed, err)
	}
	if err := atomicfile.WriteFile(s.path, data, 0o600); err != nil {
		s.logger.Error("failed to save license pool", "path", s.path, "error", err)
		return fmt.Errorf("%w: %v", license.ErrPersistFailed, err)
	}
	return nil
}

func decode(data []byte) (Pool, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return Pool{}, fmt.Errorf("%w: %v", license.ErrMalformedInput, err)
	}
	_, hasMonthly := doc["monthly"]
	_, hasLifetime := doc["lifetime"]
	if !hasMonthly && !hasLifetime {
		return Pool{}, fmt.Errorf("%w: legacy or unrecognized pool layout", license.ErrMalformedInput)
	}

	var p Pool
	if hasMonthly {
		if err := json.Unmarshal(doc["monthly"], &p.Monthly); err != nil {
			return Pool{}, fmt.Errorf("%w: monthly: %v", license.ErrMalformedInput, err)
		}
	}
	if hasLifetime {
		if err := json.Unmarshal(doc["lifetime"], &p.Lifetime); err != nil {
			return Pool{}, fmt.Errorf("%w: lifetime: %v", license.ErrMalformedInput, err)
		}
	}
	p.normalize()
	return p, nil
}
