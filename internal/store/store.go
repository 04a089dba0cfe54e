package store

import (
	"time"

	"licensekeys-bot/internal/license"

	"github.com/google/uuid"
)

// Dispensation records one key handed out by the allocator.
type Dispensation struct {
	ID           uuid.UUID     `json:"id"`
	Key          string        `json:"key"`
	Class        license.Class `json:"class"`
	Recipient    string        `json:"recipient"`
	ChatID       int64         `json:"chat_id"`
	DispensedAt  time.Time     `json:"dispensed_at"`
	LedgerMarked bool          `json:"ledger_marked"`
	LedgerError  string        `json:"ledger_error,omitempty"`
}

type Store interface {
	Close() error

	RecordDispensation(d Dispensation) (Dispensation, error)
	RecentDispensations(limit int) ([]Dispensation, error)
	FindDispensation(key string) (Dispensation, error)
}
