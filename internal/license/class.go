package license

import (
	"fmt"
	"strings"
)

// OneYear is the expiry threshold, in seconds, at or above which a key is Lifetime.
const OneYear int64 = 31536000

type Class string

const (
	ClassUnknown  Class = "unknown"
	ClassMonthly  Class = "monthly"
	ClassLifetime Class = "lifetime"
)

func Classify(expirySeconds int64) Class {
	switch {
	case expirySeconds <= 0:
		return ClassUnknown
	case expirySeconds >= OneYear:
		return ClassLifetime
	default:
		return ClassMonthly
	}
}

// Bucket maps a class onto a storage bucket; Unknown lands in Monthly.
func (c Class) Bucket() Class {
	if c == ClassLifetime {
		return ClassLifetime
	}
	return ClassMonthly
}

func (c Class) Title() string {
	switch c {
	case ClassMonthly:
		return "Monthly"
	case ClassLifetime:
		return "Lifetime"
	default:
		return "Unknown"
	}
}

func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ClassMonthly):
		return ClassMonthly, nil
	case string(ClassLifetime):
		return ClassLifetime, nil
	}
	return "", fmt.Errorf("%w: license type must be monthly or lifetime, got %q", ErrMalformedInput, s)
}

// Status is a ledger record's usage status. Values other than the
// constants below are carried through verbatim from the export.
type Status string

const (
	StatusUnknown Status = ""
	StatusNotUsed Status = "Not Used"
	StatusUsed    Status = "Used"
)

// Eligible reports whether a record with this status may sit in the pool.
// Freshly issued keys often omit the field, so Unknown counts.
func (s Status) Eligible() bool {
	return s == StatusNotUsed || s == StatusUnknown
}

func (s Status) String() string {
	if s == StatusUnknown {
		return "Unknown"
	}
	return string(s)
}
