package ledger

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"licensekeys-bot/internal/license"
)

const (
	fieldStatus = "status"
	fieldExpiry = "expiry"
	fieldUsedOn = "usedon"
)

// keyFields are tried in order when extracting a record's key string.
var keyFields = []string{"key", "license", "value"}

// Record is one entry of the export. Fields this package does not
// understand are kept as raw JSON and written back unchanged.
type Record struct {
	fields map[string]json.RawMessage // nil when the element is not an object
	raw    json.RawMessage
}

func newRecord(raw json.RawMessage) Record {
	rec := Record{raw: raw}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil && fields != nil {
		rec.fields = fields
	}
	return rec
}

// Key returns the first non-empty string among key, license and value.
func (r Record) Key() string {
	for _, name := range keyFields {
		if s, ok := r.stringField(name); ok && s != "" {
			return s
		}
	}
	return ""
}

// Display is the key string, or the raw record JSON when no key can be extracted.
func (r Record) Display() string {
	if k := r.Key(); k != "" {
		return k
	}
	if r.fields != nil {
		if b, err := encode(r.fields, ""); err == nil {
			return string(b)
		}
	}
	return string(r.raw)
}

func (r Record) Status() license.Status {
	s, ok := r.stringField(fieldStatus)
	if !ok {
		return license.StatusUnknown
	}
	return license.Status(strings.TrimSpace(s))
}

// ExpirySeconds returns the expiry duration, or 0 when absent or unparseable.
// Exports carry it either as a number or as a numeric string.
func (r Record) ExpirySeconds() int64 {
	raw, ok := r.fields[fieldExpiry]
	if !ok {
		return 0
	}
	if s, ok := r.stringField(fieldExpiry); ok {
		return parseSeconds(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	return numberSeconds(n)
}

func (r Record) Class() license.Class {
	return license.Classify(r.ExpirySeconds())
}

func (r Record) UsedAt() (int64, bool) {
	raw, ok := r.fields[fieldUsedOn]
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if n == "" {
		return 0, false
	}
	return numberSeconds(n), true
}

func (r Record) stringField(name string) (string, bool) {
	raw, ok := r.fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (r *Record) markUsed(now int64) {
	r.fields[fieldStatus] = json.RawMessage(strconv.Quote(string(license.StatusUsed)))
	r.fields[fieldUsedOn] = json.RawMessage(strconv.FormatInt(now, 10))
}

func (r Record) value() any {
	if r.fields == nil {
		return r.raw
	}
	return r.fields
}

// numberSeconds truncates a JSON number, exponent forms included, to whole seconds.
func numberSeconds(n json.Number) int64 {
	if v, err := n.Int64(); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// parseSeconds reads the leading integer of s, ignoring any fractional part
// or trailing text ("2592000", "2592000.0" and "2592000s" all give 2592000).
func parseSeconds(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
