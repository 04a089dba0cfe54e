package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"licensekeys-bot/internal/license"

	"github.com/tidwall/jsonc"
)

// Shape is the top-level layout of an export file.
type Shape int

const (
	// ShapeUnknown is any document this package cannot find records in.
	ShapeUnknown Shape = iota
	// ShapeArray is a bare array of records.
	ShapeArray
	// ShapeKeys is an object holding records under "keys".
	ShapeKeys
	// ShapeLicenses is an object holding records under "licenses".
	ShapeLicenses
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeKeys:
		return "keys"
	case ShapeLicenses:
		return "licenses"
	default:
		return "unknown"
	}
}

// Snapshot is a parsed export: the record list plus the envelope needed to
// write the document back in its original shape.
type Snapshot struct {
	shape    Shape
	envelope map[string]json.RawMessage // top-level object fields, wrapped shapes only
	raw      []byte
	records  []Record
}

// Parse decodes an export document. Comments and trailing commas are tolerated.
func Parse(data []byte) (*Snapshot, error) {
	data = jsonc.ToJSON(data)
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: export is not valid JSON", license.ErrMalformedInput)
	}
	snap := &Snapshot{raw: trimmed}

	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		list, err := decodeList(trimmed)
		if err != nil {
			return nil, err
		}
		snap.shape = ShapeArray
		snap.records = list
	case len(trimmed) > 0 && trimmed[0] == '{':
		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", license.ErrMalformedInput, err)
		}
		snap.envelope = env
		for _, c := range []struct {
			field string
			shape Shape
		}{{"keys", ShapeKeys}, {"licenses", ShapeLicenses}} {
			raw, ok := env[c.field]
			if !ok || !isArray(raw) {
				continue
			}
			list, err := decodeList(raw)
			if err != nil {
				return nil, err
			}
			snap.shape = c.shape
			snap.records = list
			break
		}
	}
	return snap, nil
}

func (s *Snapshot) Shape() Shape { return s.shape }

// Records returns the normalized record sequence in export order. Unknown
// shapes yield an empty sequence.
func (s *Snapshot) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Find returns the first record whose key matches key, ignoring case and separators.
func (s *Snapshot) Find(key string) (Record, bool) {
	i := s.index(key)
	if i < 0 {
		return Record{}, false
	}
	return s.records[i], true
}

func (s *Snapshot) index(key string) int {
	want := license.NormalizeKey(key)
	if want == "" {
		return -1
	}
	for i, rec := range s.records {
		if license.NormalizeKey(rec.Key()) == want {
			return i
		}
	}
	return -1
}

// Marshal renders the snapshot in its original shape. Sibling top-level
// fields of wrapped exports are written back untouched.
func (s *Snapshot) Marshal() ([]byte, error) {
	var doc any
	switch s.shape {
	case ShapeArray:
		doc = s.values()
	case ShapeKeys, ShapeLicenses:
		env := make(map[string]any, len(s.envelope))
		for k, v := range s.envelope {
			env[k] = v
		}
		env[s.shape.String()] = s.values()
		doc = env
	default:
		doc = json.RawMessage(s.raw)
	}
	return encode(doc, "  ")
}

func (s *Snapshot) values() []any {
	list := make([]any, 0, len(s.records))
	for _, rec := range s.records {
		list = append(list, rec.value())
	}
	return list
}

// encode is json.MarshalIndent without HTML escaping, so string contents
// are written back exactly as they were read.
func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func decodeList(raw json.RawMessage) ([]Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", license.ErrMalformedInput, err)
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		out = append(out, newRecord(item))
	}
	return out, nil
}

func isArray(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '['
}
