package wallet

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"sort"
)

// Record is one entry of a collection. Values are JSON-compatible.
type Record map[string]any

// Match requires Field to be present in a record and equal to Value.
type Match struct {
	Field string
	Value any
}

// Predicate selects records matching every one of its Matches.
type Predicate []Match

// Where starts a predicate with a single field.
func Where(field string, value any) Predicate {
	return Predicate{{Field: field, Value: value}}
}

// And returns a copy of p extended with another field.
func (p Predicate) And(field string, value any) Predicate {
	out := make(Predicate, len(p), len(p)+1)
	copy(out, p)
	return append(out, Match{Field: field, Value: value})
}

// PredicateFrom builds a predicate from field/value pairs, ordered by field
// name.
func PredicateFrom(fields map[string]any) Predicate {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	p := make(Predicate, 0, len(names))
	for _, name := range names {
		p = append(p, Match{Field: name, Value: fields[name]})
	}
	return p
}

// Matches reports whether r satisfies every Match in p. An empty predicate
// matches nothing.
func (p Predicate) Matches(r Record) bool {
	if len(p) == 0 {
		return false
	}
	for _, m := range p {
		v, ok := r[m.Field]
		if !ok || !equalValues(v, m.Value) {
			return false
		}
	}
	return true
}

// Get returns the last record of collection matching p. Records are
// scanned in insertion order and each match replaces the previous one.
// The second result is false when nothing matched or the collection does
// not exist.
func (w *Wallet) Get(collection string, p Predicate) (Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var found Record
	for _, r := range w.data[collection] {
		if p.Matches(r) {
			found = r
		}
	}
	if found == nil {
		return nil, false
	}
	return maps.Clone(found), true
}

// Add appends record to collection, creating the collection when needed.
// The wallet is marked changed even when validation fails.
func (w *Wallet) Add(collection string, record Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed = true

	if err := validateCollection(collection); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: record must not be nil", ErrInvalidArgument)
	}

	w.data[collection] = append(w.data[collection], maps.Clone(record))
	return nil
}

// Update merges patch into every record of collection matching p, patch
// fields winning. It reports whether at least one record was updated; an
// empty predicate updates nothing.
func (w *Wallet) Update(collection string, p Predicate, patch Record) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed = true

	if err := validateCollection(collection); err != nil {
		return false, err
	}
	if err := validatePredicate(p); err != nil {
		return false, err
	}
	if patch == nil {
		return false, fmt.Errorf("%w: patch must not be nil", ErrInvalidArgument)
	}

	records := w.data[collection]
	updated := 0
	for i, r := range records {
		if !p.Matches(r) {
			continue
		}
		merged := maps.Clone(r)
		maps.Copy(merged, patch)
		records[i] = merged
		updated++
	}
	return updated > 0, nil
}

// Remove deletes every record of collection matching p and returns the
// remaining records in their original order. An empty predicate removes
// nothing.
func (w *Wallet) Remove(collection string, p Predicate) ([]Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed = true

	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := validatePredicate(p); err != nil {
		return nil, err
	}

	records, ok := w.data[collection]
	if !ok {
		return []Record{}, nil
	}

	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if !p.Matches(r) {
			kept = append(kept, r)
		}
	}
	w.data[collection] = kept
	return cloneRecords(kept), nil
}

func validateCollection(collection string) error {
	if collection == "" {
		return fmt.Errorf("%w: collection name must not be empty", ErrInvalidArgument)
	}
	return nil
}

// validatePredicate rejects matches without a field name. An empty
// predicate is valid and matches nothing.
func validatePredicate(p Predicate) error {
	for _, m := range p {
		if m.Field == "" {
			return fmt.Errorf("%w: predicate field must not be empty", ErrInvalidArgument)
		}
	}
	return nil
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = maps.Clone(r)
	}
	return out
}

// equalValues compares two JSON-compatible values. Numbers compare by
// value regardless of Go type, since records read back from storage carry
// float64 where the caller may have stored an int.
func equalValues(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case Record:
		return normalize(map[string]any(x))
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
