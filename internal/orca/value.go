package orca

import "sort"

// Dict is one level of a decoded ORCA header. Values are strings, integers,
// floats, booleans, nested Dicts, or []any sequences, exactly as produced by
// the plist decoder. Lookups never panic on missing or mistyped keys; every
// accessor reports presence through its second return value.
type Dict map[string]any

// Dict returns the nested dictionary stored under key.
func (d Dict) Dict(key string) (Dict, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	return asDict(v)
}

// Array returns the sequence stored under key.
func (d Dict) Array(key string) ([]any, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}

// String returns the string stored under key.
func (d Dict) String(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the integer stored under key. The plist decoder produces
// uint64 for integers unmarshalled into any; signed and plain ints are
// accepted too since tests and callers build Dicts by hand.
func (d Dict) Int(key string) (int, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	return asInt(v)
}

// Uint32 returns the integer stored under key as a uint32.
func (d Dict) Uint32(key string) (uint32, bool) {
	n, ok := d.Int(key)
	if !ok || n < 0 {
		return 0, false
	}
	return uint32(n), true
}

// Float returns the floating-point value stored under key.
func (d Dict) Float(key string) (float64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	if n, ok := asInt(v); ok {
		return float64(n), true
	}
	return 0, false
}

// Has reports whether key is present at this level.
func (d Dict) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Keys returns the keys of this level in sorted order. Go maps are unordered,
// so derivations that must be deterministic iterate via Keys.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asDict(v any) (Dict, bool) {
	switch m := v.(type) {
	case Dict:
		return m, true
	case map[string]any:
		return Dict(m), true
	}
	return nil, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case int32:
		return int(n), true
	case uint32:
		return int(n), true
	}
	return 0, false
}
