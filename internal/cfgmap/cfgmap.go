// File: internal/cfgmap/cfgmap.go
// Package cfgmap holds the nested key-value document that transforms operate
// on, plus helpers for reaching into it by key path.
package cfgmap

import (
	"errors"
	"fmt"
	"strings"
)

// Map is a generated configuration document.
type Map = map[string]any

var (
	// ErrNotMapping is returned when a key path traverses a non-mapping value.
	ErrNotMapping = errors.New("cfgmap: value is not a mapping")
	// ErrKeyNotFound is returned when a key in a path does not exist.
	ErrKeyNotFound = errors.New("cfgmap: key not found")
	// ErrEmptyPath is returned for operations given no keys.
	ErrEmptyPath = errors.New("cfgmap: empty key path")
)

// Get returns the value at the nested key path.
func Get(m Map, keys ...string) (any, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyPath
	}
	var cur any = m
	for i, k := range keys {
		node, ok := asMap(cur)
		if !ok {
			return nil, fmt.Errorf("%w: %q holds %T", ErrNotMapping, path(keys[:i]), cur)
		}
		v, exists := node[k]
		if !exists {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, path(keys[:i+1]))
		}
		cur = v
	}
	return cur, nil
}

// Insert sets value at the nested key path, creating or overwriting the last
// key. Every intermediate key must already hold a mapping.
func Insert(m Map, keys []string, value any) error {
	if len(keys) == 0 {
		return ErrEmptyPath
	}
	parent, err := parentOf(m, keys)
	if err != nil {
		return err
	}
	parent[keys[len(keys)-1]] = value
	return nil
}

// Remove deletes the last key of the nested key path.
func Remove(m Map, keys []string) error {
	if len(keys) == 0 {
		return ErrEmptyPath
	}
	parent, err := parentOf(m, keys)
	if err != nil {
		return err
	}
	last := keys[len(keys)-1]
	if _, ok := parent[last]; !ok {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, path(keys))
	}
	delete(parent, last)
	return nil
}

func parentOf(m Map, keys []string) (Map, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil document", ErrNotMapping)
	}
	cur := m
	for i, k := range keys[:len(keys)-1] {
		v, ok := cur[k]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, path(keys[:i+1]))
		}
		next, ok := asMap(v)
		if !ok {
			return nil, fmt.Errorf("%w: %q holds %T", ErrNotMapping, path(keys[:i+1]), v)
		}
		cur = next
	}
	return cur, nil
}

// asMap only recognizes Map; decoded input must go through Normalize first.
func asMap(v any) (Map, bool) {
	t, ok := v.(map[string]any)
	return t, ok
}

func path(keys []string) string { return strings.Join(keys, ".") }

// Normalize converts nested map[any]any, map[string]any and []any values
// into Map and []any recursively, stringifying non-string keys.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(Map, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(Map, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}

// Clone deep-copies m. Scalars are shared; maps and slices are not.
func Clone(m Map) Map {
	if m == nil {
		return Map{}
	}
	return Normalize(m).(Map)
}

// CloneValue deep-copies an arbitrary document value.
func CloneValue(v any) any { return Normalize(v) }
