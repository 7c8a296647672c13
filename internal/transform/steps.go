package transform

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
	"github.com/xkilldash9x/randfig/internal/expr"
)

// Formula computes each key in Keys from Func. Func is evaluated once per
// key, so random expressions give each key its own sample.
type Formula struct {
	Keys []string
	Func expr.Func
}

func (f *Formula) Name() string { return "formula" }

func (f *Formula) Apply(ctx context.Context, cfg cfgmap.Map) (cfgmap.Map, error) {
	if err := checkDocument(cfg); err != nil {
		return nil, err
	}
	for _, k := range f.Keys {
		v, err := f.Func(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("computing %q: %w", k, err)
		}
		cfg[k] = v
	}
	return cfg, nil
}

// Insert sets Value at the nested key path Keys. Value is copied on every
// apply so documents never share mutable state.
type Insert struct {
	Keys  []string
	Value any
}

func (i *Insert) Name() string { return "insert" }

func (i *Insert) Apply(_ context.Context, cfg cfgmap.Map) (cfgmap.Map, error) {
	if err := checkDocument(cfg); err != nil {
		return nil, err
	}
	if err := cfgmap.Insert(cfg, i.Keys, cfgmap.CloneValue(i.Value)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Remove deletes the last key of the nested key path Keys.
type Remove struct {
	Keys []string
}

func (r *Remove) Name() string { return "remove" }

func (r *Remove) Apply(_ context.Context, cfg cfgmap.Map) (cfgmap.Map, error) {
	if err := checkDocument(cfg); err != nil {
		return nil, err
	}
	if err := cfgmap.Remove(cfg, r.Keys); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Nest moves the top-level Keys under a new mapping stored at Root.
type Nest struct {
	Keys []string
	Root string
}

func (n *Nest) Name() string { return "nest" }

func (n *Nest) Apply(_ context.Context, cfg cfgmap.Map) (cfgmap.Map, error) {
	if err := checkDocument(cfg); err != nil {
		return nil, err
	}
	if err := checkKeys(cfg, n.Keys); err != nil {
		return nil, err
	}
	if _, exists := cfg[n.Root]; exists {
		return nil, fmt.Errorf("%w: root %q", ErrKeyExists, n.Root)
	}

	leaves := make(cfgmap.Map, len(n.Keys))
	for _, k := range n.Keys {
		leaves[k] = cfg[k]
		delete(cfg, k)
	}
	cfg[n.Root] = leaves
	return cfg, nil
}

// Unpack spreads the list stored at Keys[i] over the keys NewKeys[i]. With
// Remove set the source key is deleted afterwards.
type Unpack struct {
	Keys    []string
	NewKeys [][]string
	Remove  bool
}

func (u *Unpack) Name() string { return "unpack" }

func (u *Unpack) Apply(_ context.Context, cfg cfgmap.Map) (cfgmap.Map, error) {
	if err := checkDocument(cfg); err != nil {
		return nil, err
	}
	if len(u.Keys) != len(u.NewKeys) {
		return nil, fmt.Errorf("%w: %d keys but %d new key groups", ErrValue, len(u.Keys), len(u.NewKeys))
	}
	for i, key := range u.Keys {
		if err := unpack(cfg, key, u.NewKeys[i], u.Remove); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func unpack(cfg cfgmap.Map, key string, newKeys []string, remove bool) error {
	v, ok := cfg[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	values, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%w: %q holds %T, expected a list", ErrType, key, v)
	}
	if len(values) != len(newKeys) {
		return fmt.Errorf("%w: new keys has length %d and %q has length %d", ErrValue, len(newKeys), key, len(values))
	}
	for _, nk := range newKeys {
		if _, exists := cfg[nk]; exists {
			return fmt.Errorf("%w: %q already exists in the document", ErrValue, nk)
		}
	}
	for i, nk := range newKeys {
		cfg[nk] = values[i]
	}
	if remove {
		delete(cfg, key)
	}
	return nil
}
