// File: internal/expr/expr.go
// Package expr provides the value-producing functions used by Formula
// transforms: arithmetic derived from other keys, random sampling, and the
// divisor search adapter.
package expr

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
)

// Func computes a value from the current document.
type Func func(ctx context.Context, cfg cfgmap.Map) (any, error)

var (
	// ErrType is returned when a document value has the wrong type.
	ErrType = errors.New("expr: unexpected value type")
	// ErrValue is returned when a value is of the right type but unusable.
	ErrValue = errors.New("expr: invalid value")
)

// number is a document numeric that remembers whether it was integral, so
// integer arithmetic stays integer.
type number struct {
	i     int64
	f     float64
	isInt bool
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

// value returns the number as an int or float64, the two numeric shapes
// documents carry.
func (n number) value() any {
	if n.isInt {
		return int(n.i)
	}
	return n.f
}

func intNumber(i int64) number     { return number{i: i, isInt: true} }
func floatNumber(f float64) number { return number{f: f} }

// toNumber accepts Go's integer and float kinds. Strings and bools are
// rejected even though they could be coerced.
func toNumber(v any) (number, error) {
	switch t := v.(type) {
	case int:
		return intNumber(int64(t)), nil
	case int8:
		return intNumber(int64(t)), nil
	case int16:
		return intNumber(int64(t)), nil
	case int32:
		return intNumber(int64(t)), nil
	case int64:
		return intNumber(t), nil
	case uint:
		return intNumber(int64(t)), nil
	case uint8:
		return intNumber(int64(t)), nil
	case uint16:
		return intNumber(int64(t)), nil
	case uint32:
		return intNumber(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return number{}, fmt.Errorf("%w: %d overflows int64", ErrValue, t)
		}
		return intNumber(int64(t)), nil
	case float32:
		return floatNumber(float64(t)), nil
	case float64:
		return floatNumber(t), nil
	default:
		return number{}, fmt.Errorf("%w: expected a number but got %v which is a %T", ErrType, v, v)
	}
}

func numberAt(cfg cfgmap.Map, key string) (number, error) {
	v, err := cfgmap.Get(cfg, key)
	if err != nil {
		return number{}, err
	}
	n, err := toNumber(v)
	if err != nil {
		return number{}, fmt.Errorf("key %q: %w", key, err)
	}
	return n, nil
}

// intAt reads an integer, truncating floats toward zero.
func intAt(cfg cfgmap.Map, key string) (int, error) {
	n, err := numberAt(cfg, key)
	if err != nil {
		return 0, err
	}
	if n.isInt {
		return int(n.i), nil
	}
	if math.IsNaN(n.f) || math.IsInf(n.f, 0) {
		return 0, fmt.Errorf("key %q: %w: %v is not finite", key, ErrValue, n.f)
	}
	return int(math.Trunc(n.f)), nil
}
