package expr

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
)

// Rand is the subset of *rand.Rand the random expressions draw from.
type Rand interface {
	Float64() float64
	Int63n(n int64) int64
	Intn(n int) int
}

type randKey struct{}

// ContextWithRand attaches r to ctx. The generator gives each document its
// own seeded source so runs are reproducible.
func ContextWithRand(ctx context.Context, r Rand) context.Context {
	return context.WithValue(ctx, randKey{}, r)
}

// RandFromContext returns the source attached to ctx, or the process-wide
// math/rand source, which is safe for concurrent use.
func RandFromContext(ctx context.Context) Rand {
	if r, ok := ctx.Value(randKey{}).(Rand); ok && r != nil {
		return r
	}
	return globalRand{}
}

type globalRand struct{}

func (globalRand) Float64() float64      { return rand.Float64() }
func (globalRand) Int63n(n int64) int64 { return rand.Int63n(n) }
func (globalRand) Intn(n int) int       { return rand.Intn(n) }

func uniform(r Rand, low, high float64) float64 {
	return low + (high-low)*r.Float64()
}

// Uniform samples a float uniformly from [low, high).
func Uniform(low, high float64) Func {
	return func(ctx context.Context, _ cfgmap.Map) (any, error) {
		if high < low {
			return nil, fmt.Errorf("%w: uniform high %v is below low %v", ErrValue, high, low)
		}
		return uniform(RandFromContext(ctx), low, high), nil
	}
}

// RandInt samples an integer uniformly from [low, high], both inclusive.
func RandInt(low, high int) Func {
	return func(ctx context.Context, _ cfgmap.Map) (any, error) {
		if high < low {
			return nil, fmt.Errorf("%w: randint high %d is below low %d", ErrValue, high, low)
		}
		span := uint64(high) - uint64(low)
		if span >= math.MaxInt64 {
			return nil, fmt.Errorf("%w: randint range [%d, %d] is too wide", ErrValue, low, high)
		}
		return low + int(RandFromContext(ctx).Int63n(int64(span)+1)), nil
	}
}

// Choice picks one of values uniformly.
func Choice(values []any) Func {
	return func(ctx context.Context, _ cfgmap.Map) (any, error) {
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: choice from an empty list", ErrValue)
		}
		return cfgmap.CloneValue(values[RandFromContext(ctx).Intn(len(values))]), nil
	}
}

// Jitter returns cfg[key] plus noise sampled uniformly from
// [-p*reference, p*reference).
func Jitter(key string, p, reference float64) Func {
	return func(ctx context.Context, cfg cfgmap.Map) (any, error) {
		n, err := numberAt(cfg, key)
		if err != nil {
			return nil, err
		}
		return AddUniformJitter(RandFromContext(ctx), n.float(), p, reference), nil
	}
}

// AddUniformJitter returns value + U(-p*reference, p*reference).
func AddUniformJitter(r Rand, value, p, reference float64) float64 {
	effective := p * reference
	if effective < 0 {
		effective = -effective
	}
	return value + uniform(r, -effective, effective)
}

// Const returns a fresh copy of value on every evaluation.
func Const(value any) Func {
	return func(context.Context, cfgmap.Map) (any, error) {
		return cfgmap.CloneValue(value), nil
	}
}

// Lookup returns a copy of the value at the nested key path.
func Lookup(keys ...string) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		v, err := cfgmap.Get(cfg, keys...)
		if err != nil {
			return nil, err
		}
		return cfgmap.CloneValue(v), nil
	}
}
