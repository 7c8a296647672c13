package expr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
	"github.com/xkilldash9x/randfig/internal/divisor"
)

func TestRegistryBuild(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	tests := []struct {
		name string
		args Args
		cfg  cfgmap.Map
		want any
	}{
		{"divisor", Args{"key": "n", "strategy": "nearest-below", "threshold": 7}, cfgmap.Map{"n": 45}, 5},
		{"divisor", Args{"key": "n", "strategy": "max", "threshold": "7", "candidates": []any{8, 15}}, cfgmap.Map{"n": 45}, 15},
		{"product", Args{"a_key": "a", "b_key": "b"}, cfgmap.Map{"a": 2, "b": 3}, 6},
		{"product_by_num", Args{"key": "a", "num": 3}, cfgmap.Map{"a": 2}, 6},
		{"division", Args{"num_key": "a", "den_key": "b", "integer": true}, cfgmap.Map{"a": 9, "b": 2}, 4},
		{"division_by_num", Args{"key": "a", "num": 4}, cfgmap.Map{"a": 2}, 0.5},
		{"round", Args{"key": "x", "decimals": 1}, cfgmap.Map{"x": 1.26}, 1.3},
		{"round_to_closest_even", Args{"key": "x"}, cfgmap.Map{"x": 9.1}, 10},
		{"pop", Args{"key": "l"}, cfgmap.Map{"l": []any{"first", "second"}}, "first"},
		{"const", Args{"value": "fixed"}, cfgmap.Map{}, "fixed"},
		{"lookup", Args{"keys": []any{"root", "leaf"}}, cfgmap.Map{"root": cfgmap.Map{"leaf": 3}}, 3},
		{"lookup", Args{"keys": "top"}, cfgmap.Map{"top": true}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fn, err := r.Build(tc.name, tc.args)
			require.NoError(t, err)
			got, err := fn(context.Background(), tc.cfg)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	_, err := r.Build("sqrt", nil)
	assert.ErrorIs(t, err, ErrUnknownExpression)

	_, err = r.Build("divisor", Args{"key": "n", "threshold": 7})
	assert.ErrorIs(t, err, ErrArgument)

	_, err = r.Build("divisor", Args{"key": "n", "strategy": "closest", "threshold": 7})
	assert.ErrorIs(t, err, divisor.ErrInvalidArgument)

	_, err = r.Build("randint", Args{"low": "one", "high": 3})
	assert.ErrorIs(t, err, ErrArgument)
}

func TestRegistryRegisterAndNames(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register("answer", func(Args) (Func, error) { return Const(42), nil })

	assert.Contains(t, r.Names(), "answer")
	assert.Contains(t, r.Names(), "divisor")
	assert.IsIncreasing(t, r.Names())

	fn, err := r.Build("answer", nil)
	require.NoError(t, err)
	v, err := fn(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
