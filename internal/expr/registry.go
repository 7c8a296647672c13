package expr

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/xkilldash9x/randfig/internal/divisor"
)

var (
	// ErrUnknownExpression is returned by Build for an unregistered name.
	ErrUnknownExpression = errors.New("expr: unknown expression")
	// ErrArgument is returned for a missing or uncoercible argument.
	ErrArgument = errors.New("expr: invalid argument")
)

// Args are the keyword arguments of an expression declared in a pipeline file.
type Args map[string]any

// Builder constructs a Func from its declared arguments.
type Builder func(args Args) (Func, error)

// Registry maps expression names to builders.
type Registry struct {
	builders map[string]Builder
	logger   *zap.Logger
}

// NewRegistry returns a registry preloaded with every built-in expression.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		builders: make(map[string]Builder),
		logger:   logger.Named("expr"),
	}
	r.registerBuiltins()
	return r
}

// Register adds or replaces a builder.
func (r *Registry) Register(name string, b Builder) {
	r.builders[name] = b
}

// Names lists the registered expressions in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for n := range r.builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build constructs the named expression.
func (r *Registry) Build(name string, args Args) (Func, error) {
	b, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExpression, name)
	}
	if args == nil {
		args = Args{}
	}
	fn, err := b(args)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", name, err)
	}
	return fn, nil
}

func (r *Registry) registerBuiltins() {
	r.Register("pop", func(a Args) (Func, error) {
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		element, err := a.intOr("element", 0)
		if err != nil {
			return nil, err
		}
		return Pop(key, element), nil
	})

	r.Register("round", func(a Args) (Func, error) {
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		decimals, err := a.intOr("decimals", 0)
		if err != nil {
			return nil, err
		}
		return Round(key, decimals), nil
	})

	r.Register("round_to_closest_even", func(a Args) (Func, error) {
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		return RoundToClosestEven(key), nil
	})

	threshold := func(build func(string, float64, bool, float64) Func) Builder {
		return func(a Args) (Func, error) {
			key, err := a.str("resolution_key")
			if err != nil {
				return nil, err
			}
			peak, err := a.float("peak")
			if err != nil {
				return nil, err
			}
			isPercentage, err := a.boolOr("is_percentage", true)
			if err != nil {
				return nil, err
			}
			sigmas, err := a.floatOr("sigmas", 2)
			if err != nil {
				return nil, err
			}
			return build(key, peak, isPercentage, sigmas), nil
		}
	}
	r.Register("min_threshold_from_resolution", threshold(MinThresholdFromResolution))
	r.Register("max_threshold_from_resolution", threshold(MaxThresholdFromResolution))

	r.Register("division", func(a Args) (Func, error) {
		num, err := a.str("num_key")
		if err != nil {
			return nil, err
		}
		den, err := a.str("den_key")
		if err != nil {
			return nil, err
		}
		integer, err := a.boolOr("integer", false)
		if err != nil {
			return nil, err
		}
		return Division(num, den, integer), nil
	})

	r.Register("division_by_num", func(a Args) (Func, error) {
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		num, err := a.float("num")
		if err != nil {
			return nil, err
		}
		integer, err := a.boolOr("integer", false)
		if err != nil {
			return nil, err
		}
		return DivisionByNum(key, num, integer), nil
	})

	r.Register("product", func(a Args) (Func, error) {
		aKey, err := a.str("a_key")
		if err != nil {
			return nil, err
		}
		bKey, err := a.str("b_key")
		if err != nil {
			return nil, err
		}
		return Product(aKey, bKey), nil
	})

	r.Register("product_by_num", func(a Args) (Func, error) {
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		num, err := a.float("num")
		if err != nil {
			return nil, err
		}
		return ProductByNum(key, num), nil
	})

	r.Register("regular_polygon_apothem", func(a Args) (Func, error) {
		side, err := a.str("side_len_key")
		if err != nil {
			return nil, err
		}
		sides, err := a.str("n_sides_key")
		if err != nil {
			return nil, err
		}
		return RegularPolygonApothem(side, sides), nil
	})

	r.Register("regular_polygon_side", func(a Args) (Func, error) {
		apothem, err := a.str("apothem_key")
		if err != nil {
			return nil, err
		}
		sides, err := a.str("n_sides_key")
		if err != nil {
			return nil, err
		}
		return RegularPolygonSide(apothem, sides), nil
	})

	r.Register("divisor", func(a Args) (Func, error) {
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		tag, err := a.str("strategy")
		if err != nil {
			return nil, err
		}
		strategy, err := divisor.ParseStrategy(tag)
		if err != nil {
			return nil, err
		}
		threshold, err := a.integer("threshold")
		if err != nil {
			return nil, err
		}
		candidates, err := a.intsOrNil("candidates")
		if err != nil {
			return nil, err
		}
		return Divisor(r.logger, key, strategy, threshold, candidates), nil
	})

	r.Register("uniform", func(a Args) (Func, error) {
		low, err := a.float("low")
		if err != nil {
			return nil, err
		}
		high, err := a.float("high")
		if err != nil {
			return nil, err
		}
		return Uniform(low, high), nil
	})

	r.Register("randint", func(a Args) (Func, error) {
		low, err := a.integer("low")
		if err != nil {
			return nil, err
		}
		high, err := a.integer("high")
		if err != nil {
			return nil, err
		}
		return RandInt(low, high), nil
	})

	r.Register("choice", func(a Args) (Func, error) {
		raw, ok := a["values"]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrArgument, "values")
		}
		values, err := cast.ToSliceE(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrArgument, "values", err)
		}
		return Choice(values), nil
	})

	r.Register("jitter", func(a Args) (Func, error) {
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		p, err := a.float("p")
		if err != nil {
			return nil, err
		}
		reference, err := a.float("reference")
		if err != nil {
			return nil, err
		}
		return Jitter(key, p, reference), nil
	})

	r.Register("const", func(a Args) (Func, error) {
		v, ok := a["value"]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrArgument, "value")
		}
		return Const(v), nil
	})

	r.Register("lookup", func(a Args) (Func, error) {
		keys, err := a.strings("keys")
		if err != nil {
			return nil, err
		}
		return Lookup(keys...), nil
	})
}

// -- argument coercion --

func (a Args) str(name string) (string, error) {
	v, ok := a[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrArgument, name)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrArgument, name, err)
	}
	return s, nil
}

func (a Args) strings(name string) ([]string, error) {
	v, ok := a[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrArgument, name)
	}
	if s, isString := v.(string); isString {
		return []string{s}, nil
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrArgument, name, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q is empty", ErrArgument, name)
	}
	return out, nil
}

func (a Args) integer(name string) (int, error) {
	v, ok := a[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrArgument, name)
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrArgument, name, err)
	}
	return i, nil
}

func (a Args) intOr(name string, def int) (int, error) {
	if _, ok := a[name]; !ok {
		return def, nil
	}
	return a.integer(name)
}

func (a Args) float(name string) (float64, error) {
	v, ok := a[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrArgument, name)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrArgument, name, err)
	}
	return f, nil
}

func (a Args) floatOr(name string, def float64) (float64, error) {
	if _, ok := a[name]; !ok {
		return def, nil
	}
	return a.float(name)
}

func (a Args) boolOr(name string, def bool) (bool, error) {
	v, ok := a[name]
	if !ok {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, fmt.Errorf("%w: %q: %v", ErrArgument, name, err)
	}
	return b, nil
}

// intsOrNil distinguishes an absent list (nil) from an empty one.
func (a Args) intsOrNil(name string) ([]int, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, nil
	}
	raw, err := cast.ToSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrArgument, name, err)
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		i, err := cast.ToIntE(item)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrArgument, name, err)
		}
		out = append(out, i)
	}
	return out, nil
}
