package expr

import (
	"context"
	"fmt"
	"math"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
)

// fwhmToStd converts a gaussian full width at half maximum to a standard deviation.
const fwhmToStd = 1 / 2.355

// Pop removes and returns cfg[key][element]. Negative indices count from
// the end. The list stored under key is replaced by the shortened one.
func Pop(key string, element int) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		v, err := cfgmap.Get(cfg, key)
		if err != nil {
			return nil, err
		}
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected a list but got %v which is a %T", ErrType, v, v)
		}
		idx := element
		if idx < 0 {
			idx += len(list)
		}
		if idx < 0 || idx >= len(list) {
			return nil, fmt.Errorf("%w: pop index %d out of range for list of length %d", ErrValue, element, len(list))
		}
		popped := list[idx]
		rest := make([]any, 0, len(list)-1)
		rest = append(rest, list[:idx]...)
		rest = append(rest, list[idx+1:]...)
		cfg[key] = rest
		return popped, nil
	}
}

// Round rounds cfg[key] to decimals places, half away from zero. A negative
// decimals rounds to tens, hundreds and so on. Integers stay integers.
func Round(key string, decimals int) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		n, err := numberAt(cfg, key)
		if err != nil {
			return nil, err
		}
		if n.isInt {
			if decimals >= 0 {
				return n.value(), nil
			}
			return roundInt(n.i, -decimals)
		}
		scale := math.Pow(10, float64(decimals))
		return math.Round(n.f*scale) / scale, nil
	}
}

// roundInt rounds i to a multiple of 10^places, half away from zero.
func roundInt(i int64, places int) (any, error) {
	if places > 18 {
		return 0, nil
	}
	pow := int64(1)
	for range places {
		pow *= 10
	}
	q, r := i/pow, i%pow
	if r < 0 {
		r = -r
	}
	if 2*r >= pow {
		if i < 0 {
			q--
		} else {
			q++
		}
	}
	if q > math.MaxInt64/pow || q < math.MinInt64/pow {
		return nil, fmt.Errorf("%w: rounding %d to %d places overflows", ErrValue, i, -places)
	}
	return int(q * pow), nil
}

// RoundToClosestEven returns the even integer closest to cfg[key],
// computed as 2*round(x/2) with ties going to the even quotient.
func RoundToClosestEven(key string) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		n, err := numberAt(cfg, key)
		if err != nil {
			return nil, err
		}
		return int(2 * math.RoundToEven(n.float()/2)), nil
	}
}

// MinThresholdFromResolution computes peak*(1 - sigmas*FWHM_TO_STD*resolution)
// where resolution is read from cfg[key].
func MinThresholdFromResolution(key string, peak float64, isPercentage bool, sigmas float64) Func {
	return thresholdFromResolution(key, peak, isPercentage, -sigmas)
}

// MaxThresholdFromResolution computes peak*(1 + sigmas*FWHM_TO_STD*resolution).
func MaxThresholdFromResolution(key string, peak float64, isPercentage bool, sigmas float64) Func {
	return thresholdFromResolution(key, peak, isPercentage, sigmas)
}

func thresholdFromResolution(key string, peak float64, isPercentage bool, signedSigmas float64) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		n, err := numberAt(cfg, key)
		if err != nil {
			return nil, err
		}
		resolution := n.float()
		if isPercentage {
			resolution /= 100
		} else if resolution > 1 {
			return nil, fmt.Errorf("%w: is_percentage is false but got a resolution bigger than 1: %v", ErrValue, resolution)
		}
		return peak * (1 + signedSigmas*fwhmToStd*resolution), nil
	}
}

// Division returns cfg[numKey] / cfg[denKey]. With integer set it performs
// floor division.
func Division(numKey, denKey string, integer bool) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		num, err := numberAt(cfg, numKey)
		if err != nil {
			return nil, err
		}
		den, err := numberAt(cfg, denKey)
		if err != nil {
			return nil, err
		}
		return divide(num, den, integer)
	}
}

// DivisionByNum returns cfg[key] / num.
func DivisionByNum(key string, num float64, integer bool) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		n, err := numberAt(cfg, key)
		if err != nil {
			return nil, err
		}
		return divide(n, literal(num), integer)
	}
}

// Product returns cfg[aKey] * cfg[bKey].
func Product(aKey, bKey string) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		a, err := numberAt(cfg, aKey)
		if err != nil {
			return nil, err
		}
		b, err := numberAt(cfg, bKey)
		if err != nil {
			return nil, err
		}
		return multiply(a, b), nil
	}
}

// ProductByNum returns cfg[key] * num.
func ProductByNum(key string, num float64) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		n, err := numberAt(cfg, key)
		if err != nil {
			return nil, err
		}
		return multiply(n, literal(num)), nil
	}
}

// RegularPolygonApothem returns the apothem of a regular polygon given its
// side length and number of sides.
func RegularPolygonApothem(sideKey, nSidesKey string) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		side, err := numberAt(cfg, sideKey)
		if err != nil {
			return nil, err
		}
		sides, err := polygonSides(cfg, nSidesKey)
		if err != nil {
			return nil, err
		}
		return side.float() / (2 * math.Tan(math.Pi/float64(sides))), nil
	}
}

// RegularPolygonSide returns the side length of a regular polygon given its
// apothem and number of sides.
func RegularPolygonSide(apothemKey, nSidesKey string) Func {
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		apothem, err := numberAt(cfg, apothemKey)
		if err != nil {
			return nil, err
		}
		sides, err := polygonSides(cfg, nSidesKey)
		if err != nil {
			return nil, err
		}
		return 2 * apothem.float() * math.Tan(math.Pi/float64(sides)), nil
	}
}

func polygonSides(cfg cfgmap.Map, key string) (int, error) {
	sides, err := intAt(cfg, key)
	if err != nil {
		return 0, err
	}
	if sides < 3 {
		return 0, fmt.Errorf("%w: a regular polygon needs at least 3 sides, got %d", ErrValue, sides)
	}
	return sides, nil
}

// literal keeps whole-valued constants integral so int*2 stays an int.
func literal(f float64) number {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return intNumber(int64(f))
	}
	return floatNumber(f)
}

func multiply(a, b number) any {
	if a.isInt && b.isInt {
		return int(a.i * b.i)
	}
	return a.float() * b.float()
}

func divide(num, den number, integer bool) (any, error) {
	if den.float() == 0 {
		return nil, fmt.Errorf("%w: division by zero", ErrValue)
	}
	if !integer {
		return num.float() / den.float(), nil
	}
	if num.isInt && den.isInt {
		q := num.i / den.i
		if num.i%den.i != 0 && (num.i < 0) != (den.i < 0) {
			q--
		}
		return int(q), nil
	}
	return math.Floor(num.float() / den.float()), nil
}
