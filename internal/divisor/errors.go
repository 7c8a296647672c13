package divisor

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for a zero subject, a zero threshold, an
// empty candidate list after filtering, or an unknown strategy.
var ErrInvalidArgument = errors.New("divisor: invalid argument")

// ErrNoDivisorBelow is returned by NearestBelow when no divisor of n is
// strictly smaller than the threshold. It wraps ErrInvalidArgument.
var ErrNoDivisorBelow = fmt.Errorf("%w: no divisor below threshold", ErrInvalidArgument)
