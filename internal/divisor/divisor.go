// File: internal/divisor/divisor.go
package divisor

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Strategy selects the fallback used by Search when no candidate divides n.
type Strategy string

const (
	// StrategyNearestBelow picks the largest divisor strictly below the threshold.
	StrategyNearestBelow Strategy = "nearest-below"
	// StrategyNearestAbove picks the smallest divisor strictly above the threshold.
	StrategyNearestAbove Strategy = "nearest-above"
)

// ParseStrategy maps a configuration tag to a Strategy. Besides the canonical
// tags it accepts "min" and "max", the names older pipeline files use.
func ParseStrategy(tag string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case string(StrategyNearestBelow), "min":
		return StrategyNearestBelow, nil
	case string(StrategyNearestAbove), "max":
		return StrategyNearestAbove, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q, available strategies are %q and %q",
			ErrInvalidArgument, tag, StrategyNearestBelow, StrategyNearestAbove)
	}
}

// AdvisoryKind classifies a non-fatal decision taken during a search.
type AdvisoryKind string

const (
	// AdvisoryZeroCandidate means a 0 was dropped from the candidate list.
	AdvisoryZeroCandidate AdvisoryKind = "zero_candidate"
	// AdvisoryThresholdAboveSubject means the threshold was >= n and n was returned.
	AdvisoryThresholdAboveSubject AdvisoryKind = "threshold_above_subject"
)

// Advisory is a non-fatal notification of a filtering or fallback decision.
type Advisory struct {
	Kind    AdvisoryKind
	Message string
	N       int
	Value   int
}

// Notifier receives advisories. It must be safe for concurrent use if the
// Searcher is shared between goroutines.
type Notifier func(Advisory)

// Searcher runs divisor searches and reports advisories to its Notifier.
// It holds no mutable state.
type Searcher struct {
	notify Notifier
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithNotifier routes advisories to fn. A nil fn is ignored.
func WithNotifier(fn Notifier) Option {
	return func(s *Searcher) {
		if fn != nil {
			s.notify = fn
		}
	}
}

// WithLogger reports advisories as warnings on logger.
func WithLogger(logger *zap.Logger) Option {
	return WithNotifier(logNotifier(logger))
}

// NewSearcher creates a Searcher. Without options advisories go to the
// global zap logger.
func NewSearcher(opts ...Option) *Searcher {
	s := &Searcher{}
	for _, opt := range opts {
		opt(s)
	}
	if s.notify == nil {
		s.notify = func(a Advisory) { logNotifier(zap.L())(a) }
	}
	return s
}

func logNotifier(logger *zap.Logger) Notifier {
	return func(a Advisory) {
		logger.Warn(a.Message,
			zap.String("advisory", string(a.Kind)),
			zap.Int("n", a.N),
			zap.Int("value", a.Value),
		)
	}
}

// Divisors returns the divisors of n in ascending order, always including 1
// and n. Zero is rejected. For negative n only [1, n] is returned; callers
// that care about sign must pass the absolute value.
func Divisors(n int) ([]int, error) {
	if n == 0 {
		return nil, fmt.Errorf("%w: 0 has no divisors", ErrInvalidArgument)
	}
	if n == 1 {
		return []int{1}, nil
	}

	factors := []int{1}
	for t := 2; t <= n/2; t++ {
		if n%t == 0 {
			factors = append(factors, t)
		}
	}
	return append(factors, n), nil
}

// Find returns the first candidate, in the given order, that divides n.
// found is false when none does; that is not an error.
func (s *Searcher) Find(n int, candidates []int) (value int, found bool, err error) {
	if n == 0 {
		return 0, false, fmt.Errorf("%w: 0 has no divisors", ErrInvalidArgument)
	}

	filtered := make([]int, 0, len(candidates))
	seen := make(map[int]struct{}, len(candidates))
	droppedZero := false
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if c == 0 {
			droppedZero = true
			continue
		}
		filtered = append(filtered, c)
	}
	if droppedZero {
		s.notify(Advisory{Kind: AdvisoryZeroCandidate, Message: "Excluding 0 from candidate divisors", N: n})
	}
	if len(filtered) == 0 {
		return 0, false, fmt.Errorf("%w: empty list of candidate divisors after excluding 0", ErrInvalidArgument)
	}

	divs, err := Divisors(n)
	if err != nil {
		return 0, false, err
	}
	members := make(map[int]struct{}, len(divs))
	for _, d := range divs {
		members[d] = struct{}{}
	}

	for _, c := range filtered {
		if _, ok := members[c]; ok {
			return c, true, nil
		}
	}
	return 0, false, nil
}

// NearestBelow returns the largest divisor of n strictly smaller than
// threshold. It fails with ErrNoDivisorBelow when the threshold does not
// exceed the smallest divisor.
func (s *Searcher) NearestBelow(n, threshold int) (int, error) {
	if threshold == 0 {
		return 0, fmt.Errorf("%w: there is no divisor below 0", ErrInvalidArgument)
	}

	divs, err := Divisors(n)
	if err != nil {
		return 0, err
	}

	i := sort.SearchInts(divs, threshold)
	if i == 0 {
		return 0, fmt.Errorf("%w: n=%d threshold=%d", ErrNoDivisorBelow, n, threshold)
	}
	return divs[i-1], nil
}

// NearestAbove returns the smallest divisor of n strictly greater than
// threshold. When threshold >= n it reports an advisory and returns n.
func (s *Searcher) NearestAbove(n, threshold int) (int, error) {
	if threshold == 0 {
		return 0, fmt.Errorf("%w: a search above the threshold needs a non-zero threshold", ErrInvalidArgument)
	}

	divs, err := Divisors(n)
	if err != nil {
		return 0, err
	}

	if threshold >= n {
		s.notify(Advisory{
			Kind:    AdvisoryThresholdAboveSubject,
			Message: fmt.Sprintf("Threshold %d is not below n %d, returning n", threshold, n),
			N:       n,
			Value:   n,
		})
		return n, nil
	}

	i := sort.Search(len(divs), func(i int) bool { return divs[i] > threshold })
	if i >= len(divs) {
		return n, nil
	}
	return divs[i], nil
}

// Search tries candidates first (when non-nil) and otherwise applies the
// fallback strategy around threshold.
func (s *Searcher) Search(n int, strategy Strategy, threshold int, candidates []int) (int, error) {
	if candidates != nil {
		d, found, err := s.Find(n, candidates)
		if err != nil {
			return 0, err
		}
		if found {
			return d, nil
		}
	}

	switch strategy {
	case StrategyNearestBelow:
		return s.NearestBelow(n, threshold)
	case StrategyNearestAbove:
		return s.NearestAbove(n, threshold)
	default:
		return 0, fmt.Errorf("%w: unknown strategy %q, available strategies are %q and %q",
			ErrInvalidArgument, strategy, StrategyNearestBelow, StrategyNearestAbove)
	}
}

var defaultSearcher = NewSearcher()

// Find runs Searcher.Find with advisories sent to the global logger.
func Find(n int, candidates []int) (int, bool, error) { return defaultSearcher.Find(n, candidates) }

// NearestBelow runs Searcher.NearestBelow on the default searcher.
func NearestBelow(n, threshold int) (int, error) { return defaultSearcher.NearestBelow(n, threshold) }

// NearestAbove runs Searcher.NearestAbove on the default searcher.
func NearestAbove(n, threshold int) (int, error) { return defaultSearcher.NearestAbove(n, threshold) }

// Search runs Searcher.Search on the default searcher.
func Search(n int, strategy Strategy, threshold int, candidates []int) (int, error) {
	return defaultSearcher.Search(n, strategy, threshold, candidates)
}
