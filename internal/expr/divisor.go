package expr

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
	"github.com/xkilldash9x/randfig/internal/divisor"
)

// Divisor reads an integer from cfg[key] and returns the divisor chosen by
// divisor.Search. A nil candidates slice skips the candidate match.
// Advisories are logged as warnings tagged with key.
func Divisor(logger *zap.Logger, key string, strategy divisor.Strategy, threshold int, candidates []int) Func {
	searcher := divisor.NewSearcher(divisor.WithLogger(logger.With(zap.String("key", key))))
	return func(_ context.Context, cfg cfgmap.Map) (any, error) {
		n, err := intAt(cfg, key)
		if err != nil {
			return nil, err
		}
		d, err := searcher.Search(n, strategy, threshold, candidates)
		if err != nil {
			return nil, fmt.Errorf("divisor of %q: %w", key, err)
		}
		return d, nil
	}
}
