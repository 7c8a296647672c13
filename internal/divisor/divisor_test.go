package divisor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recorder collects advisories for assertions.
type recorder struct {
	mu   sync.Mutex
	seen []Advisory
}

func (r *recorder) notify(a Advisory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, a)
}

func (r *recorder) kinds() []AdvisoryKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AdvisoryKind, 0, len(r.seen))
	for _, a := range r.seen {
		out = append(out, a.Kind)
	}
	return out
}

func newRecordingSearcher() (*Searcher, *recorder) {
	rec := &recorder{}
	return NewSearcher(WithNotifier(rec.notify)), rec
}

func TestDivisors(t *testing.T) {
	t.Run("210", func(t *testing.T) {
		divs, err := Divisors(210)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 5, 6, 7, 10, 14, 15, 21, 30, 35, 42, 70, 105, 210}, divs)
	})

	t.Run("one", func(t *testing.T) {
		divs, err := Divisors(1)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, divs)
	})

	t.Run("prime", func(t *testing.T) {
		divs, err := Divisors(13)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 13}, divs)
	})

	t.Run("zero is rejected", func(t *testing.T) {
		_, err := Divisors(0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("negative keeps 1 and n", func(t *testing.T) {
		divs, err := Divisors(-6)
		require.NoError(t, err)
		assert.Equal(t, []int{1, -6}, divs)
	})
}

func TestDivisorsProperties(t *testing.T) {
	for n := 1; n <= 500; n++ {
		divs, err := Divisors(n)
		require.NoError(t, err)
		require.NotEmpty(t, divs)
		assert.Equal(t, 1, divs[0], "n=%d", n)
		assert.Equal(t, n, divs[len(divs)-1], "n=%d", n)
		for i, d := range divs {
			assert.Zero(t, n%d, "n=%d d=%d", n, d)
			if i > 0 {
				assert.Greater(t, d, divs[i-1], "n=%d not strictly ascending", n)
			}
		}
	}
}

func TestFind(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		candidates []int
		want       int
		wantFound  bool
		wantKinds  []AdvisoryKind
	}{
		{name: "zero dropped, no match", n: 1, candidates: []int{0, 15}, wantFound: false, wantKinds: []AdvisoryKind{AdvisoryZeroCandidate}},
		{name: "one divides one", n: 1, candidates: []int{1, 15}, want: 1, wantFound: true},
		{name: "first match in given order wins", n: 210, candidates: []int{7, 21}, want: 7, wantFound: true},
		{name: "given order beats magnitude", n: 210, candidates: []int{21, 7}, want: 21, wantFound: true},
		{name: "non divisors skipped", n: 45, candidates: []int{8, 15}, want: 15, wantFound: true},
		{name: "duplicates collapse", n: 10, candidates: []int{3, 3, 5}, want: 5, wantFound: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, rec := newRecordingSearcher()
			got, found, err := s.Find(tc.n, tc.candidates)
			require.NoError(t, err)
			assert.Equal(t, tc.wantFound, found)
			assert.Equal(t, tc.want, got)
			if tc.wantKinds == nil {
				assert.Empty(t, rec.kinds())
			} else {
				assert.Equal(t, tc.wantKinds, rec.kinds())
			}
		})
	}
}

func TestFindErrors(t *testing.T) {
	t.Run("zero subject", func(t *testing.T) {
		s, _ := newRecordingSearcher()
		_, _, err := s.Find(0, []int{1, 2})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("only zero candidates", func(t *testing.T) {
		s, rec := newRecordingSearcher()
		_, _, err := s.Find(1, []int{0})
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Equal(t, []AdvisoryKind{AdvisoryZeroCandidate}, rec.kinds())
	})

	t.Run("empty candidates", func(t *testing.T) {
		s, _ := newRecordingSearcher()
		_, _, err := s.Find(10, []int{})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestNearestBelow(t *testing.T) {
	s, _ := newRecordingSearcher()

	tests := []struct {
		n, threshold, want int
	}{
		{210, 31, 30},
		{210, 35, 30},
		{210, 211, 210},
		{45, 7, 5},
		{45, 2, 1},
	}
	for _, tc := range tests {
		got, err := s.NearestBelow(tc.n, tc.threshold)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "n=%d threshold=%d", tc.n, tc.threshold)
	}

	t.Run("zero threshold", func(t *testing.T) {
		_, err := s.NearestBelow(210, 0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("nothing below the smallest divisor", func(t *testing.T) {
		_, err := s.NearestBelow(210, 1)
		assert.ErrorIs(t, err, ErrNoDivisorBelow)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("zero subject", func(t *testing.T) {
		_, err := s.NearestBelow(0, 5)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestNearestAbove(t *testing.T) {
	t.Run("strictly above", func(t *testing.T) {
		s, rec := newRecordingSearcher()
		got, err := s.NearestAbove(210, 30)
		require.NoError(t, err)
		assert.Equal(t, 35, got)

		got, err = s.NearestAbove(210, 104)
		require.NoError(t, err)
		assert.Equal(t, 105, got)
		assert.Empty(t, rec.kinds())
	})

	t.Run("threshold at or above n falls back to n", func(t *testing.T) {
		for _, threshold := range []int{210, 211} {
			s, rec := newRecordingSearcher()
			got, err := s.NearestAbove(210, threshold)
			require.NoError(t, err)
			assert.Equal(t, 210, got)
			assert.Equal(t, []AdvisoryKind{AdvisoryThresholdAboveSubject}, rec.kinds())
		}
	})

	t.Run("zero threshold", func(t *testing.T) {
		s, _ := newRecordingSearcher()
		_, err := s.NearestAbove(210, 0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.NotContains(t, err.Error(), "below")
		assert.Contains(t, err.Error(), "above")
	})

	t.Run("zero subject", func(t *testing.T) {
		s, _ := newRecordingSearcher()
		_, err := s.NearestAbove(0, 3)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestSearch(t *testing.T) {
	s, _ := newRecordingSearcher()

	got, err := s.Search(45, StrategyNearestBelow, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	got, err = s.Search(45, StrategyNearestAbove, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, got)

	got, err = s.Search(45, StrategyNearestAbove, 7, []int{8, 15})
	require.NoError(t, err)
	assert.Equal(t, 15, got)

	// No candidate divides 45, so the strategy decides.
	got, err = s.Search(45, StrategyNearestAbove, 7, []int{2, 4})
	require.NoError(t, err)
	assert.Equal(t, 9, got)

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := s.Search(45, Strategy("closest"), 7, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("candidate errors propagate", func(t *testing.T) {
		_, err := s.Search(45, StrategyNearestAbove, 7, []int{0})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("idempotent", func(t *testing.T) {
		a, errA := s.Search(210, StrategyNearestBelow, 31, []int{11, 13})
		b, errB := s.Search(210, StrategyNearestBelow, 31, []int{11, 13})
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b)
		assert.Equal(t, 30, a)
	})
}

func TestParseStrategy(t *testing.T) {
	tests := map[string]Strategy{
		"nearest-below": StrategyNearestBelow,
		"nearest-above": StrategyNearestAbove,
		"min":           StrategyNearestBelow,
		"MAX":           StrategyNearestAbove,
	}
	for tag, want := range tests {
		got, err := ParseStrategy(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, want, got, tag)
	}

	_, err := ParseStrategy("median")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWithLoggerReportsAdvisories(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewSearcher(WithLogger(zap.New(core)))

	_, err := s.NearestAbove(210, 500)
	require.NoError(t, err)

	entries := logs.FilterField(zap.String("advisory", string(AdvisoryThresholdAboveSubject))).All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "Threshold 500")
}

func TestPackageLevelUsesGlobalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	_, found, err := Find(6, []int{0, 4})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, logs.FilterField(zap.String("advisory", string(AdvisoryZeroCandidate))).Len())
}

func TestSearcherConcurrentUse(t *testing.T) {
	s, rec := newRecordingSearcher()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Search(210, StrategyNearestAbove, 300, []int{0, 11})
			assert.NoError(t, err)
			assert.Equal(t, 210, got)
		}()
	}
	wg.Wait()
	assert.Len(t, rec.kinds(), 32)
}
