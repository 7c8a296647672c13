package generator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
	"github.com/xkilldash9x/randfig/internal/pipeline"
	"github.com/xkilldash9x/randfig/internal/transform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const randomPipeline = `
seed:
  name: ring
steps:
  - type: formula
    keys: [n_crystals]
    expr: {name: randint, args: {low: 20, high: 120}}
  - type: formula
    keys: [n_modules]
    expr:
      name: divisor
      args: {key: n_crystals, strategy: nearest-above, threshold: 6}
  - type: formula
    keys: [radius]
    expr: {name: uniform, args: {low: 100, high: 400}}
`

func loadPipeline(t *testing.T, src string) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.NewLoader(zap.NewNop(), nil, nil).Parse([]byte(src))
	require.NoError(t, err)
	return p
}

type recordingSink struct {
	mu   sync.Mutex
	runs []*Run
	err  error
}

func (s *recordingSink) Persist(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return s.err
}

func configs(run *Run) []cfgmap.Map {
	out := make([]cfgmap.Map, len(run.Documents))
	for i, d := range run.Documents {
		out[i] = d.Config
	}
	return out
}

func TestRunIsReproducible(t *testing.T) {
	p := loadPipeline(t, randomPipeline)

	serial, err := New(p, zap.NewNop(), WithCount(25), WithSeed(42), WithWorkers(1))
	require.NoError(t, err)
	parallel, err := New(p, zap.NewNop(), WithCount(25), WithSeed(42), WithWorkers(8))
	require.NoError(t, err)

	a, err := serial.Run(context.Background())
	require.NoError(t, err)
	b, err := parallel.Run(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(configs(a), configs(b)); diff != "" {
		t.Errorf("worker count changed output (-serial +parallel):\n%s", diff)
	}
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRunDocuments(t *testing.T) {
	p := loadPipeline(t, randomPipeline)
	g, err := New(p, zap.NewNop(), WithCount(10), WithSeed(100), WithWorkers(4))
	require.NoError(t, err)

	run, err := g.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Documents, 10)
	assert.Equal(t, int64(100), run.Seed)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	ids := make(map[string]struct{})
	for i, doc := range run.Documents {
		assert.Equal(t, i, doc.Index)
		assert.Equal(t, int64(100+i), doc.Seed)
		ids[doc.ID] = struct{}{}

		n := doc.Config["n_crystals"].(int)
		m := doc.Config["n_modules"].(int)
		assert.Zero(t, n%m, "n_modules must divide n_crystals")
		assert.Greater(t, m, 6)
		assert.Equal(t, "ring", doc.Config["name"])
	}
	assert.Len(t, ids, 10)
}

func TestDistinctDocuments(t *testing.T) {
	p := loadPipeline(t, randomPipeline)
	g, err := New(p, zap.NewNop(), WithCount(2), WithSeed(1))
	require.NoError(t, err)
	run, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, run.Documents[0].Config["radius"], run.Documents[1].Config["radius"])
}

func TestZeroSeedUsesClock(t *testing.T) {
	p := loadPipeline(t, randomPipeline)
	g, err := New(p, zap.NewNop())
	require.NoError(t, err)
	g.now = func() time.Time { return time.Unix(0, 12345) }

	run, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12345), run.Seed)
	assert.Len(t, run.Documents, 1)
}

func TestSinkReceivesRun(t *testing.T) {
	sink := &recordingSink{}
	g, err := New(loadPipeline(t, randomPipeline), zap.NewNop(), WithCount(3), WithSeed(5), WithSink(sink), WithSink(nil))
	require.NoError(t, err)

	run, err := g.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.runs, 1)
	assert.Same(t, run, sink.runs[0])
}

func TestSinkFailure(t *testing.T) {
	boom := errors.New("db down")
	g, err := New(loadPipeline(t, randomPipeline), zap.NewNop(), WithSink(&recordingSink{err: boom}))
	require.NoError(t, err)

	_, err = g.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStepFailureStopsRun(t *testing.T) {
	p := loadPipeline(t, "steps: [{type: remove, keys: [missing]}]")
	sink := &recordingSink{}
	g, err := New(p, zap.NewNop(), WithCount(20), WithWorkers(3), WithSink(sink))
	require.NoError(t, err)

	_, err = g.Run(context.Background())
	require.ErrorIs(t, err, cfgmap.ErrKeyNotFound)
	assert.Contains(t, err.Error(), "document ")
	assert.Empty(t, sink.runs)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, err := New(loadPipeline(t, randomPipeline), zap.NewNop(), WithCount(5))
	require.NoError(t, err)

	_, err = g.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveStepPerDocument(t *testing.T) {
	dir := t.TempDir()
	p := loadPipeline(t, randomPipeline)
	p.Append(&transform.Save{SaveDir: dir, Filename: "cfg_{index}.json"})

	g, err := New(p, zap.NewNop(), WithCount(4), WithSeed(9), WithWorkers(2))
	require.NoError(t, err)
	_, err = g.Run(context.Background())
	require.NoError(t, err)
	for _, name := range []string{"cfg_0.json", "cfg_1.json", "cfg_2.json", "cfg_3.json"} {
		assert.FileExists(t, dir+"/"+name)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	p := loadPipeline(t, randomPipeline)
	tests := []struct {
		name string
		p    *pipeline.Pipeline
		opts []Option
	}{
		{"nil pipeline", nil, nil},
		{"zero count", p, []Option{WithCount(0)}},
		{"negative workers", p, []Option{WithWorkers(-1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.p, zap.NewNop(), tc.opts...)
			assert.ErrorIs(t, err, ErrInvalidOption)
		})
	}
}
