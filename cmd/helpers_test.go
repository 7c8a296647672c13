// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/randfig/internal/config"
	"github.com/xkilldash9x/randfig/internal/generator"
	"github.com/xkilldash9x/randfig/internal/store"
)

const testPipeline = `
seed:
  scanner: ring
steps:
  - type: formula
    keys: [n_crystals]
    expr: {name: randint, args: {low: 20, high: 120}}
  - type: formula
    keys: [n_modules]
    expr:
      name: divisor
      args: {key: n_crystals, strategy: nearest-below, threshold: 8}
  - type: nest
    keys: [n_crystals, n_modules]
    root: geometry
`

// fakeStore records persisted runs in memory.
type fakeStore struct {
	mu       sync.Mutex
	runs     []*generator.Run
	migrated bool
}

func (s *fakeStore) Persist(_ context.Context, run *generator.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeStore) EnsureSchema(context.Context) error {
	s.migrated = true
	return nil
}

func (s *fakeStore) RecentRuns(_ context.Context, limit int) ([]store.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.RunSummary
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.runs[i]
		out = append(out, store.RunSummary{ID: r.ID, Seed: r.Seed, DocumentCount: len(r.Documents), StartedAt: r.StartedAt, FinishedAt: r.FinishedAt})
	}
	return out, nil
}

func (s *fakeStore) DocumentsByRunID(_ context.Context, runID string) ([]generator.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == runID {
			return r.Documents, nil
		}
	}
	return nil, store.ErrRunNotFound
}

// fakeStoreProvider hands out a shared fakeStore.
type fakeStoreProvider struct {
	store   *fakeStore
	created int
}

func (p *fakeStoreProvider) Create(_ context.Context, cfg config.Interface) (runStore, func(), error) {
	if !cfg.Database().Enabled() {
		return nil, nil, errNoDatabase
	}
	p.created++
	return p.store, func() {}, nil
}

func newFakeProvider() *fakeStoreProvider {
	return &fakeStoreProvider{store: &fakeStore{}}
}

// writeFile writes content into the test's temp dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// executeCommand runs a fresh command tree and returns its stdout.
func executeCommand(t *testing.T, ctx context.Context, provider storeProvider, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(viper.New(), provider)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// syncBuffer is a goroutine-safe bytes.Buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
