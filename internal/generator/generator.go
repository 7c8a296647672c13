// File: internal/generator/generator.go
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
	"github.com/xkilldash9x/randfig/internal/expr"
	"github.com/xkilldash9x/randfig/internal/pipeline"
	"github.com/xkilldash9x/randfig/internal/transform"
)

// ErrInvalidOption is returned by New for an out-of-range option.
var ErrInvalidOption = errors.New("generator: invalid option")

// Document is one generated configuration.
type Document struct {
	ID     string
	Index  int
	Seed   int64
	Config cfgmap.Map
}

// Run is the outcome of one generation pass.
type Run struct {
	ID         string
	Seed       int64
	StartedAt  time.Time
	FinishedAt time.Time
	Documents  []Document
}

// Sink receives a completed run.
type Sink interface {
	Persist(ctx context.Context, run *Run) error
}

// Generator applies a pipeline repeatedly, once per document.
type Generator struct {
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
	count    int
	seed     int64
	workers  int
	sinks    []Sink
	now      func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithCount sets how many documents a run produces.
func WithCount(n int) Option {
	return func(g *Generator) { g.count = n }
}

// WithSeed sets the base seed. Zero picks a time-derived seed per run.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.seed = seed }
}

// WithWorkers bounds how many documents are generated concurrently.
func WithWorkers(n int) Option {
	return func(g *Generator) { g.workers = n }
}

// WithSink adds a sink that receives every successful run.
func WithSink(s Sink) Option {
	return func(g *Generator) {
		if s != nil {
			g.sinks = append(g.sinks, s)
		}
	}
}

// New returns a Generator. Count defaults to 1 and workers to GOMAXPROCS.
func New(p *pipeline.Pipeline, logger *zap.Logger, opts ...Option) (*Generator, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil pipeline", ErrInvalidOption)
	}
	g := &Generator{
		pipeline: p,
		logger:   logger.With(zap.String("component", "generator")),
		count:    1,
		workers:  runtime.GOMAXPROCS(0),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.count < 1 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidOption, g.count)
	}
	if g.workers < 1 {
		return nil, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidOption, g.workers)
	}
	return g, nil
}

// Run generates every document. Document i draws from its own source seeded
// with seed+i, so output does not depend on scheduling. The first failure
// cancels the remaining documents.
func (g *Generator) Run(ctx context.Context) (*Run, error) {
	seed := g.seed
	if seed == 0 {
		seed = g.now().UnixNano()
	}
	run := &Run{
		ID:        uuid.NewString(),
		Seed:      seed,
		StartedAt: g.now(),
		Documents: make([]Document, g.count),
	}
	logger := g.logger.With(zap.String("run_id", run.ID), zap.Int64("seed", seed))
	logger.Info("Generation started", zap.Int("count", g.count), zap.Int("workers", g.workers))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i := 0; i < g.count; i++ {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			doc, err := g.generate(egCtx, i, seed+int64(i))
			if err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			run.Documents[i] = doc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logger.Error("Generation failed", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	run.FinishedAt = g.now()

	for _, sink := range g.sinks {
		if err := sink.Persist(ctx, run); err != nil {
			return nil, fmt.Errorf("persisting run %s: %w", run.ID, err)
		}
	}

	logger.Info("Generation complete",
		zap.Int("documents", len(run.Documents)),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
	return run, nil
}

func (g *Generator) generate(ctx context.Context, index int, seed int64) (Document, error) {
	info := transform.DocumentInfo{ID: uuid.NewString(), Index: index, Seed: seed}
	ctx = transform.ContextWithDocument(ctx, info)
	ctx = expr.ContextWithRand(ctx, rand.New(rand.NewSource(seed)))

	cfg, err := g.pipeline.Apply(ctx)
	if err != nil {
		return Document{}, err
	}
	g.logger.Debug("Document generated", zap.String("id", info.ID), zap.Int("index", index))
	return Document{ID: info.ID, Index: index, Seed: seed, Config: cfg}, nil
}
