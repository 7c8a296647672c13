// File: cmd/generate.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
	"github.com/xkilldash9x/randfig/internal/config"
	"github.com/xkilldash9x/randfig/internal/generator"
	"github.com/xkilldash9x/randfig/internal/observability"
	"github.com/xkilldash9x/randfig/internal/pipeline"
	"github.com/xkilldash9x/randfig/internal/transform"
	"github.com/xkilldash9x/randfig/internal/watch"
)

// generateOptions are the flags that are not part of the persisted configuration.
type generateOptions struct {
	quiet bool
	watch bool
}

// newGenerateCmd creates and configures the `generate` command.
func newGenerateCmd(v *viper.Viper, provider storeProvider) *cobra.Command {
	var opts generateOptions

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate configuration documents from a pipeline definition",
		Long: `Generate applies a pipeline definition to its seed document once per
requested document and prints the results to stdout, as a YAML stream or a
JSON array. With --output-dir each document is also saved to its own file,
and with a configured database every run is persisted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cfg, provider, opts, cmd.OutOrStdout())
		},
	}

	flags := generateCmd.Flags()
	flags.StringP("pipeline", "p", "", "pipeline definition file (YAML)")
	flags.String("stats", "", "YAML file of values referenced as ${stats:name}")
	flags.IntP("count", "n", 1, "number of documents to generate")
	flags.Int64("seed", 0, "base random seed (0 picks one from the clock)")
	flags.Int("workers", 0, "documents generated concurrently (default: number of CPUs)")
	flags.String("output-dir", "", "also save each document to this directory")
	flags.String("format", "yaml", "output format: yaml or json")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "do not print documents to stdout")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "regenerate whenever the pipeline or stats file changes")

	for key, flag := range map[string]string{
		"generator.pipeline":   "pipeline",
		"generator.stats":      "stats",
		"generator.count":      "count",
		"generator.seed":       "seed",
		"generator.workers":    "workers",
		"generator.output_dir": "output-dir",
		"generator.format":     "format",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return generateCmd
}

// runGenerate contains the core logic for the generate command.
func runGenerate(ctx context.Context, cfg config.Interface, provider storeProvider, opts generateOptions, out io.Writer) error {
	if opts.quiet {
		observability.RaiseLevel(zapcore.WarnLevel)
	}
	logger := observability.GetLogger()
	gc := cfg.Generator()
	if gc.Pipeline == "" {
		return fmt.Errorf("a pipeline file is required (--pipeline or generator.pipeline)")
	}
	format, err := transform.ParseFormat(gc.Format)
	if err != nil {
		return err
	}

	var sink runStore
	if cfg.Database().Enabled() {
		s, cleanup, err := provider.Create(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		sink = s
	}

	once := func(ctx context.Context) error {
		run, err := generateOnce(ctx, logger, gc, format, sink)
		if err != nil {
			return err
		}
		if opts.quiet {
			return nil
		}
		return writeDocuments(out, format, run.Documents)
	}

	if err := once(ctx); err != nil {
		if !opts.watch || ctx.Err() != nil {
			return err
		}
		// In watch mode a broken pipeline is reported and fixed by the next save.
		logger.Error("Generation failed", zap.Error(err))
	}
	if !opts.watch {
		return nil
	}

	paths := []string{gc.Pipeline}
	if gc.Stats != "" {
		paths = append(paths, gc.Stats)
	}
	w, err := watch.New(logger, watch.DefaultDebounce, paths...)
	if err != nil {
		return err
	}
	return w.Run(ctx, once)
}

// generateOnce reloads the pipeline and stats, then performs one run.
func generateOnce(ctx context.Context, logger *zap.Logger, gc config.GeneratorConfig, format transform.Format, sink runStore) (*generator.Run, error) {
	var stats map[string]any
	if gc.Stats != "" {
		s, err := pipeline.LoadStats(gc.Stats)
		if err != nil {
			return nil, err
		}
		stats = s
	}

	p, err := pipeline.NewLoader(logger, nil, stats).Load(gc.Pipeline)
	if err != nil {
		return nil, err
	}
	if gc.OutputDir != "" {
		p.Append(&transform.Save{SaveDir: gc.OutputDir, Filename: transform.DefaultFilename, Format: format})
	}

	opts := []generator.Option{
		generator.WithCount(gc.Count),
		generator.WithSeed(gc.Seed),
		generator.WithWorkers(gc.Workers),
	}
	if sink != nil {
		opts = append(opts, generator.WithSink(sink))
	}
	g, err := generator.New(p, logger, opts...)
	if err != nil {
		return nil, err
	}
	return g.Run(ctx)
}

// writeDocuments prints documents as a YAML stream or a JSON array.
func writeDocuments(out io.Writer, format transform.Format, docs []generator.Document) error {
	if format == transform.FormatJSON {
		configs := make([]cfgmap.Map, len(docs))
		for i, d := range docs {
			configs[i] = d.Config
		}
		data, err := transform.Marshal(transform.FormatJSON, configs)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	for _, d := range docs {
		if err := enc.Encode(d.Config); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
	}
	return enc.Close()
}
