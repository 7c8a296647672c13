// File: cmd/runs.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/randfig/internal/config"
	"github.com/xkilldash9x/randfig/internal/transform"
)

// newRunsCmd creates the `runs` command, which reads persisted runs back.
func newRunsCmd(provider storeProvider) *cobra.Command {
	var limit int
	var format string

	runsCmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List persisted runs, or print the documents of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runRuns(cmd.Context(), cfg, provider, runID, limit, format, cmd.OutOrStdout())
		},
	}

	runsCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	runsCmd.Flags().StringVar(&format, "format", "yaml", "document output format: yaml or json")
	return runsCmd
}

func runRuns(ctx context.Context, cfg config.Interface, provider storeProvider, runID string, limit int, format string, out io.Writer) error {
	if !cfg.Database().Enabled() {
		return errNoDatabase
	}
	f, err := transform.ParseFormat(format)
	if err != nil {
		return err
	}

	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if runID != "" {
		docs, err := s.DocumentsByRunID(ctx, runID)
		if err != nil {
			return err
		}
		return writeDocuments(out, f, docs)
	}

	runs, err := s.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSEED\tDOCUMENTS\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.ID, r.Seed, r.DocumentCount, r.StartedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
