package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeopt/internal/engine"
	"github.com/roach88/pipeopt/internal/explain"
	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/store"
)

// AggregateOptions holds flags for the aggregate command.
type AggregateOptions struct {
	PipelineOptions
	Database     string
	MaxDocuments int
}

// AggregateResult is the JSON payload of the aggregate command.
type AggregateResult struct {
	Count     int           `json:"count"`
	Documents []ir.IRObject `json:"documents"`
	Plan      explain.Plan  `json:"plan"`
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AggregateOptions{PipelineOptions: PipelineOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "aggregate <pipeline-file>",
		Short: "Optimize and run a pipeline against a SQLite store",
		Long: `Optimize a pipeline and execute it against a SQLite document store.

The leading filter is evaluated inside SQLite when it only compares fields;
everything else runs in process. Documents are printed as a table, or as
JSON with --format json.

Examples:
  pipeopt aggregate --db ./docs.db pipeline.yaml
  pipeopt aggregate --db ./docs.db --collection orders pipeline.json
  pipeopt aggregate --db ./docs.db --no-pushdown pipeline.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.MaxDocuments, "max-documents", engine.DefaultMaxDocuments, "scan quota (0 disables it)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runAggregate(opts *AggregateOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := f.Logger()

	p, err := loadPipeline(f, &opts.PipelineOptions, path)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Database, store.WithLogger(logger))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	res := opts.newOptimizer(logger).Optimize(p)

	eng := engine.New(st,
		engine.WithLogger(logger),
		engine.WithMaxDocuments(opts.MaxDocuments),
	)
	docs, err := eng.Execute(commandContext(cmd), res.Pipeline)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeExecFailed, "failed to execute pipeline", err)
	}

	result := AggregateResult{
		Count:     len(docs),
		Documents: docs,
		Plan:      explain.Explain(res),
	}
	if f.Format == "json" {
		return f.Success(result)
	}

	if len(docs) > 0 {
		cols := documentColumns(docs)
		f.Table(cols, documentRows(cols, docs))
	}
	fmt.Fprintf(f.Writer, "(%d documents)\n", len(docs))
	return nil
}
