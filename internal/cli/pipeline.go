package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeopt/internal/compiler"
	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/optimizer"
	"github.com/roach88/pipeopt/internal/pipeline"
)

// PipelineOptions holds the flags shared by commands that read a pipeline file.
type PipelineOptions struct {
	*RootOptions
	Collection string // overrides the file's collection
	NoPushDown bool   // disables the push-down phase
}

func (o *PipelineOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Collection, "collection", "", "collection to scan (overrides the pipeline file)")
	cmd.Flags().BoolVar(&o.NoPushDown, "no-pushdown", false, "keep filters out of the collection scan")
}

// newOptimizer builds an Optimizer honouring --no-pushdown.
func (o *PipelineOptions) newOptimizer(logger *slog.Logger) *optimizer.Optimizer {
	return optimizer.New(
		optimizer.WithLogger(logger),
		optimizer.WithPushDown(!o.NoPushDown),
	)
}

// loadPipeline reads a pipeline file and applies --collection. Failures are
// reported through f.
func loadPipeline(f *OutputFormatter, opts *PipelineOptions, path string) (pipeline.Pipeline, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return pipeline.Pipeline{}, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("pipeline file not found: %s", path), nil)
	}

	spec, err := compiler.LoadFile(path)
	if err != nil {
		return pipeline.Pipeline{}, parseFailure(f, err)
	}

	if opts.Collection != "" {
		spec.Source.Collection = opts.Collection
	}
	if spec.Source.Collection == "" {
		return pipeline.Pipeline{}, f.Fail(ExitFailure, ErrCodeInvalid, "no collection: set one in the pipeline file or pass --collection", nil)
	}

	f.VerboseLog("Loaded %d stages from %s", len(spec.Stages), path)
	return spec.Pipeline(), nil
}

// parseFailure reports a compiler error with its own code and position.
func parseFailure(f *OutputFormatter, err error) error {
	var pe *compiler.ParseError
	if !errors.As(err, &pe) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to load pipeline", err)
	}

	if outErr := f.Error(pe.Code, pe.Error(), pe); outErr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", outErr)
	}
	return WrapExitError(ExitFailure, "invalid pipeline", err)
}

// valueText renders a value for a table cell: strings bare, everything else
// as canonical JSON, missing as empty.
func valueText(v ir.IRValue, present bool) string {
	if !present {
		return ""
	}
	if s, ok := v.(ir.IRString); ok {
		return string(s)
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

// documentColumns returns the union of top-level keys, _id first and the
// rest in canonical key order.
func documentColumns(docs []ir.IRObject) []string {
	union := ir.IRObject{}
	for _, d := range docs {
		for k := range d {
			union[k] = ir.IRNull{}
		}
	}
	cols := union.SortedKeys()
	if i := slices.Index(cols, "_id"); i > 0 {
		cols = append(append(append(slices.Grow([]string(nil), len(cols)), "_id"), cols[:i]...), cols[i+1:]...)
	}
	return cols
}

func documentRows(cols []string, docs []ir.IRObject) [][]string {
	rows := make([][]string, len(docs))
	for i, d := range docs {
		row := make([]string, len(cols))
		for j, c := range cols {
			v, ok := d[c]
			row[j] = valueText(v, ok)
		}
		rows[i] = row
	}
	return rows
}
