package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeopt/internal/pipeline"
	"github.com/roach88/pipeopt/internal/predicate"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                         `json:"valid"`
	Stages int                          `json:"stages"`
	Errors []predicate.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PipelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <pipeline-file>",
		Short: "Check a pipeline without running it",
		Long: `Parse a pipeline file and validate every predicate in it: operator
operands, field paths and $expr arguments. Nothing is optimized or executed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection to scan (overrides the pipeline file)")

	return cmd
}

func runValidate(opts *PipelineOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	p, err := loadPipeline(f, opts, path)
	if err != nil {
		return err
	}

	result := ValidationResult{Stages: p.Len(), Errors: validatePipeline(p)}
	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		msg := fmt.Sprintf("%d validation errors", len(result.Errors))
		if f.Format == "json" {
			if err := f.Error(ErrCodeInvalid, msg, result.Errors); err != nil {
				return err
			}
		} else {
			if err := f.Error(ErrCodeInvalid, msg, nil); err != nil {
				return err
			}
			for _, e := range result.Errors {
				fmt.Fprintf(f.GetErrWriter(), "  %s\n", e.Error())
			}
		}
		return NewExitError(ExitFailure, "pipeline is invalid")
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ Pipeline valid (%d stages)\n", result.Stages)
	return nil
}

// validatePipeline runs predicate.Validate on the source filter and every
// $match. Paths are prefixed with "$source.filter" or "stage N", N counting
// the stages after the source from 0.
func validatePipeline(p pipeline.Pipeline) []predicate.ValidationError {
	var errs []predicate.ValidationError
	add := func(prefix string, pred predicate.Predicate) {
		for _, e := range predicate.Validate(pred) {
			if e.Path == "" {
				e.Path = prefix
			} else {
				e.Path = prefix + ": " + e.Path
			}
			errs = append(errs, e)
		}
	}

	if src, ok := p.Source(); ok && src.Filter != nil {
		add("$source.filter", src.Filter)
	}
	for i, s := range p.Body() {
		if filter, ok := s.(pipeline.Filter); ok {
			add(fmt.Sprintf("stage %d", i), filter.Predicate)
		}
	}
	return errs
}
