package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeopt/internal/explain"
	"github.com/roach88/pipeopt/internal/ir"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PipelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <pipeline-file>",
		Short: "Optimize a pipeline and print the plan",
		Long: `Optimize a pipeline and print the resulting plan: the collection scan
with its native filter, the stages left to execute, and every rewrite
that was applied.

The pipeline file may be YAML, JSON or CUE.

Examples:
  pipeopt explain pipeline.yaml
  pipeopt explain pipeline.json --collection orders
  pipeopt explain pipeline.cue --no-pushdown --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runExplain(opts *PipelineOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	p, err := loadPipeline(f, opts, path)
	if err != nil {
		return err
	}

	res := opts.newOptimizer(f.Logger()).Optimize(p)
	plan := explain.Explain(res)

	if f.Format == "json" {
		return f.Success(plan)
	}
	writePlanText(f, plan)
	return nil
}

// writePlanText prints a plan as:
//
//	namespace: c
//	scan:      COLLSCAN {"a":{"$not":{"$eq":2}}}
//	stages:
//	  1. {"$sort":{"b":1}}
//	rewrites (2 passes):
//	  <table>
//	fingerprint: ...
func writePlanText(f *OutputFormatter, plan explain.Plan) {
	w := f.Writer

	if plan.Scan != nil {
		fmt.Fprintf(w, "namespace: %s\n", plan.Collection)
		filter, ok := plan.Scan["filter"]
		if ok {
			fmt.Fprintf(w, "scan:      %s %s\n", explain.StageCollScan, valueText(filter, true))
		} else {
			fmt.Fprintf(w, "scan:      %s (no native filter)\n", explain.StageCollScan)
		}
	}

	writeStages(w, plan.Stages)

	if len(plan.Rewrites) == 0 {
		fmt.Fprintf(w, "rewrites: none (%d passes)\n", plan.Passes)
	} else {
		fmt.Fprintf(w, "rewrites (%d passes):\n", plan.Passes)
		rows := make([][]string, len(plan.Rewrites))
		for i, ev := range plan.Rewrites {
			rows[i] = []string{strconv.Itoa(ev.Pass), ev.Rule, strconv.Itoa(ev.Position), ev.Moved, ev.Residual}
		}
		f.Table([]string{"PASS", "RULE", "POSITION", "MOVED", "RESIDUAL"}, rows)
	}

	fmt.Fprintf(w, "fingerprint: %s\n", plan.Fingerprint)
}

func writeStages(w io.Writer, stages ir.IRArray) {
	if len(stages) == 0 {
		fmt.Fprintln(w, "stages: none")
		return
	}
	fmt.Fprintln(w, "stages:")
	for i, s := range stages {
		fmt.Fprintf(w, "  %d. %s\n", i+1, valueText(s, true))
	}
}
