package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pipeopt/internal/engine"
	"github.com/roach88/pipeopt/internal/explain"
	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/optimizer"
	"github.com/roach88/pipeopt/internal/predicate"
	"github.com/roach88/pipeopt/internal/store"
	"github.com/roach88/pipeopt/internal/testutil"
)

// Harness is the scenario execution engine for one run.
type Harness struct {
	engine    *engine.Engine
	optimizer *optimizer.Optimizer
	logger    *slog.Logger
}

// Option configures Run and RunAll.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger routes store, engine and optimizer logs to l.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Insert the scenario documents into an in-memory store
//  2. Execute the original pipeline
//  3. Optimize it and execute the optimized pipeline
//  4. Check equivalence, idempotence and expectations
//
// An error is returned only when the scenario cannot run at all (bad
// pipeline, store failure, original pipeline fails). Failed checks are
// reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)

	p, err := scenario.BuildPipeline()
	if err != nil {
		return nil, err
	}
	docs, err := scenario.Docs()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewSequentialIDs(scenario.Name)),
		store.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	src, _ := p.Source()
	if len(docs) > 0 {
		if _, err := st.Insert(ctx, src.Collection, docs...); err != nil {
			return nil, fmt.Errorf("failed to insert documents: %w", err)
		}
	}

	h := &Harness{
		engine:    engine.New(st, engine.WithLogger(cfg.logger)),
		optimizer: optimizer.New(optimizer.WithLogger(cfg.logger)),
		logger:    cfg.logger,
	}

	want, err := h.engine.Execute(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to execute original pipeline: %w", err)
	}

	res := h.optimizer.Optimize(p)

	result := NewResult(scenario.Name)
	result.Original = p
	result.Optimized = res.Pipeline
	result.Plan = explain.Explain(res)

	got, err := h.engine.Execute(ctx, res.Pipeline)
	if err != nil {
		result.AddError(fmt.Sprintf("optimized pipeline failed: %v", err))
		return result, nil
	}
	result.Results = got

	h.checkEquivalent(want, got, result)
	h.checkIdempotent(res, result)
	h.checkExpect(scenario.Expect, res, result)

	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"documents", len(got),
		"rewrites", len(res.Events),
	)
	return result, nil
}

// RunAll loads and runs the scenarios at paths concurrently. Results are in
// path order. The first load or run error cancels the remaining runs.
func RunAll(ctx context.Context, paths []string, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			scenario, err := LoadScenario(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			result, err := Run(ctx, scenario, opts...)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (h *Harness) checkEquivalent(want, got []ir.IRObject, result *Result) {
	if !ir.Equal(docsArray(want), docsArray(got)) {
		result.AddError(fmt.Sprintf("optimized results differ: original %s, optimized %s",
			canonical(docsArray(want)), canonical(docsArray(got))))
	}
}

func (h *Harness) checkIdempotent(res optimizer.Result, result *Result) {
	again := h.optimizer.Optimize(res.Pipeline)
	if again.Fingerprint != res.Fingerprint || len(again.Events) > 0 {
		result.AddError(fmt.Sprintf("optimize is not idempotent: second run applied %d rewrites", len(again.Events)))
	}
}

func (h *Harness) checkExpect(exp Expect, res optimizer.Result, result *Result) {
	if want, _ := exp.results(); want != nil {
		got := docsArray(result.Results)
		if !ir.Equal(want, got) {
			result.AddError(fmt.Sprintf("results: expected %s, got %s", canonical(want), canonical(got)))
		}
	}

	if want, _ := exp.scanFilter(); want != nil {
		h.checkScanFilter(want, result)
	}

	if exp.Stages != nil {
		if n := len(res.Pipeline.Body()); n != *exp.Stages {
			result.AddError(fmt.Sprintf("stages: expected %d after the source, got %d", *exp.Stages, n))
		}
	}

	if exp.Rules != nil {
		rules := make([]string, len(res.Events))
		for i, ev := range res.Events {
			rules[i] = ev.Rule
		}
		if !slices.Equal(exp.Rules, rules) {
			result.AddError(fmt.Sprintf("rules: expected %v, got %v", exp.Rules, rules))
		}
	}
}

// checkScanFilter compares the filter of the plan's COLLSCAN stage with the
// expected one, both in rendered form.
func (h *Harness) checkScanFilter(want *scanFilterExpect, result *Result) {
	scan := explain.FindStage(result.Plan.Document(), explain.StageCollScan)
	if scan == nil {
		result.AddError("scan_filter: plan has no " + explain.StageCollScan + " stage")
		return
	}

	got, attached := scan["filter"]
	switch {
	case want.Predicate == nil && attached:
		result.AddError(fmt.Sprintf("scan_filter: expected none, got %s", canonical(got)))
	case want.Predicate == nil:
	case !attached:
		result.AddError("scan_filter: expected " + predicate.String(want.Predicate) + ", got none")
	default:
		expected := predicate.Render(predicate.Simplify(want.Predicate))
		if !ir.Equal(expected, got) {
			result.AddError(fmt.Sprintf("scan_filter: expected %s, got %s", canonical(expected), canonical(got)))
		}
	}
}

func docsArray(docs []ir.IRObject) ir.IRArray {
	out := make(ir.IRArray, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

func canonical(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}
