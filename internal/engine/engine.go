package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/pipeline"
	"github.com/roach88/pipeopt/internal/predicate"
)

// Source is the scan layer: it returns the documents of a collection that
// satisfy filter, in insertion order. A nil filter returns every document.
//
// Implemented by *store.Store (SQLite) and MemorySource (tests, CLI dry runs).
type Source interface {
	Scan(ctx context.Context, collection string, filter predicate.Predicate) ([]ir.IRObject, error)
}

// DefaultMaxDocuments is the default scan quota per execution.
const DefaultMaxDocuments = 1_000_000

// Engine executes pipelines against a Source.
//
// Thread-safety: Engine holds configuration only; Execute is safe to call
// from multiple goroutines if the Source is.
type Engine struct {
	source       Source
	logger       *slog.Logger
	maxDocuments int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxDocuments sets the scan quota per execution.
// Use WithMaxDocuments(0) to disable the quota.
func WithMaxDocuments(n int) EngineOption {
	return func(e *Engine) {
		e.maxDocuments = n
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine reading from src.
func New(src Source, opts ...EngineOption) *Engine {
	e := &Engine{
		source:       src,
		logger:       slog.Default(),
		maxDocuments: DefaultMaxDocuments,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs p with a default Engine over src.
func Execute(ctx context.Context, p pipeline.Pipeline, src Source) ([]ir.IRObject, error) {
	return New(src).Execute(ctx, p)
}

// Execute runs p and returns the resulting documents.
// The pipeline must start with a Source stage; every other stage runs in order.
func (e *Engine) Execute(ctx context.Context, p pipeline.Pipeline) ([]ir.IRObject, error) {
	src, ok := p.Source()
	if !ok {
		return nil, &ExecError{Code: ErrCodeNoSource, Message: "pipeline must start with a source stage", Stage: -1}
	}

	docs, err := e.source.Scan(ctx, src.Collection, src.Filter)
	if err != nil {
		return nil, &ExecError{
			Code:    ErrCodeScanFailed,
			Message: fmt.Sprintf("scan %s", src.Collection),
			Stage:   0,
			Kind:    src.Name(),
			Err:     err,
		}
	}

	quota := NewQuotaEnforcer(e.maxDocuments)
	if err := quota.Check(src.Collection, len(docs)); err != nil {
		e.logger.Error("document quota exceeded",
			"collection", src.Collection,
			"documents", quota.Current(),
			"limit", quota.MaxDocuments(),
		)
		return nil, err
	}

	e.logger.Debug("source scanned",
		"collection", src.Collection,
		"native_filter", predicate.String(src.Filter),
		"documents", len(docs),
	)

	for i, stage := range p.Stages[1:] {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}

		idx := i + 1
		docs, err = e.runStage(idx, stage, docs)
		if err != nil {
			return nil, err
		}

		e.logger.Debug("stage executed",
			"stage", idx,
			"kind", stage.Name(),
			"documents", len(docs),
		)
	}

	return docs, nil
}
