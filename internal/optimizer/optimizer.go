package optimizer

import (
	"log/slog"

	"github.com/roach88/pipeopt/internal/pipeline"
)

// Rule names recorded in Events.
const (
	RuleMergeFilters    = "merge-filters"
	RuleSplitFilterSort = "split-filter-sort"
	RulePushDown        = "push-down"
)

// Event records one applied rewrite, for explain output and debugging.
type Event struct {
	// Rule is one of the Rule* constants.
	Rule string `json:"rule"`

	// Pass is the 1-based rewrite pass; 0 for push-down.
	Pass int `json:"pass"`

	// Position is the index of the first stage the rule matched.
	Position int `json:"position"`

	// Moved is the predicate that was relocated, merged or attached.
	Moved string `json:"moved"`

	// Residual is the predicate left in place, empty when nothing was left.
	Residual string `json:"residual,omitempty"`
}

// Result is the outcome of Optimize.
type Result struct {
	Pipeline    pipeline.Pipeline
	Events      []Event
	Fingerprint string
	Passes      int
}

// Optimizer runs Rewrite and PushDown. It holds configuration only, never
// per-call state.
type Optimizer struct {
	logger   *slog.Logger
	pushDown bool
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger used for rewrite events (logged at debug level).
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPushDown enables or disables the push-down phase. Default: enabled.
func WithPushDown(enabled bool) Option {
	return func(o *Optimizer) {
		o.pushDown = enabled
	}
}

// New creates an Optimizer.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		logger:   slog.Default(),
		pushDown: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize rewrites p to a fixed point, then pushes the leading filter into
// the source when the source supports it.
func (o *Optimizer) Optimize(p pipeline.Pipeline) Result {
	rewritten, events, passes := o.rewrite(p)

	final := rewritten
	if o.pushDown {
		var ev *Event
		final, ev = o.pushDownFilter(rewritten)
		if ev != nil {
			events = append(events, *ev)
		}
	}

	res := Result{
		Pipeline:    final,
		Events:      events,
		Fingerprint: pipeline.Fingerprint(final),
		Passes:      passes,
	}

	o.logger.Debug("pipeline optimized",
		"stages_in", p.Len(),
		"stages_out", final.Len(),
		"rewrites", len(events),
		"passes", passes,
		"fingerprint", res.Fingerprint,
	)
	return res
}

// Rewrite runs the rewrite rules to a fixed point with a default Optimizer.
func Rewrite(p pipeline.Pipeline) pipeline.Pipeline {
	out, _, _ := New().rewrite(p)
	return out
}

// PushDown attaches the leading filter to a push-down capable source with a
// default Optimizer. It is a no-op for any other pipeline shape.
func PushDown(p pipeline.Pipeline) pipeline.Pipeline {
	out, _ := New().pushDownFilter(p)
	return out
}
