package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/logging"
	"github.com/converge-sh/converge/internal/provider"
)

// Event is a progress notification emitted once per resource transition.
type Event struct {
	Ref      ir.Ref
	Status   string // "started", "completed", "failed", "skipped", "refreshed"
	Outcome  ir.Outcome
	Duration time.Duration
	Err      error
}

// EventCallback receives progress events if set.
type EventCallback func(Event)

// Executor converges a validated graph against the live host.
//
// Execution is best-effort: a failure marks its dependents Skipped but
// nothing already applied is rolled back. Each run re-probes live state;
// nothing is cached between runs.
type Executor struct {
	lookup provider.Lookup

	// DryRun limits the run to Check probes; no Apply or Refresh happens.
	DryRun bool
	// Parallelism > 1 lets mutually unordered resources converge
	// concurrently. Ordering edges are still honored.
	Parallelism int
	// Callback, if set, receives one event per resource transition.
	Callback EventCallback
}

func NewExecutor(lookup provider.Lookup) *Executor {
	return &Executor{lookup: lookup}
}

// Run converges every resource in g, or just the ids in only (plus their
// transitive requirements) when only is non-empty. The returned report is
// complete unless ctx is cancelled mid-run.
func (e *Executor) Run(ctx context.Context, g *Graph, only []ir.Ref) (*ir.Report, error) {
	started := time.Now()

	targets, err := e.targetSet(g, only)
	if err != nil {
		return nil, err
	}

	run := &runState{
		graph:   g,
		targets: targets,
		results: make(map[ir.Ref]*ir.Result, g.Len()),
		refresh: make(map[ir.Ref]bool),
	}

	if e.Parallelism > 1 {
		err = e.runParallel(ctx, run)
	} else {
		err = e.runSequential(ctx, run)
	}
	if err != nil {
		return nil, err
	}

	report := buildReport(g, run, started)
	return report, nil
}

// targetSet returns nil (meaning all resources) or the selected refs plus
// everything they transitively require.
func (e *Executor) targetSet(g *Graph, only []ir.Ref) (map[ir.Ref]bool, error) {
	if len(only) == 0 {
		return nil, nil
	}
	targets := make(map[ir.Ref]bool)
	for _, ref := range only {
		if g.Resource(ref) == nil {
			return nil, fmt.Errorf("unknown resource id %s in target filter", ref)
		}
		targets[ref] = true
		for _, dep := range g.TransitiveRequires(ref) {
			targets[dep] = true
		}
	}
	return targets, nil
}

// runState is the shared per-run bookkeeping. In parallel mode every map is
// guarded by mu; each results slot is written exactly once.
type runState struct {
	mu      sync.Mutex
	graph   *Graph
	targets map[ir.Ref]bool // nil means everything
	results map[ir.Ref]*ir.Result
	refresh map[ir.Ref]bool // pending refresh marks from Changed notifiers
}

func (r *runState) selected(ref ir.Ref) bool {
	return r.targets == nil || r.targets[ref]
}

func (e *Executor) runSequential(ctx context.Context, run *runState) error {
	for _, ref := range run.graph.Order() {
		if !run.selected(ref) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled: %w", err)
		}
		e.converge(ctx, run, ref)
	}
	return nil
}

// converge drives one resource through its state machine:
// Pending -> Checking -> (Unchanged | Applying -> (Changed | Failed)),
// or straight to Skipped when a required dependency did not converge.
func (e *Executor) converge(ctx context.Context, run *runState, ref ir.Ref) {
	if reason, skip := e.skipReason(run, ref); skip {
		run.mu.Lock()
		run.results[ref] = &ir.Result{Ref: ref, Outcome: ir.OutcomeSkipped, Reason: reason}
		run.mu.Unlock()
		e.emit(Event{Ref: ref, Status: "skipped", Outcome: ir.OutcomeSkipped})
		logging.Warn("resource skipped", "resource", ref.String(), "reason", reason)
		return
	}

	res := run.graph.Resource(ref)
	prov, err := e.lookup.Get(ref.Kind)
	if err != nil {
		e.record(run, ref, ir.OutcomeFailed, &ResourceError{Kind: ref.Kind, Ref: ref, Err: err}, 0, false)
		return
	}

	start := time.Now()
	e.emit(Event{Ref: ref, Status: "started"})

	var outcome ir.Outcome
	if e.DryRun {
		outcome, err = dryRunOutcome(ctx, prov, res)
	} else {
		err = RetryWithBackoff(ctx, DefaultRetryPolicy(), func() error {
			var applyErr error
			outcome, applyErr = prov.Apply(ctx, res)
			return applyErr
		}, IsTransientError)
	}
	if err != nil {
		e.record(run, ref, ir.OutcomeFailed, &ResourceError{Kind: ref.Kind, Ref: ref, Err: err}, time.Since(start), false)
		return
	}

	// Propagate refresh marks before finishing this resource so parallel
	// dependents observe them as soon as they are unblocked.
	if outcome == ir.OutcomeChanged {
		run.mu.Lock()
		for _, target := range run.graph.Notifies(ref) {
			run.refresh[target] = true
		}
		run.mu.Unlock()
	}

	refreshed := false
	run.mu.Lock()
	wantRefresh := run.refresh[ref]
	run.mu.Unlock()
	if wantRefresh && !e.DryRun {
		if err := prov.Refresh(ctx, res); err != nil {
			e.record(run, ref, ir.OutcomeFailed, &ResourceError{Kind: ref.Kind, Ref: ref, Err: fmt.Errorf("refresh: %w", err)}, time.Since(start), false)
			return
		}
		refreshed = true
		e.emit(Event{Ref: ref, Status: "refreshed", Outcome: outcome})
	}

	e.record(run, ref, outcome, nil, time.Since(start), refreshed)
}

// skipReason reports whether ref must be skipped because a required
// dependency is in a non-converged terminal state.
func (e *Executor) skipReason(run *runState, ref ir.Ref) (string, bool) {
	run.mu.Lock()
	defer run.mu.Unlock()
	for _, dep := range run.graph.Requires(ref) {
		if r, ok := run.results[dep]; ok && !r.Outcome.Converged() {
			return fmt.Sprintf("dependency %s %s", dep, r.Outcome), true
		}
	}
	return "", false
}

func (e *Executor) record(run *runState, ref ir.Ref, outcome ir.Outcome, err error, d time.Duration, refreshed bool) {
	run.mu.Lock()
	run.results[ref] = &ir.Result{
		Ref:       ref,
		Outcome:   outcome,
		Err:       err,
		Refreshed: refreshed,
		Duration:  d,
	}
	run.mu.Unlock()

	switch outcome {
	case ir.OutcomeFailed:
		e.emit(Event{Ref: ref, Status: "failed", Outcome: outcome, Duration: d, Err: err})
		logging.Error("resource failed", "resource", ref.String(), "error", err)
	default:
		e.emit(Event{Ref: ref, Status: "completed", Outcome: outcome, Duration: d})
		logging.Debug("resource converged", "resource", ref.String(), "outcome", string(outcome))
	}
}

func (e *Executor) emit(ev Event) {
	if e.Callback != nil {
		e.Callback(ev)
	}
}

func dryRunOutcome(ctx context.Context, prov provider.Provider, res *ir.Resource) (ir.Outcome, error) {
	st, err := prov.Check(ctx, res)
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if st.InSync {
		return ir.OutcomeUnchanged, nil
	}
	return ir.OutcomeChanged, nil
}
