package provider

import (
	"context"

	"github.com/converge-sh/converge/internal/ir"
)

// State is a read-only probe of live system state for one resource.
type State struct {
	// Exists reports whether the underlying object is present at all.
	Exists bool
	// InSync reports whether the live object already matches the declared
	// attributes. Implies Exists.
	InSync bool
	// Detail is a short human-readable description of the divergence, empty
	// when InSync.
	Detail string
}

// Lookup resolves the provider responsible for a resource kind.
type Lookup interface {
	Get(kind ir.Kind) (Provider, error)
}

// Provider is the capability interface implemented once per resource kind.
//
// Apply must be idempotent: called on an already-converged resource it
// returns OutcomeUnchanged and performs no side effect. Both Check and Apply
// may block on external systems for unbounded time; cancellation is the
// caller's context.
type Provider interface {
	// Check probes live state without modifying it.
	Check(ctx context.Context, res *ir.Resource) (State, error)

	// Apply converges the live object toward the declared attributes and
	// reports whether anything was done.
	Apply(ctx context.Context, res *ir.Resource) (ir.Outcome, error)

	// Refresh performs the kind's refresh action (e.g. restart a service)
	// regardless of Check. Kinds with no meaningful refresh action return
	// nil.
	Refresh(ctx context.Context, res *ir.Resource) error
}
