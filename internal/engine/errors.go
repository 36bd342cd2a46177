package engine

import (
	"fmt"
	"strings"

	"github.com/converge-sh/converge/internal/ir"
)

// BuildError means the declaration itself is malformed (duplicate id,
// self-referencing edge). It aborts the run before any resource is touched.
type BuildError struct {
	Ref ir.Ref
	Msg string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("invalid declaration for %s: %s", e.Ref, e.Msg)
}

// UnknownReferenceError means a require or notify edge targets a resource
// that is not declared.
type UnknownReferenceError struct {
	From    ir.Ref
	Missing ir.Ref
	Edge    string // "require" or "notify"
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("%s %ss undeclared resource %s", e.From, e.Edge, e.Missing)
}

// CyclicDependencyError means the require/notify edges do not form a DAG.
// Path holds the actual cycle, first node repeated at the end.
type CyclicDependencyError struct {
	Path []ir.Ref
}

func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Path))
	for i, r := range e.Path {
		parts[i] = r.String()
	}
	return "dependency cycle detected: " + strings.Join(parts, " -> ")
}

// ResourceError wraps a collaborator-reported failure for one resource. It
// is recorded into the run's results, never thrown past the executor.
type ResourceError struct {
	Kind ir.Kind
	Ref  ir.Ref
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Ref, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}
