package engine

import (
	"fmt"
	"strings"

	"github.com/converge-sh/converge/internal/ir"
)

// Graph is the validated dependency DAG of a declaration. Require edges
// carry both ordering and the failure cascade; notify edges carry ordering
// only, so a refresh can always be delivered in the same pass as the change
// that triggered it.
type Graph struct {
	resources []*ir.Resource
	index     map[ir.Ref]int
	requires  map[ir.Ref][]ir.Ref // failure-cascade dependencies
	ordering  map[ir.Ref][]ir.Ref // require + incoming notify edges
	notifies  map[ir.Ref][]ir.Ref // refresh targets per notifier
	order     []ir.Ref
}

// BuildGraph assembles declared resources and their require/notify edges
// into a DAG and computes a deterministic topological order. Forward
// references are allowed; every referenced resource must be declared.
func BuildGraph(decl *ir.Declaration) (*Graph, error) {
	g := &Graph{
		index:    make(map[ir.Ref]int),
		requires: make(map[ir.Ref][]ir.Ref),
		ordering: make(map[ir.Ref][]ir.Ref),
		notifies: make(map[ir.Ref][]ir.Ref),
	}

	for _, res := range decl.Resources {
		ref := res.Ref()
		if _, dup := g.index[ref]; dup {
			return nil, &BuildError{Ref: ref, Msg: "duplicate resource id"}
		}
		g.index[ref] = len(g.resources)
		g.resources = append(g.resources, res)
	}

	for _, res := range decl.Resources {
		ref := res.Ref()
		for _, dep := range res.Require {
			if dep == ref {
				return nil, &BuildError{Ref: ref, Msg: "resource requires itself"}
			}
			if _, ok := g.index[dep]; !ok {
				return nil, &UnknownReferenceError{From: ref, Missing: dep, Edge: "require"}
			}
			g.requires[ref] = append(g.requires[ref], dep)
			g.ordering[ref] = append(g.ordering[ref], dep)
		}
		for _, target := range res.Notify {
			if target == ref {
				return nil, &BuildError{Ref: ref, Msg: "resource notifies itself"}
			}
			if _, ok := g.index[target]; !ok {
				return nil, &UnknownReferenceError{From: ref, Missing: target, Edge: "notify"}
			}
			g.notifies[ref] = append(g.notifies[ref], target)
			// The notifier must converge before its target so the refresh
			// fires on the same run.
			g.ordering[target] = append(g.ordering[target], ref)
		}
	}

	if err := g.checkCycles(); err != nil {
		return nil, err
	}

	g.order = g.topoSort()
	return g, nil
}

// Order returns the execution order: a topological order over require and
// notify edges, with declaration order as the tie-break so runs are
// reproducible and diff-able.
func (g *Graph) Order() []ir.Ref {
	return g.order
}

// Resource returns the declared resource for a ref.
func (g *Graph) Resource(ref ir.Ref) *ir.Resource {
	if i, ok := g.index[ref]; ok {
		return g.resources[i]
	}
	return nil
}

// Requires returns the failure-cascade dependencies of ref.
func (g *Graph) Requires(ref ir.Ref) []ir.Ref {
	return g.requires[ref]
}

// Notifies returns the refresh targets declared by ref.
func (g *Graph) Notifies(ref ir.Ref) []ir.Ref {
	return g.notifies[ref]
}

// Len returns the number of declared resources.
func (g *Graph) Len() int {
	return len(g.resources)
}

// TransitiveRequires returns every resource reachable from ref over require
// edges, in no particular order.
func (g *Graph) TransitiveRequires(ref ir.Ref) []ir.Ref {
	seen := make(map[ir.Ref]bool)
	var out []ir.Ref
	var walk func(ir.Ref)
	walk = func(r ir.Ref) {
		for _, dep := range g.requires[r] {
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
				walk(dep)
			}
		}
	}
	walk(ref)
	return out
}

// checkCycles runs a depth-first traversal in declaration order and reports
// the first back-edge found as the actual cycle path.
func (g *Graph) checkCycles() error {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[ir.Ref]int, len(g.resources))
	var stack []ir.Ref

	var visit func(ir.Ref) *CyclicDependencyError
	visit = func(ref ir.Ref) *CyclicDependencyError {
		color[ref] = grey
		stack = append(stack, ref)
		for _, dep := range g.ordering[ref] {
			switch color[dep] {
			case grey:
				// Back edge: slice the cycle out of the traversal stack.
				start := 0
				for i, r := range stack {
					if r == dep {
						start = i
						break
					}
				}
				path := append([]ir.Ref{}, stack[start:]...)
				path = append(path, dep)
				return &CyclicDependencyError{Path: path}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[ref] = black
		return nil
	}

	for _, res := range g.resources {
		ref := res.Ref()
		if color[ref] == white {
			if err := visit(ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// topoSort runs Kahn's algorithm. Among resources whose dependencies are all
// satisfied, the earliest-declared one is emitted first. Only called on a
// verified DAG.
func (g *Graph) topoSort() []ir.Ref {
	indegree := make(map[ir.Ref]int, len(g.resources))
	dependents := make(map[ir.Ref][]ir.Ref)
	for _, res := range g.resources {
		ref := res.Ref()
		indegree[ref] = len(g.ordering[ref])
		for _, dep := range g.ordering[ref] {
			dependents[dep] = append(dependents[dep], ref)
		}
	}

	sorted := make([]ir.Ref, 0, len(g.resources))
	emitted := make(map[ir.Ref]bool, len(g.resources))
	for len(sorted) < len(g.resources) {
		for _, res := range g.resources {
			ref := res.Ref()
			if !emitted[ref] && indegree[ref] == 0 {
				emitted[ref] = true
				sorted = append(sorted, ref)
				for _, dep := range dependents[ref] {
					indegree[dep]--
				}
			}
		}
	}
	return sorted
}

// DOT exports the graph as Graphviz DOT text. Solid edges are require,
// dashed edges are notify.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph converge {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[ir.Ref]string, len(g.resources))
	for i, res := range g.resources {
		ref := res.Ref()
		alias := fmt.Sprintf("n%d", i)
		aliases[ref] = alias
		b.WriteString(fmt.Sprintf("  %s [label=%q];\n", alias, ref.String()))
	}
	for _, res := range g.resources {
		ref := res.Ref()
		for _, dep := range g.requires[ref] {
			b.WriteString(fmt.Sprintf("  %s -> %s;\n", aliases[dep], aliases[ref]))
		}
		for _, target := range g.notifies[ref] {
			b.WriteString(fmt.Sprintf("  %s -> %s [style=dashed];\n", aliases[ref], aliases[target]))
		}
	}
	b.WriteString("}\n")
	return b.String()
}
