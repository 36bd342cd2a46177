package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge-sh/converge/internal/ir"
)

func ref(kind ir.Kind, name string) ir.Ref {
	return ir.Ref{Kind: kind, Name: name}
}

func res(kind ir.Kind, name string) *ir.Resource {
	return &ir.Resource{Kind: kind, Name: name}
}

func declOf(resources ...*ir.Resource) *ir.Declaration {
	return &ir.Declaration{Resources: resources}
}

func indexOf(order []ir.Ref, want ir.Ref) int {
	for i, r := range order {
		if r == want {
			return i
		}
	}
	return -1
}

func TestBuildGraph_NoDependencies(t *testing.T) {
	g, err := BuildGraph(declOf(
		res(ir.KindUser, "a"),
		res(ir.KindUser, "b"),
		res(ir.KindUser, "c"),
	))
	require.NoError(t, err)

	// Unconstrained resources keep declaration order.
	order := g.Order()
	require.Len(t, order, 3)
	assert.Equal(t, []ir.Ref{
		ref(ir.KindUser, "a"),
		ref(ir.KindUser, "b"),
		ref(ir.KindUser, "c"),
	}, order)
}

func TestBuildGraph_RequireOrdering(t *testing.T) {
	a := res(ir.KindExec, "a")
	a.Require = []ir.Ref{ref(ir.KindExec, "b")}
	b := res(ir.KindExec, "b")
	c := res(ir.KindExec, "c")
	c.Require = []ir.Ref{ref(ir.KindExec, "a")}

	g, err := BuildGraph(declOf(a, b, c))
	require.NoError(t, err)

	order := g.Order()
	require.Len(t, order, 3)
	assert.Less(t, indexOf(order, b.Ref()), indexOf(order, a.Ref()), "b should come before a")
	assert.Less(t, indexOf(order, a.Ref()), indexOf(order, c.Ref()), "a should come before c")
}

func TestBuildGraph_ForwardReference(t *testing.T) {
	checkout := res(ir.KindVcsCheckout, "app")
	checkout.Require = []ir.Ref{ref(ir.KindUser, "alice")}
	alice := res(ir.KindUser, "alice")

	g, err := BuildGraph(declOf(checkout, alice))
	require.NoError(t, err)

	order := g.Order()
	assert.Less(t, indexOf(order, alice.Ref()), indexOf(order, checkout.Ref()))
}

func TestBuildGraph_NotifyOrdersNotifierFirst(t *testing.T) {
	// The service is declared first but must run after the config file that
	// notifies it.
	svc := res(ir.KindService, "app")
	cfg := res(ir.KindFile, "config")
	cfg.Notify = []ir.Ref{svc.Ref()}

	g, err := BuildGraph(declOf(svc, cfg))
	require.NoError(t, err)

	order := g.Order()
	assert.Less(t, indexOf(order, cfg.Ref()), indexOf(order, svc.Ref()))
	assert.Equal(t, []ir.Ref{svc.Ref()}, g.Notifies(cfg.Ref()))
}

func TestBuildGraph_CycleDetection(t *testing.T) {
	a := res(ir.KindExec, "a")
	a.Require = []ir.Ref{ref(ir.KindExec, "b")}
	b := res(ir.KindExec, "b")
	b.Require = []ir.Ref{ref(ir.KindExec, "a")}

	_, err := BuildGraph(declOf(a, b))
	require.Error(t, err)

	var cycleErr *CyclicDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Path, a.Ref())
	assert.Contains(t, cycleErr.Path, b.Ref())
	// Path closes on its start node.
	assert.Equal(t, cycleErr.Path[0], cycleErr.Path[len(cycleErr.Path)-1])
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildGraph_CycleViaNotify(t *testing.T) {
	// a requires b; b notifies... a notifying b would order a before b,
	// closing the loop.
	a := res(ir.KindFile, "a")
	a.Require = []ir.Ref{ref(ir.KindService, "b")}
	a.Notify = []ir.Ref{ref(ir.KindService, "b")}
	b := res(ir.KindService, "b")

	_, err := BuildGraph(declOf(a, b))
	var cycleErr *CyclicDependencyError
	require.ErrorAs(t, err, &cycleErr)
}

func TestBuildGraph_UnknownRequire(t *testing.T) {
	a := res(ir.KindExec, "a")
	a.Require = []ir.Ref{ref(ir.KindUser, "ghost")}

	_, err := BuildGraph(declOf(a))
	require.Error(t, err)

	var unknownErr *UnknownReferenceError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, ref(ir.KindUser, "ghost"), unknownErr.Missing)
	assert.Equal(t, "require", unknownErr.Edge)
	assert.Contains(t, err.Error(), "ghost")
}

func TestBuildGraph_UnknownNotify(t *testing.T) {
	a := res(ir.KindFile, "a")
	a.Notify = []ir.Ref{ref(ir.KindService, "ghost")}

	_, err := BuildGraph(declOf(a))
	var unknownErr *UnknownReferenceError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "notify", unknownErr.Edge)
}

func TestBuildGraph_DuplicateID(t *testing.T) {
	_, err := BuildGraph(declOf(
		res(ir.KindUser, "alice"),
		res(ir.KindUser, "alice"),
	))
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestBuildGraph_SelfLoop(t *testing.T) {
	a := res(ir.KindExec, "a")
	a.Require = []ir.Ref{a.Ref()}

	_, err := BuildGraph(declOf(a))
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
}

func TestBuildGraph_DeterministicCycleReport(t *testing.T) {
	build := func() string {
		a := res(ir.KindExec, "a")
		a.Require = []ir.Ref{ref(ir.KindExec, "b")}
		b := res(ir.KindExec, "b")
		b.Require = []ir.Ref{ref(ir.KindExec, "c")}
		c := res(ir.KindExec, "c")
		c.Require = []ir.Ref{ref(ir.KindExec, "a")}
		_, err := BuildGraph(declOf(a, b, c))
		require.Error(t, err)
		return err.Error()
	}

	first := build()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, build())
	}
}

func TestTransitiveRequires(t *testing.T) {
	c := res(ir.KindExec, "c")
	b := res(ir.KindExec, "b")
	b.Require = []ir.Ref{c.Ref()}
	a := res(ir.KindExec, "a")
	a.Require = []ir.Ref{b.Ref()}
	unrelated := res(ir.KindExec, "x")

	g, err := BuildGraph(declOf(a, b, c, unrelated))
	require.NoError(t, err)

	deps := g.TransitiveRequires(a.Ref())
	assert.ElementsMatch(t, []ir.Ref{b.Ref(), c.Ref()}, deps)
}

func TestGraphDOT(t *testing.T) {
	svc := res(ir.KindService, "app")
	svc.Require = []ir.Ref{ref(ir.KindFile, "config")}
	cfg := res(ir.KindFile, "config")
	cfg.Notify = []ir.Ref{svc.Ref()}

	g, err := BuildGraph(declOf(svc, cfg))
	require.NoError(t, err)

	dot := g.DOT()
	assert.Contains(t, dot, "digraph converge")
	assert.Contains(t, dot, `"service.app"`)
	assert.Contains(t, dot, `"file.config"`)
	assert.Contains(t, dot, "style=dashed")
}

func TestTopoOrder_ValidForAllEdges(t *testing.T) {
	db := res(ir.KindDbDatabase, "site")
	alice := res(ir.KindUser, "alice")
	checkout := res(ir.KindVcsCheckout, "app")
	checkout.Require = []ir.Ref{alice.Ref()}
	svc := res(ir.KindService, "app")
	svc.Require = []ir.Ref{checkout.Ref(), db.Ref()}
	cfg := res(ir.KindFile, "config")
	cfg.Notify = []ir.Ref{svc.Ref()}

	g, err := BuildGraph(declOf(db, alice, checkout, svc, cfg))
	require.NoError(t, err)

	order := g.Order()
	require.Len(t, order, 5)

	// Every require edge: dependency before dependent.
	for _, r := range []*ir.Resource{db, alice, checkout, svc, cfg} {
		for _, dep := range r.Require {
			assert.Less(t, indexOf(order, dep), indexOf(order, r.Ref()),
				"%s should come before %s", dep, r.Ref())
		}
		for _, target := range r.Notify {
			assert.Less(t, indexOf(order, r.Ref()), indexOf(order, target),
				"notifier %s should come before %s", r.Ref(), target)
		}
	}
}
