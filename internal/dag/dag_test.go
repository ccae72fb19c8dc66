package dag

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestBuild_Simple(t *testing.T) {
	g, err := Build(map[string][]string{
		"a": {},
		"b": {"a"},
		"c": {"a", "b"},
	})
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	if got := g.Dependencies("c"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected c to depend on [a b], got %v", got)
	}
	if got := g.Dependents("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("expected a dependents [b c], got %v", got)
	}
}

func TestBuild_SelfEdgeDropped(t *testing.T) {
	g, err := Build(map[string][]string{
		"a": {"a"},
		"b": {"a", "b"},
	})
	if err != nil {
		t.Fatalf("self-reference must not be a cycle: %v", err)
	}

	if got := g.Dependencies("a"); len(got) != 0 {
		t.Errorf("expected a to have no dependencies, got %v", got)
	}
	if got := g.Dependencies("b"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("expected b to depend only on a, got %v", got)
	}
}

func TestBuild_Cycle(t *testing.T) {
	_, err := Build(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	})
	if err == nil {
		t.Fatal("expected cycle error")
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %T", err)
	}
	found := map[string]bool{}
	for _, n := range cycleErr.Nodes {
		found[n] = true
	}
	if !found["a"] || !found["b"] {
		t.Errorf("expected cycle to name a and b, got %v", cycleErr.Nodes)
	}
}

func TestBuild_LongerCycle(t *testing.T) {
	_, err := Build(map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
	})
	if err == nil {
		t.Fatal("expected cycle error for a->b->c->a")
	}
}

func TestBuild_UndeclaredDependencyBecomesNode(t *testing.T) {
	g, err := Build(map[string][]string{
		"b": {"raw_source"},
	})
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}
	if !g.Has("raw_source") {
		t.Error("expected undeclared dependency to appear as a node")
	}
}

func TestTopologicalOrder_RespectsEdges(t *testing.T) {
	g, err := Build(map[string][]string{
		"d": {"b", "c"},
		"b": {"a"},
		"c": {"a"},
		"a": {},
	})
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	order := g.TopologicalOrder()
	pos := map[string]int{}
	for i, name := range order {
		pos[name] = i
	}

	for _, name := range g.Nodes() {
		for _, dep := range g.Dependencies(name) {
			if pos[dep] >= pos[name] {
				t.Errorf("dependency %s at %d does not precede %s at %d", dep, pos[dep], name, pos[name])
			}
		}
	}
}

func TestTopologicalOrder_Deterministic(t *testing.T) {
	deps := map[string][]string{
		"z": {},
		"m": {},
		"a": {},
	}
	g, err := Build(deps)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	want := []string{"a", "m", "z"}
	for i := 0; i < 5; i++ {
		if got := g.TopologicalOrder(); !reflect.DeepEqual(got, want) {
			t.Fatalf("expected stable order %v, got %v", want, got)
		}
	}
}

func chainGraph(t *testing.T, n int) *Graph {
	t.Helper()
	deps := map[string][]string{"m0": {}}
	for i := 1; i < n; i++ {
		deps[fmt.Sprintf("m%d", i)] = []string{fmt.Sprintf("m%d", i-1)}
	}
	g, err := Build(deps)
	if err != nil {
		t.Fatalf("failed to build chain: %v", err)
	}
	return g
}

func TestAncestors_Chain(t *testing.T) {
	g := chainGraph(t, 6)

	ancestors := g.Ancestors("m5")
	if len(ancestors) != 5 {
		t.Errorf("expected 5 ancestors for the last of a 6-node chain, got %d: %v", len(ancestors), ancestors)
	}

	descendants := g.Descendants("m0")
	if len(descendants) != 5 {
		t.Errorf("expected 5 descendants for the first of a 6-node chain, got %d: %v", len(descendants), descendants)
	}
}

func TestAncestorsBounded_Monotonic(t *testing.T) {
	g := chainGraph(t, 6)

	prev := 0
	for k := 1; k <= 7; k++ {
		got := g.AncestorsBounded("m5", k)
		if len(got) < prev {
			t.Errorf("bounded ancestors shrank going from %d to %d hops", k-1, k)
		}
		want := k
		if want > 5 {
			want = 5
		}
		if len(got) != want {
			t.Errorf("expected %d ancestors within %d hops, got %d: %v", want, k, len(got), got)
		}
		prev = len(got)
	}
}

func TestDescendantsBounded(t *testing.T) {
	g, err := Build(map[string][]string{
		"a": {},
		"b": {"a"},
		"c": {"b"},
		"d": {"a"},
	})
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	got := g.DescendantsBounded("a", 1)
	if !reflect.DeepEqual(got, []string{"b", "d"}) {
		t.Errorf("expected direct descendants [b d], got %v", got)
	}

	got = g.DescendantsBounded("a", 2)
	if !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Errorf("expected two-hop descendants [b c d], got %v", got)
	}
}

func TestLevels_GroupsByDepth(t *testing.T) {
	g, err := Build(map[string][]string{
		"a": {},
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
		"e": {},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][]string{
		{"a", "e"},
		{"b", "c"},
		{"d"},
	}
	if got := g.Levels(); !reflect.DeepEqual(got, want) {
		t.Errorf("Levels() = %v, want %v", got, want)
	}
}
