// Package dag provides directed acyclic graph operations for model
// dependencies. It supports cycle detection, topological sorting, and
// ancestor/descendant traversal for selectors.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Graph represents the model dependency graph. Edges point from a
// dependency (parent) to its dependent (child).
type Graph struct {
	nodes    map[string]bool
	children map[string][]string // dependency -> dependents
	parents  map[string][]string // dependent -> dependencies
}

// CycleError reports a true dependency cycle of two or more models.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Nodes, " -> "))
}

// Build constructs a graph from a model -> dependencies map.
// Self-references are dropped at construction; they are never treated as a
// cycle and never satisfy an ordering constraint. Dependencies naming
// models outside the map become nodes too, so selectors can traverse
// through sources the run does not own.
func Build(deps map[string][]string) (*Graph, error) {
	g := &Graph{
		nodes:    make(map[string]bool),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}

	for name, parents := range deps {
		g.addNode(name)
		for _, p := range parents {
			if p == name {
				continue
			}
			g.addNode(p)
			g.addEdge(p, name)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Nodes: cycle}
	}
	return g, nil
}

func (g *Graph) addNode(id string) {
	if !g.nodes[id] {
		g.nodes[id] = true
	}
}

func (g *Graph) addEdge(parent, child string) {
	if !contains(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	if !contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
}

// Nodes returns all node names, sorted.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the graph contains the named node.
func (g *Graph) Has(name string) bool {
	return g.nodes[name]
}

// Dependencies returns the direct parents of a node, sorted.
func (g *Graph) Dependencies(name string) []string {
	out := append([]string(nil), g.parents[name]...)
	sort.Strings(out)
	return out
}

// Dependents returns the direct children of a node, sorted.
func (g *Graph) Dependents(name string) []string {
	out := append([]string(nil), g.children[name]...)
	sort.Strings(out)
	return out
}

// findCycle returns the node names forming a cycle, or nil. Only cycles of
// two or more distinct nodes can exist here since self-edges were dropped.
func (g *Graph) findCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	cameFrom := make(map[string]string)

	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, child := range g.children[id] {
			if !visited[child] {
				cameFrom[child] = id
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				// Reconstruct the cycle from the DFS path.
				cycle = []string{child}
				for curr := id; curr != child; curr = cameFrom[curr] {
					cycle = append([]string{curr}, cycle...)
				}
				return true
			}
		}

		onStack[id] = false
		return false
	}

	// Iterate in sorted order so the reported cycle is deterministic.
	for _, id := range g.Nodes() {
		if !visited[id] {
			if dfs(id) {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalOrder returns a total order where every dependency precedes
// its dependents. Ties among simultaneously-ready nodes break
// lexicographically, so output is stable across runs.
func (g *Graph) TopologicalOrder() []string {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.parents[id])
	}

	var ready []string
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		// Pop the lexicographically smallest ready node.
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var unlocked []string
		for _, child := range g.children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				unlocked = append(unlocked, child)
			}
		}
		if len(unlocked) > 0 {
			ready = append(ready, unlocked...)
			sort.Strings(ready)
		}
	}
	return order
}

// Levels groups nodes by dependency depth: a node's level is one past the
// deepest level among its parents. Nodes within a level are sorted and could
// run concurrently.
func (g *Graph) Levels() [][]string {
	depth := make(map[string]int, len(g.nodes))
	maxDepth := 0
	for _, id := range g.TopologicalOrder() {
		d := 0
		for _, parent := range g.parents[id] {
			if depth[parent]+1 > d {
				d = depth[parent] + 1
			}
		}
		depth[id] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	if len(g.nodes) == 0 {
		return nil
	}
	levels := make([][]string, maxDepth+1)
	for id, d := range depth {
		levels[d] = append(levels[d], id)
	}
	for _, level := range levels {
		sort.Strings(level)
	}
	return levels
}

// Ancestors returns all transitive dependencies of a node, sorted.
func (g *Graph) Ancestors(name string) []string {
	return g.reachable(name, g.parents, -1)
}

// Descendants returns all transitive dependents of a node, sorted.
func (g *Graph) Descendants(name string) []string {
	return g.reachable(name, g.children, -1)
}

// AncestorsBounded returns the dependencies reachable within maxHops edges.
func (g *Graph) AncestorsBounded(name string, maxHops int) []string {
	return g.reachable(name, g.parents, maxHops)
}

// DescendantsBounded returns the dependents reachable within maxHops edges.
func (g *Graph) DescendantsBounded(name string, maxHops int) []string {
	return g.reachable(name, g.children, maxHops)
}

// reachable walks edges breadth-first from start, up to maxHops levels
// (negative means unbounded). The start node itself is not included.
func (g *Graph) reachable(start string, edges map[string][]string, maxHops int) []string {
	seen := map[string]bool{start: true}
	frontier := []string{start}
	hops := 0

	var result []string
	for len(frontier) > 0 && (maxHops < 0 || hops < maxHops) {
		var next []string
		for _, id := range frontier {
			for _, n := range edges[id] {
				if !seen[n] {
					seen[n] = true
					result = append(result, n)
					next = append(next, n)
				}
			}
		}
		frontier = next
		hops++
	}
	sort.Strings(result)
	return result
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
