// SPDX-License-Identifier: MPL-2.0

// Package dag orders packages by their static requirements and reports the
// cycles among them. An edge from A to B means A activates before B.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is the sentinel wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError reports one cycle as a closed path: the first node is
	// repeated at the end.
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph over string nodes. Output is deterministic:
	// ties are broken by insertion order.
	Graph struct {
		adjacency map[string][]string
		nodes     []string
		index     map[string]int
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		index:     make(map[string]int),
	}
}

// AddNode adds a node; adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// AddEdge adds from -> to, creating either node as needed. Repeated edges
// are stored once.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if !slices.Contains(g.adjacency[from], to) {
		g.adjacency[from] = append(g.adjacency[from], to)
	}
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string { return slices.Clone(g.nodes) }

// Successors returns the nodes reached by one edge from name.
func (g *Graph) Successors(name string) []string { return slices.Clone(g.adjacency[name]) }

// TopologicalSort returns an activation order using Kahn's algorithm, or a
// CycleError naming one cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, neighbors := range g.adjacency {
		for _, n := range neighbors {
			inDegree[n]++
		}
	}

	var queue []string
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)
		for _, n := range g.adjacency[node] {
			inDegree[n]--
			if inDegree[n] == 0 {
				queue = append(queue, n)
			}
		}
	}

	if len(result) != len(g.nodes) {
		cycles := g.Cycles()
		return nil, &CycleError{Cycle: cycles[0]}
	}
	return result, nil
}

// Cycles returns one closed path per strongly connected component that
// contains a cycle, ordered by the component's earliest node.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	for _, comp := range g.components() {
		if len(comp) == 1 && !slices.Contains(g.adjacency[comp[0]], comp[0]) {
			continue
		}
		cycles = append(cycles, g.pathWithin(comp))
	}
	return cycles
}

// components runs Tarjan's algorithm and returns each component with its
// nodes in insertion order.
func (g *Graph) components() [][]string {
	var (
		counter int
		stack   []string
		onStack = make(map[string]bool)
		order   = make(map[string]int)
		low     = make(map[string]int)
		comps   [][]string
	)

	var visit func(v string)
	visit = func(v string) {
		order[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.adjacency[v] {
			if _, seen := order[w]; !seen {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], order[w])
			}
		}

		if low[v] == order[v] {
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			slices.SortFunc(comp, func(a, b string) int { return g.index[a] - g.index[b] })
			comps = append(comps, comp)
		}
	}

	for _, v := range g.nodes {
		if _, seen := order[v]; !seen {
			visit(v)
		}
	}
	slices.SortFunc(comps, func(a, b []string) int { return g.index[a[0]] - g.index[b[0]] })
	return comps
}

// pathWithin walks from the component's first node back to itself, staying
// inside the component.
func (g *Graph) pathWithin(comp []string) []string {
	start := comp[0]
	inComp := make(map[string]bool, len(comp))
	for _, n := range comp {
		inComp[n] = true
	}

	visited := map[string]bool{start: true}
	path := []string{start}
	var walk func(v string) bool
	walk = func(v string) bool {
		for _, w := range g.adjacency[v] {
			if w == start {
				path = append(path, w)
				return true
			}
			if !inComp[w] || visited[w] {
				continue
			}
			visited[w] = true
			path = append(path, w)
			if walk(w) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	walk(start)
	return path
}
