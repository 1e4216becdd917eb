package graph

import (
	"fmt"
	"sort"
)

// DetectCycles checks the graph for dependency cycles using a classic
// depth-first search over three node sets: permanently visited,
// temporarily on the recursion stack, and unvisited. A cycle is a fatal
// configuration error reported before any node's Compile runs.
func (g *Graph) DetectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			return fmt.Errorf("cycle detected involving node '%s'", id)
		}
		temporary[id] = true
		for dep := range g.dependents[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, id := range g.NodeIDs() {
		if !permanent[id] {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// topoOrder returns node IDs ordered so every producer precedes its
// consumers. Ties break lexically for deterministic ordering.
func (g *Graph) topoOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.deps[id])
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
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var released []string
		for dep := range g.dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				released = append(released, dep)
			}
		}
		sort.Strings(released)
		ready = append(ready, released...)
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("cycle detected: ordered %d of %d nodes", len(order), len(g.nodes))
	}
	return order, nil
}

// downstream returns id plus every node transitively depending on it,
// in no particular order.
func (g *Graph) downstream(id string) map[string]struct{} {
	closure := map[string]struct{}{id: {}}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dep := range g.dependents[cur] {
			if _, seen := closure[dep]; !seen {
				closure[dep] = struct{}{}
				stack = append(stack, dep)
			}
		}
	}
	return closure
}
