// Package dag provides directed graph operations for table dependencies.
// It supports stable layered ordering and cycle reporting.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

// Graph represents a directed graph whose edges point from a dependency to
// its dependents. Insertion order of nodes is preserved and drives ordering.
type Graph struct {
	order   []string
	nodes   map[string]bool
	parents map[string][]string // child -> parents (dependencies)
}

// CyclicDependencyError is returned when some nodes can never be placed
// because they depend, directly or transitively, on themselves.
type CyclicDependencyError struct {
	Nodes []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency between [%s]: these tables could not be ordered", strings.Join(e.Nodes, ", "))
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]bool),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph. Adding a node twice is a no-op.
func (g *Graph) AddNode(id string) {
	if g.nodes[id] {
		return
	}
	g.nodes[id] = true
	g.order = append(g.order, id)
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
// A self edge is accepted and makes the node unorderable.
func (g *Graph) AddEdge(parentID, childID string) error {
	if !g.nodes[parentID] {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if !g.nodes[childID] {
		return fmt.Errorf("child node %q does not exist", childID)
	}

	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetParents returns the parents (dependencies) of a node in the order their
// edges were added.
func (g *Graph) GetParents(id string) []string {
	return g.parents[id]
}

// Order returns node IDs so that every dependency precedes its dependents.
//
// Ordering is done in fixed-point passes: each pass walks the still pending
// nodes in insertion order and places every node whose dependencies are all
// placed, including nodes placed earlier in the same pass. Nodes placeable in
// the same pass keep their insertion order. At most one pass per node runs;
// any node still pending after that is part of, or depends on, a cycle.
func (g *Graph) Order() ([]string, error) {
	placed := make(map[string]bool, len(g.order))
	result := make([]string, 0, len(g.order))
	pending := slices.Clone(g.order)

	for pass := 0; pass < len(g.order) && len(pending) > 0; pass++ {
		var next []string
		for _, id := range pending {
			if g.ready(id, placed) {
				placed[id] = true
				result = append(result, id)
			} else {
				next = append(next, id)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}

	if len(pending) > 0 {
		return nil, &CyclicDependencyError{Nodes: pending}
	}
	return result, nil
}

func (g *Graph) ready(id string, placed map[string]bool) bool {
	for _, parentID := range g.parents[id] {
		if !placed[parentID] {
			return false
		}
	}
	return true
}
