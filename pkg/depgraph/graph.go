package depgraph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrSelfDependency      = errors.New("task cannot depend on itself")
	ErrDuplicateDependency = errors.New("dependency already exists")
	ErrCyclicDependency    = errors.New("dependency would create a cycle")
	ErrDependencyNotFound  = errors.New("dependency not found")
	ErrGraphNotAcyclic     = errors.New("dependency graph contains a cycle")
)

// Edge is a finish-to-start dependency from predecessor to successor
type Edge struct {
	Predecessor string `json:"predecessor"`
	Successor   string `json:"successor"`
}

// Graph holds a project's dependency edges. All methods are safe for
// concurrent use; mutations keep the acyclic invariant by construction.
type Graph struct {
	mu         sync.RWMutex
	successors map[string]map[string]bool
	tasks      map[string]bool
}

func NewGraph() *Graph {
	return &Graph{
		successors: make(map[string]map[string]bool),
		tasks:      make(map[string]bool),
	}
}

// AddTask registers a task with no edges. Adding an existing task is a
// no-op so callers can load tasks and edges in any order.
func (g *Graph) AddTask(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasks[taskID] = true
}

// AddEdge inserts a predecessor -> successor dependency. It rejects self
// loops, duplicates, and any edge that would close a cycle.
func (g *Graph) AddEdge(predecessor, successor string) error {
	if predecessor == successor {
		return fmt.Errorf("%w: %s", ErrSelfDependency, predecessor)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.successors[predecessor][successor] {
		return fmt.Errorf("%w: %s -> %s", ErrDuplicateDependency, predecessor, successor)
	}
	// A path successor ~> predecessor means the new edge closes a loop
	if g.reachableLocked(successor, predecessor) {
		return fmt.Errorf("%w: %s -> %s", ErrCyclicDependency, predecessor, successor)
	}

	g.tasks[predecessor] = true
	g.tasks[successor] = true
	if g.successors[predecessor] == nil {
		g.successors[predecessor] = make(map[string]bool)
	}
	g.successors[predecessor][successor] = true
	return nil
}

// RemoveEdge deletes an existing dependency
func (g *Graph) RemoveEdge(predecessor, successor string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.successors[predecessor][successor] {
		return fmt.Errorf("%w: %s -> %s", ErrDependencyNotFound, predecessor, successor)
	}
	delete(g.successors[predecessor], successor)
	if len(g.successors[predecessor]) == 0 {
		delete(g.successors, predecessor)
	}
	return nil
}

// Tasks returns every known task id in sorted order
func (g *Graph) Tasks() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns every dependency sorted by predecessor then successor
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []Edge
	for pred, succs := range g.successors {
		for succ := range succs {
			edges = append(edges, Edge{Predecessor: pred, Successor: succ})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Predecessor != edges[j].Predecessor {
			return edges[i].Predecessor < edges[j].Predecessor
		}
		return edges[i].Successor < edges[j].Successor
	})
	return edges
}

// HasEdge reports whether the exact dependency exists
func (g *Graph) HasEdge(predecessor, successor string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.successors[predecessor][successor]
}

// ValidateAcyclic runs a full cycle check and returns the first cycle it
// finds as a task id path (first id repeated at the end). AddEdge already
// prevents cycles, so this exists for bulk imports and integrity checks.
func (g *Graph) ValidateAcyclic() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.tasks))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		stack = append(stack, id)
		for _, succ := range g.sortedSuccessorsLocked(id) {
			switch color[succ] {
			case white:
				if cycle := visit(succ); cycle != nil {
					return cycle
				}
			case gray:
				// Slice the stack back to the first occurrence of succ
				for i, v := range stack {
					if v == succ {
						cycle := append([]string{}, stack[i:]...)
						return append(cycle, succ)
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle, ErrGraphNotAcyclic
			}
		}
	}
	return nil, nil
}

// TopologicalLevels groups tasks into execution waves: level 0 holds tasks
// with no predecessors, level n holds tasks whose predecessors all sit in
// earlier levels. Ids within a level are sorted.
func (g *Graph) TopologicalLevels() ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indegree := make(map[string]int, len(g.tasks))
	for id := range g.tasks {
		indegree[id] = 0
	}
	for _, succs := range g.successors {
		for succ := range succs {
			indegree[succ]++
		}
	}

	var current []string
	for id, deg := range indegree {
		if deg == 0 {
			current = append(current, id)
		}
	}

	var levels [][]string
	placed := 0
	for len(current) > 0 {
		sort.Strings(current)
		levels = append(levels, current)
		placed += len(current)

		var next []string
		for _, id := range current {
			for succ := range g.successors[id] {
				indegree[succ]--
				if indegree[succ] == 0 {
					next = append(next, succ)
				}
			}
		}
		current = next
	}

	if placed != len(g.tasks) {
		return nil, ErrGraphNotAcyclic
	}
	return levels, nil
}

// reachableLocked walks successors depth-first looking for target.
// Callers must hold the lock.
func (g *Graph) reachableLocked(from, target string) bool {
	if from == target {
		return true
	}
	visited := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for succ := range g.successors[id] {
			if succ == target {
				return true
			}
			if !visited[succ] {
				visited[succ] = true
				stack = append(stack, succ)
			}
		}
	}
	return false
}

func (g *Graph) sortedSuccessorsLocked(id string) []string {
	succs := make([]string, 0, len(g.successors[id]))
	for s := range g.successors[id] {
		succs = append(succs, s)
	}
	sort.Strings(succs)
	return succs
}

// snapshot copies tasks and adjacency under one read lock so longer
// computations can run without holding it.
func (g *Graph) snapshot() (map[string]bool, map[string]map[string]bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make(map[string]bool, len(g.tasks))
	for id := range g.tasks {
		tasks[id] = true
	}
	successors := make(map[string]map[string]bool, len(g.successors))
	for pred, succs := range g.successors {
		copied := make(map[string]bool, len(succs))
		for s := range succs {
			copied[s] = true
		}
		successors[pred] = copied
	}
	return tasks, successors
}
