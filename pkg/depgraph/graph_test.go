package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEdgeRejectsSelfDependency(t *testing.T) {
	g := NewGraph()
	err := g.AddEdge("a", "a")
	assert.ErrorIs(t, err, ErrSelfDependency)
}

func TestAddEdgeRejectsDuplicate(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))
	err := g.AddEdge("a", "b")
	assert.ErrorIs(t, err, ErrDuplicateDependency)
}

func TestAddEdgeRejectsCycle(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))
	err := g.AddEdge("b", "a")
	assert.ErrorIs(t, err, ErrCyclicDependency)

	// The failed insert must not leave partial state behind
	assert.False(t, g.HasEdge("b", "a"))
	assert.True(t, g.HasEdge("a", "b"))
}

func TestAddEdgeRejectsLongCycle(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("c", "d"))
	err := g.AddEdge("d", "a")
	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestRemoveEdge(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.RemoveEdge("a", "b"))
	assert.False(t, g.HasEdge("a", "b"))

	// Removing an edge reopens the reverse direction
	require.NoError(t, g.AddEdge("b", "a"))
}

func TestRemoveEdgeNotFound(t *testing.T) {
	g := NewGraph()
	err := g.RemoveEdge("a", "b")
	assert.ErrorIs(t, err, ErrDependencyNotFound)
}

func TestTasksAndEdgesSorted(t *testing.T) {
	g := NewGraph()
	g.AddTask("z")
	require.NoError(t, g.AddEdge("m", "a"))
	require.NoError(t, g.AddEdge("a", "b"))

	assert.Equal(t, []string{"a", "b", "m", "z"}, g.Tasks())
	assert.Equal(t, []Edge{
		{Predecessor: "a", Successor: "b"},
		{Predecessor: "m", Successor: "a"},
	}, g.Edges())
}

func TestValidateAcyclicCleanGraph(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	cycle, err := g.ValidateAcyclic()
	assert.NoError(t, err)
	assert.Nil(t, cycle)
}

func TestValidateAcyclicReportsCycle(t *testing.T) {
	// Build a cyclic adjacency directly, bypassing AddEdge's guard, the
	// way a bulk import would before validation.
	g := NewGraph()
	g.tasks["a"] = true
	g.tasks["b"] = true
	g.tasks["c"] = true
	g.successors["a"] = map[string]bool{"b": true}
	g.successors["b"] = map[string]bool{"c": true}
	g.successors["c"] = map[string]bool{"a": true}

	cycle, err := g.ValidateAcyclic()
	require.ErrorIs(t, err, ErrGraphNotAcyclic)
	require.NotEmpty(t, cycle)
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])
	assert.Len(t, cycle, 4)
}

func TestTopologicalLevels(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "c"))
	require.NoError(t, g.AddEdge("b", "d"))
	require.NoError(t, g.AddEdge("c", "d"))
	g.AddTask("e")

	levels, err := g.TopologicalLevels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"a", "e"},
		{"b", "c"},
		{"d"},
	}, levels)
}

func TestTopologicalLevelsNoEdges(t *testing.T) {
	g := NewGraph()
	g.AddTask("c")
	g.AddTask("a")
	g.AddTask("b")

	levels, err := g.TopologicalLevels()
	require.NoError(t, err)
	// Every task is a root, so they all share one level.
	assert.Equal(t, [][]string{{"a", "b", "c"}}, levels)
}

func TestTopologicalLevelsEmptyGraph(t *testing.T) {
	g := NewGraph()
	levels, err := g.TopologicalLevels()
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestTopologicalLevelsCyclicGraph(t *testing.T) {
	g := NewGraph()
	g.tasks["a"] = true
	g.tasks["b"] = true
	g.successors["a"] = map[string]bool{"b": true}
	g.successors["b"] = map[string]bool{"a": true}

	_, err := g.TopologicalLevels()
	assert.ErrorIs(t, err, ErrGraphNotAcyclic)
}
