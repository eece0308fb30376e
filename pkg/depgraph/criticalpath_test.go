package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriticalPathChain(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("c", "d"))

	sched, err := CriticalPath(g, map[string]float64{
		"a": 1, "b": 2, "c": 3, "d": 1,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, sched.Path)
	assert.Equal(t, 7.0, sched.TotalDuration)
	for _, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, 0.0, sched.Slack[id], "task %s", id)
	}
}

func TestCriticalPathDiamond(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "c"))
	require.NoError(t, g.AddEdge("b", "d"))
	require.NoError(t, g.AddEdge("c", "d"))

	sched, err := CriticalPath(g, map[string]float64{
		"a": 1, "b": 5, "c": 2, "d": 1,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "d"}, sched.Path)
	assert.Equal(t, 7.0, sched.TotalDuration)
	assert.Equal(t, 3.0, sched.Slack["c"])
	assert.Equal(t, 0.0, sched.Slack["b"])

	assert.Equal(t, 0.0, sched.EarliestStart["a"])
	assert.Equal(t, 1.0, sched.EarliestStart["b"])
	assert.Equal(t, 1.0, sched.EarliestStart["c"])
	assert.Equal(t, 6.0, sched.EarliestStart["d"])
	assert.Equal(t, 4.0, sched.LatestStart["c"])
}

func TestCriticalPathTieBreaksToLowestID(t *testing.T) {
	// Two equally long branches, the path must take the smaller ids
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "c"))
	require.NoError(t, g.AddEdge("b", "d"))
	require.NoError(t, g.AddEdge("c", "d"))

	sched, err := CriticalPath(g, map[string]float64{
		"a": 1, "b": 3, "c": 3, "d": 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, sched.Path)
	assert.Equal(t, 5.0, sched.TotalDuration)
}

func TestCriticalPathMissingDurationsCountAsZero(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))

	sched, err := CriticalPath(g, map[string]float64{"a": 4})
	require.NoError(t, err)
	assert.Equal(t, 4.0, sched.TotalDuration)
	assert.Equal(t, []string{"a", "b"}, sched.Path)
}

func TestCriticalPathIsolatedTasks(t *testing.T) {
	g := NewGraph()
	g.AddTask("x")
	g.AddTask("y")

	sched, err := CriticalPath(g, map[string]float64{"x": 2, "y": 5})
	require.NoError(t, err)
	assert.Equal(t, 5.0, sched.TotalDuration)
	assert.Equal(t, 0.0, sched.Slack["y"])
	assert.Equal(t, 3.0, sched.Slack["x"])
	assert.Equal(t, []string{"y"}, sched.Path)
}

func TestCriticalPathEmptyGraph(t *testing.T) {
	g := NewGraph()
	sched, err := CriticalPath(g, nil)
	require.NoError(t, err)
	assert.Empty(t, sched.Path)
	assert.Equal(t, 0.0, sched.TotalDuration)
}

func TestCriticalPathCyclicGraph(t *testing.T) {
	g := NewGraph()
	g.tasks["a"] = true
	g.tasks["b"] = true
	g.successors["a"] = map[string]bool{"b": true}
	g.successors["b"] = map[string]bool{"a": true}

	_, err := CriticalPath(g, nil)
	assert.ErrorIs(t, err, ErrGraphNotAcyclic)
}

func TestCacheInvalidation(t *testing.T) {
	cache := NewCache()
	assert.Nil(t, cache.Get("p1"))

	g := NewGraph()
	cache.Put("p1", g)
	assert.Same(t, g, cache.Get("p1"))

	cache.Invalidate("p1")
	assert.Nil(t, cache.Get("p1"))
}
