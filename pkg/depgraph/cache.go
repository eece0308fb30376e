package depgraph

import "sync"

// Cache keeps one Graph per project so request handlers do not rebuild the
// edge set from storage on every read. Writers must call Invalidate after
// any dependency mutation.
type Cache struct {
	mu     sync.Mutex
	graphs map[string]*Graph
}

func NewCache() *Cache {
	return &Cache{graphs: make(map[string]*Graph)}
}

// Get returns the cached graph for a project, or nil when absent
func (c *Cache) Get(projectID string) *Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graphs[projectID]
}

// Put stores the graph for a project, replacing any previous entry
func (c *Cache) Put(projectID string, g *Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs[projectID] = g
}

// Invalidate drops the cached graph so the next read rebuilds it
func (c *Cache) Invalidate(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.graphs, projectID)
}
