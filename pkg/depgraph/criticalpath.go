package depgraph

import "sort"

// Schedule is the result of a critical path computation. All times are in
// the same unit as the task durations (hours in this codebase).
type Schedule struct {
	Path           []string           `json:"critical_path"`
	TotalDuration  float64            `json:"total_duration"`
	EarliestStart  map[string]float64 `json:"earliest_start"`
	EarliestFinish map[string]float64 `json:"earliest_finish"`
	LatestStart    map[string]float64 `json:"latest_start"`
	Slack          map[string]float64 `json:"slack"`
}

// CriticalPath runs the CPM forward and backward passes over the graph.
// Tasks missing from durations count as zero length. Ties between equally
// critical branches break toward the lexicographically smallest task id.
func CriticalPath(g *Graph, durations map[string]float64) (*Schedule, error) {
	tasks, successors := g.snapshot()

	// Kahn ordering doubles as the cycle check
	indegree := make(map[string]int, len(tasks))
	predecessors := make(map[string][]string, len(tasks))
	for id := range tasks {
		indegree[id] = 0
	}
	for pred, succs := range successors {
		for succ := range succs {
			indegree[succ]++
			predecessors[succ] = append(predecessors[succ], pred)
		}
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		var released []string
		for succ := range successors[id] {
			indegree[succ]--
			if indegree[succ] == 0 {
				released = append(released, succ)
			}
		}
		sort.Strings(released)
		queue = append(queue, released...)
	}
	if len(order) != len(tasks) {
		return nil, ErrGraphNotAcyclic
	}

	duration := func(id string) float64 { return durations[id] }

	es := make(map[string]float64, len(tasks))
	ef := make(map[string]float64, len(tasks))
	for _, id := range order {
		start := 0.0
		for _, pred := range predecessors[id] {
			if ef[pred] > start {
				start = ef[pred]
			}
		}
		es[id] = start
		ef[id] = start + duration(id)
	}

	total := 0.0
	for _, id := range order {
		if ef[id] > total {
			total = ef[id]
		}
	}

	ls := make(map[string]float64, len(tasks))
	lf := make(map[string]float64, len(tasks))
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		finish := total
		for succ := range successors[id] {
			if ls[succ] < finish {
				finish = ls[succ]
			}
		}
		lf[id] = finish
		ls[id] = finish - duration(id)
	}

	slack := make(map[string]float64, len(tasks))
	for _, id := range order {
		slack[id] = ls[id] - es[id]
	}

	return &Schedule{
		Path:           extractPath(order, successors, es, ef, slack),
		TotalDuration:  total,
		EarliestStart:  es,
		EarliestFinish: ef,
		LatestStart:    ls,
		Slack:          slack,
	}, nil
}

// extractPath walks zero-slack tasks from a source to a sink, preferring
// the smallest task id whenever more than one branch is critical.
func extractPath(order []string, successors map[string]map[string]bool, es, ef, slack map[string]float64) []string {
	var start string
	for _, id := range order {
		if slack[id] == 0 && es[id] == 0 {
			start = id
			break
		}
	}
	if start == "" {
		return nil
	}

	path := []string{start}
	current := start
	for {
		var next string
		var succs []string
		for s := range successors[current] {
			succs = append(succs, s)
		}
		sort.Strings(succs)
		for _, succ := range succs {
			if slack[succ] == 0 && es[succ] == ef[current] {
				next = succ
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		current = next
	}
}
