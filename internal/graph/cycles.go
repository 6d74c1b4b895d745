package graph

import (
	"slices"

	"relmap/internal/relationship"
)

// DetectCycles returns every elementary cycle formed by direct references
// between the graph's tables. Each cycle starts at its lexicographically
// smallest table, so rotations are reported once; a table that references
// itself is a cycle of one. An acyclic graph yields an empty, non-nil slice.
//
// The search follows Johnson's algorithm: for each start table it only walks
// the strongly connected component containing start among tables ordered at
// or after it, and blocks tables that cannot currently lead back to start.
// Cost is linear in the edges per cycle found, so acyclic schemas of any
// shape finish in polynomial time.
func DetectCycles(g *Graph) [][]string {
	cycles := [][]string{}
	if g == nil {
		return cycles
	}

	adjacency := referenceEdges(g)
	nodes := make([]string, 0, len(adjacency))
	for node := range adjacency {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)

	for _, start := range nodes {
		component := componentOf(start, adjacency)
		if component == nil {
			continue
		}

		var (
			path    []string
			blocked = make(map[string]bool)
			waiting = make(map[string]map[string]bool)
			unblock func(node string)
			circuit func(node string) bool
		)
		unblock = func(node string) {
			blocked[node] = false
			for w := range waiting[node] {
				delete(waiting[node], w)
				if blocked[w] {
					unblock(w)
				}
			}
		}
		circuit = func(node string) bool {
			found := false
			path = append(path, node)
			blocked[node] = true
			for _, next := range adjacency[node] {
				if !component[next] {
					continue
				}
				if next == start {
					cycles = append(cycles, slices.Clone(path))
					found = true
				} else if !blocked[next] && circuit(next) {
					found = true
				}
			}
			if found {
				unblock(node)
			} else {
				for _, next := range adjacency[node] {
					if !component[next] {
						continue
					}
					if waiting[next] == nil {
						waiting[next] = make(map[string]bool)
					}
					waiting[next][node] = true
				}
			}
			path = path[:len(path)-1]
			return found
		}
		circuit(start)
	}
	return cycles
}

// componentOf returns the strongly connected component containing start in
// the subgraph of tables ordered at or after start, found with Tarjan's
// algorithm. It returns nil when start lies on no cycle there.
func componentOf(start string, adjacency map[string][]string) map[string]bool {
	var (
		counter int
		index   = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		result  map[string]bool
		connect func(node string)
	)
	connect = func(node string) {
		index[node] = counter
		lowlink[node] = counter
		counter++
		stack = append(stack, node)
		onStack[node] = true

		for _, next := range adjacency[node] {
			if next < start {
				continue
			}
			if _, seen := index[next]; !seen {
				connect(next)
				lowlink[node] = min(lowlink[node], lowlink[next])
			} else if onStack[next] {
				lowlink[node] = min(lowlink[node], index[next])
			}
		}

		if lowlink[node] != index[node] {
			return
		}
		members := make(map[string]bool)
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			members[top] = true
			if top == node {
				break
			}
		}
		if members[start] {
			result = members
		}
	}
	connect(start)

	if len(result) == 1 && !slices.Contains(adjacency[start], start) {
		return nil
	}
	return result
}

// referenceEdges collapses direct references into sorted, de-duplicated
// adjacency lists restricted to the graph's tables.
func referenceEdges(g *Graph) map[string][]string {
	inGraph := make(map[string]bool, len(g.Tables))
	for _, table := range g.Tables {
		inGraph[table] = true
	}

	adjacency := make(map[string][]string)
	for _, table := range g.Tables {
		seen := make(map[string]bool)
		for _, rel := range g.Relationships[table] {
			if rel.Kind != relationship.KindDirectReference || !inGraph[rel.TargetTable] || seen[rel.TargetTable] {
				continue
			}
			seen[rel.TargetTable] = true
			adjacency[table] = append(adjacency[table], rel.TargetTable)
		}
		slices.Sort(adjacency[table])
	}
	return adjacency
}
