package contextstore

import "sort"

const maxReportedCycles = 10

// DependencyCycles finds circular imports in the file dependency map using
// an iterative depth-first traversal with an explicit stack. Each cycle is
// returned as a path closed on its first node. At most ten cycles are
// reported; beyond that the list stops carrying information.
func (s *Store) DependencyCycles() [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const (
		white = iota // unvisited
		grey         // on the current path
		black        // fully explored
	)

	nodes := make([]string, 0, len(s.fileDependencies))
	for file := range s.fileDependencies {
		nodes = append(nodes, file)
	}
	sort.Strings(nodes)

	color := make(map[string]int, len(nodes))
	var cycles [][]string

	type frame struct {
		node string
		next int
	}

	for _, start := range nodes {
		if color[start] != white {
			continue
		}

		stack := []frame{{node: start}}
		path := []string{start}
		color[start] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := s.fileDependencies[top.node]

			advanced := false
			for top.next < len(deps) {
				dep := deps[top.next]
				top.next++

				if color[dep] == black {
					continue
				}
				if color[dep] == grey {
					cycles = append(cycles, closeCycle(path, dep))
					if len(cycles) >= maxReportedCycles {
						return cycles
					}
					continue
				}

				color[dep] = grey
				stack = append(stack, frame{node: dep})
				path = append(path, dep)
				advanced = true
				break
			}

			if !advanced {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
			}
		}
	}

	return cycles
}

func closeCycle(path []string, node string) []string {
	start := 0
	for i, p := range path {
		if p == node {
			start = i
			break
		}
	}
	cycle := append([]string(nil), path[start:]...)
	return append(cycle, node)
}
