package checklist

import "sort"

const maxReportedCycles = 10

// FindCycles detects dependency cycles among checklist items using an
// iterative depth-first traversal with an explicit stack, so deep chains
// cannot exhaust the goroutine stack. Edges pointing at unknown ids are
// ignored; they are reported as unmet dependencies by the scheduler, not as
// graph defects. At most maxReportedCycles cycles are returned.
func (c *Checklist) FindCycles() [][]string {
	const (
		white = iota // unvisited
		grey         // on the current path
		black        // fully explored
	)

	color := make(map[string]int, len(c.Items))
	var cycles [][]string

	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ID)
	}
	sort.Strings(ids)

	type frame struct {
		id   string
		next int
	}

	for _, start := range ids {
		if color[start] != white {
			continue
		}

		stack := []frame{{id: start}}
		path := []string{start}
		color[start] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := c.byID[top.id].DependsOn

			advanced := false
			for top.next < len(deps) {
				dep := deps[top.next]
				top.next++

				if c.byID[dep] == nil || color[dep] == black {
					continue
				}
				if color[dep] == grey {
					cycles = append(cycles, extractCycle(path, dep))
					if len(cycles) >= maxReportedCycles {
						return cycles
					}
					continue
				}

				color[dep] = grey
				stack = append(stack, frame{id: dep})
				path = append(path, dep)
				advanced = true
				break
			}

			if !advanced {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
			}
		}
	}

	return cycles
}

// extractCycle slices the current path from the first occurrence of id and
// closes the loop.
func extractCycle(path []string, id string) []string {
	start := 0
	for i, node := range path {
		if node == id {
			start = i
			break
		}
	}
	cycle := append([]string(nil), path[start:]...)
	return append(cycle, id)
}
