package definition

import (
	"sort"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Reachable returns the ids reachable from the start step through
// statically declared transitions, in sorted order.
func Reachable(def *domain.FlowDefinition) []string {
	if def == nil || !def.HasStep(def.Start) {
		return nil
	}

	visited := map[string]bool{}
	queue := []string{def.Start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true

		step, ok := def.Steps[current]
		if !ok {
			continue
		}
		for _, target := range step.Next.Targets() {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	ids := make([]string, 0, len(visited))
	for id := range visited {
		if def.HasStep(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Unreachable lists declared steps that no literal transition leads to.
// Computed transitions and resolvers may still reach them, so this is a hint, not an error.
func Unreachable(def *domain.FlowDefinition) []string {
	if def == nil {
		return nil
	}
	reached := map[string]bool{}
	for _, id := range Reachable(def) {
		reached[id] = true
	}
	var orphans []string
	for _, id := range def.StepIDs() {
		if !reached[id] {
			orphans = append(orphans, id)
		}
	}
	return orphans
}
