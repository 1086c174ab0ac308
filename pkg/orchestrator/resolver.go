// Copyright Contributors to the Opus project

package orchestrator

import (
	"fmt"

	"github.com/nicc777/opus/pkg/identifier"
	"github.com/nicc777/opus/pkg/task"
)

// CalculateTaskOrder resolves the execution order for the processing
// scope: tasks are considered in registration order, dependencies emit
// strictly before their dependants, and the result carries no duplicates.
// Dependency chains resolve transitively. A named dependency that matches
// no task, a dependency that falls outside the processing scope, and a
// dependency cycle all fail the resolution.
func (t *Tasks) CalculateTaskOrder(scope *identifier.Identifier) ([]string, error) {
	order := make([]string, 0, len(t.order))
	inProgress := make(map[string]bool)
	for _, id := range t.order {
		candidate := t.tasks[id]
		t.log.Debug(fmt.Sprintf("task order: considering task %q", id))
		if !candidate.QualifiesForProcessing(scope) {
			continue
		}
		if containsString(order, id) {
			continue
		}
		updated, err := t.emitTask(order, candidate, scope, inProgress)
		if err != nil {
			return nil, err
		}
		order = updated
	}
	return dedupeFirstOccurrence(order), nil
}

// emitTask appends candidate's dependencies (recursively) and then the
// candidate itself to the order.
func (t *Tasks) emitTask(order []string, candidate *task.Task, scope *identifier.Identifier, inProgress map[string]bool) ([]string, error) {
	if inProgress[candidate.ID()] {
		return nil, fmt.Errorf("dependency cycle at \"%s\"", candidate.ID())
	}
	inProgress[candidate.ID()] = true
	defer delete(inProgress, candidate.ID())

	for _, dependency := range candidate.Dependencies() {
		matches := t.FindTaskIDsMatchingIdentifier(dependency)
		if dependency.Type() == identifier.TypeManifestName && len(matches) == 0 {
			return nil, fmt.Errorf("Dependant task \"%s\" required, but NOT FOUND", dependency.Key())
		}
		for _, matchID := range matches {
			// A task carrying a label it also depends on must not chase
			// itself.
			if matchID == candidate.ID() {
				continue
			}
			if containsString(order, matchID) {
				continue
			}
			dependant := t.tasks[matchID]
			if !dependant.QualifiesForProcessing(scope) {
				return nil, fmt.Errorf(
					"task \"%s\" depends on task \"%s\", but \"%s\" is out of processing scope; either remove the dependency or adjust the execution scope",
					candidate.ID(), matchID, matchID,
				)
			}
			updated, err := t.emitTask(order, dependant, scope, inProgress)
			if err != nil {
				return nil, err
			}
			order = updated
		}
	}
	if !containsString(order, candidate.ID()) {
		order = append(order, candidate.ID())
	}
	return order, nil
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func dedupeFirstOccurrence(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}
