// Copyright Contributors to the Opus project

package task

import (
	"fmt"

	"github.com/nicc777/opus/pkg/identifier"
)

// QualifiesForProcessing applies the execution-scope filter for the given
// processing-scope identifier. A task is in scope by default; an EXCLUDE
// entry matching the command or environment disqualifies it, and an
// INCLUDE entry restricts the respective dimension to the listed names.
// EXCLUDE wins over INCLUDE.
func (t *Task) QualifiesForProcessing(scope *identifier.Identifier) bool {
	if !identifier.IsProcessingScope(scope) {
		return true
	}

	var command, environment string
	for _, ctx := range scope.Contexts().List() {
		switch ctx.Type {
		case identifier.ContextCommand:
			command = ctx.Name
		case identifier.ContextEnvironment:
			environment = ctx.Name
		}
	}

	qualifies := true
	var requiredCommands, requiredEnvironments []string
	for _, candidate := range t.identifiers.List() {
		if candidate.Type() != identifier.TypeExecutionScope {
			continue
		}
		switch candidate.Key() {
		case identifier.KeyExclude:
			for _, ctx := range candidate.Contexts().List() {
				switch ctx.Type {
				case identifier.ContextCommand:
					if ctx.Name == command {
						qualifies = false
						t.log.Info(fmt.Sprintf("task %q disqualified by explicit exclusion of command %q", t.id, command))
					}
				case identifier.ContextEnvironment:
					if ctx.Name == environment {
						qualifies = false
						t.log.Info(fmt.Sprintf("task %q disqualified by explicit exclusion of environment %q", t.id, environment))
					}
				}
			}
		case identifier.KeyInclude:
			for _, ctx := range candidate.Contexts().List() {
				switch ctx.Type {
				case identifier.ContextCommand:
					requiredCommands = append(requiredCommands, ctx.Name)
				case identifier.ContextEnvironment:
					requiredEnvironments = append(requiredEnvironments, ctx.Name)
				}
			}
		}
	}

	if qualifies && len(requiredCommands) > 0 && !contains(requiredCommands, command) {
		qualifies = false
		t.log.Info(fmt.Sprintf("task %q disqualified: command %q not in the included commands", t.id, command))
	}
	if qualifies && len(requiredEnvironments) > 0 && !contains(requiredEnvironments, environment) {
		qualifies = false
		t.log.Info(fmt.Sprintf("task %q disqualified: environment %q not in the included environments", t.id, environment))
	}
	return qualifies
}

// MatchNameOrLabelIdentifier reports whether the query identifier links to
// this task. A processing-scope query delegates to the execution-scope
// filter; a ManifestName or Label query scans the task's non-ExecutionScope
// identifiers for a scalar match, additionally requiring a shared context
// when the query is contextual. Any other query type never matches.
func (t *Task) MatchNameOrLabelIdentifier(query *identifier.Identifier) bool {
	if query == nil {
		return false
	}
	if identifier.IsProcessingScope(query) {
		return t.QualifiesForProcessing(query)
	}
	if query.Type() != identifier.TypeManifestName && query.Type() != identifier.TypeLabel {
		return false
	}

	for _, candidate := range t.identifiers.List() {
		if candidate.Type() == identifier.TypeExecutionScope {
			continue
		}
		basicMatch := false
		switch candidate.Type() {
		case identifier.TypeManifestName:
			basicMatch = query.Type() == identifier.TypeManifestName && candidate.Key() == query.Key()
		case identifier.TypeLabel:
			candidateVal, candidateHasVal := candidate.Value()
			queryVal, queryHasVal := query.Value()
			basicMatch = query.Type() == identifier.TypeLabel &&
				candidate.Key() == query.Key() &&
				candidateHasVal == queryHasVal && candidateVal == queryVal
		}
		if !basicMatch {
			continue
		}
		if query.Contexts().IsEmpty() {
			return true
		}
		for _, queryContext := range query.Contexts().List() {
			if candidate.Contexts().Contains(queryContext) {
				return true
			}
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
