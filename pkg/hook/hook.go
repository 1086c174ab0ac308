// Copyright Contributors to the Opus project

// Package hook implements named lifecycle callbacks bound to a subset of
// (command, context, lifecycle stage), and the registry that dispatches
// them around every stage transition.
package hook

import (
	"fmt"
	"strings"

	"github.com/nicc777/opus/pkg/kvstore"
	"github.com/nicc777/opus/pkg/lifecycle"
	"github.com/nicc777/opus/pkg/logging"
	"github.com/nicc777/opus/pkg/task"
)

const (
	// CommandNotApplicable is the wildcard command: a hook scoped to it
	// fires for any command.
	CommandNotApplicable = "NOT_APPLICABLE"
	// ContextAll is the wildcard context: a hook scoped to it fires for
	// any context.
	ContextAll = "ALL"
)

// Func is the hook callable. It receives deep copies of the shared state;
// returning a nil store means "no change".
type Func func(
	hookName string,
	t *task.Task,
	kv *kvstore.KeyValueStore,
	command string,
	context string,
	stage lifecycle.Stage,
	extra map[string]any,
	log logging.Logger,
) (*kvstore.KeyValueStore, error)

// Hook is a named callback with its command/context/stage scope.
type Hook struct {
	name     string
	commands []string
	contexts []string
	stages   *lifecycle.Stages
	fn       Func
	log      logging.Logger
}

// New returns a Hook. Empty commands default to the wildcard
// NOT_APPLICABLE; empty contexts default to the wildcard ALL; an "ALL"
// entry among several collapses the list to just "all". Matching is
// case-insensitive.
func New(name string, commands, contexts []string, stages *lifecycle.Stages, fn Func, log logging.Logger) *Hook {
	if stages == nil {
		stages = lifecycle.AllStages()
	}
	return &Hook{
		name:     name,
		commands: normalizeScope(commands, CommandNotApplicable),
		contexts: normalizeScope(contexts, ContextAll),
		stages:   stages,
		fn:       fn,
		log:      logging.OrDiscard(log),
	}
}

func normalizeScope(entries []string, emptyDefault string) []string {
	if len(entries) == 0 {
		return []string{strings.ToLower(emptyDefault)}
	}
	normalized := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.EqualFold(entry, ContextAll) && len(entries) > 1 {
			return []string{strings.ToLower(ContextAll)}
		}
		normalized = append(normalized, strings.ToLower(entry))
	}
	return normalized
}

// Name returns the hook name.
func (h *Hook) Name() string {
	return h.name
}

// Stages returns the lifecycle stages the hook subscribes to.
func (h *Hook) Stages() *lifecycle.Stages {
	return h.stages
}

func (h *Hook) commandMatches(command string) bool {
	lowered := strings.ToLower(command)
	for _, candidate := range h.commands {
		if candidate == lowered {
			return true
		}
	}
	return len(h.commands) == 1 && h.commands[0] == strings.ToLower(CommandNotApplicable)
}

func (h *Hook) contextMatches(context string) bool {
	lowered := strings.ToLower(context)
	for _, candidate := range h.contexts {
		if candidate == lowered {
			return true
		}
	}
	return len(h.contexts) == 1 && h.contexts[0] == strings.ToLower(ContextAll)
}

// Applies reports whether the hook is in scope for the given command,
// context and lifecycle stage.
func (h *Hook) Applies(command, context string, stage lifecycle.Stage) bool {
	return h.commandMatches(command) && h.contextMatches(context) && h.stages.Registered(stage)
}

// Process runs the hook callable when the hook applies. The callable
// receives a deep copy of kv; an out-of-scope hook or a nil callable
// result yields an unchanged copy of kv. A callable error is logged and
// returned.
func (h *Hook) Process(
	command, context string,
	stage lifecycle.Stage,
	kv *kvstore.KeyValueStore,
	t *task.Task,
	taskID string,
	extra map[string]any,
	log logging.Logger,
) (*kvstore.KeyValueStore, error) {
	if log == nil {
		log = h.log
	}
	if !h.Applies(command, context, stage) {
		return kv.Clone(), nil
	}
	log.Debug(fmt.Sprintf("hook %q executing on stage %q for task %q (command %q, context %q)", h.name, stage.Name(), taskID, command, context))
	result, err := h.fn(h.name, t, kv.Clone(), command, context, stage, extra, log)
	if err != nil {
		log.Error(fmt.Sprintf("hook %q failed during command %q in context %q at stage %q: %v", h.name, command, context, stage.Name(), err))
		return nil, err
	}
	if result == nil {
		return kv.Clone(), nil
	}
	return result, nil
}
