// Copyright Contributors to the Opus project

// Package orchestrator implements the top-level task orchestration: the
// manifest and processor registries, dependency resolution, and the
// sequential run driver with its lifecycle hook dispatch.
package orchestrator

import (
	"fmt"

	"github.com/nicc777/opus/pkg/hook"
	"github.com/nicc777/opus/pkg/identifier"
	"github.com/nicc777/opus/pkg/kvstore"
	"github.com/nicc777/opus/pkg/lifecycle"
	"github.com/nicc777/opus/pkg/logging"
	"github.com/nicc777/opus/pkg/processor"
	"github.com/nicc777/opus/pkg/state"
	"github.com/nicc777/opus/pkg/task"
)

// Tasks is the orchestrator: it holds the task and processor registries,
// the shared key/value store, the hook registry and the state persistence,
// and drives processing runs.
type Tasks struct {
	log         logging.Logger
	tasks       map[string]*task.Task
	order       []string
	executors   map[string]processor.TaskProcessor
	register    map[string]string
	kv          *kvstore.KeyValueStore
	hooks       *hook.Hooks
	persistence state.Persistence
}

// Option configures a Tasks orchestrator.
type Option func(*Tasks)

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(t *Tasks) { t.log = log }
}

// WithKeyValueStore seeds the shared key/value store.
func WithKeyValueStore(kv *kvstore.KeyValueStore) Option {
	return func(t *Tasks) { t.kv = kv }
}

// WithHooks provides a pre-populated hook registry. A hook registered here
// pre-empts the default error hook of a stage when it applies to that
// stage under the wildcard command and context, or when it holds the
// default hook's name.
func WithHooks(hooks *hook.Hooks) Option {
	return func(t *Tasks) { t.hooks = hooks }
}

// WithStatePersistence sets the persistence backend.
func WithStatePersistence(persistence state.Persistence) Option {
	return func(t *Tasks) { t.persistence = persistence }
}

// New returns an orchestrator. Construction loads the persistence cache
// and installs an always-failing default hook for every error stage that
// is not already covered, guaranteeing that an unhandled error event
// ultimately surfaces to the caller.
func New(opts ...Option) *Tasks {
	t := &Tasks{
		tasks:     make(map[string]*task.Task),
		executors: make(map[string]processor.TaskProcessor),
		register:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = logging.OrDiscard(t.log)
	if t.kv == nil {
		t.kv = kvstore.New()
	}
	if t.hooks == nil {
		t.hooks = hook.NewHooks()
	}
	if t.persistence == nil {
		t.persistence = state.NewInMemory(t.log)
	}
	if _, err := t.persistence.RetrieveAllState(); err != nil {
		t.log.Error(fmt.Sprintf("failed to retrieve persisted state: %v", err))
	}
	t.registerDefaultErrorHooks()
	return t
}

func (t *Tasks) registerDefaultErrorHooks() {
	for _, stage := range lifecycle.ErrorStages() {
		if !t.hooks.AnyHookExists(hook.CommandNotApplicable, hook.ContextAll, stage) {
			t.hooks.Register(hook.NewDefaultErrorHook(stage, t.log))
		}
	}
}

// KeyValueStore returns the live shared store. After a run it holds every
// value written during processing.
func (t *Tasks) KeyValueStore() *kvstore.KeyValueStore {
	return t.kv
}

// Hooks returns the hook registry.
func (t *Tasks) Hooks() *hook.Hooks {
	return t.hooks
}

// StatePersistence returns the persistence backend.
func (t *Tasks) StatePersistence() state.Persistence {
	return t.persistence
}

// RegisterTaskProcessor adds a processor under its composite executor id
// and links every (kind, version) pair to it.
func (t *Tasks) RegisterTaskProcessor(p processor.TaskProcessor) {
	if p == nil {
		return
	}
	executorID := processor.ExecutorID(p)
	t.executors[executorID] = p
	for _, version := range p.Versions() {
		t.register[processor.VersionID(p.Kind(), version)] = executorID
	}
	t.log.Info(fmt.Sprintf("registered task processor %q", executorID))
}

// AddTask registers a task. The TASK_PRE_REGISTER hooks fire first; a
// missing (kind, version) processor raises the TASK_REGISTERED_ERROR
// event (fatal under the default hooks); a duplicate task id is rejected;
// finally the task is stored and TASK_REGISTERED fires.
func (t *Tasks) AddTask(tk *task.Task) error {
	if tk == nil {
		return fmt.Errorf("cannot add a nil task")
	}
	updated, err := t.hooks.Process(hook.CommandNotApplicable, hook.ContextAll, lifecycle.TaskPreRegister, t.kv.Clone(), tk, tk.ID(), nil, t.log)
	if updated != nil {
		t.kv = updated
	}
	if err != nil {
		return err
	}

	if _, ok := t.register[processor.VersionID(tk.Kind(), tk.Version())]; !ok {
		extra := map[string]any{
			hook.ExtraExceptionMessage: fmt.Sprintf(
				"Task kind %q with version %q has no processor registered. Ensure all task processors are registered before adding tasks.",
				tk.Kind(), tk.Version(),
			),
		}
		updated, err := t.hooks.Process(hook.CommandNotApplicable, hook.ContextAll, lifecycle.TaskRegisteredError, t.kv.Clone(), tk, "N/A", extra, t.log)
		if updated != nil {
			t.kv = updated
		}
		if err != nil {
			return err
		}
	}

	if _, exists := t.tasks[tk.ID()]; exists {
		return fmt.Errorf("Task with ID \"%s\" was already added previously. Use the metadata name to identify separate (but perhaps similar) manifests.", tk.ID())
	}

	t.tasks[tk.ID()] = tk
	t.order = append(t.order, tk.ID())
	TasksRegistered.WithLabelValues(tk.Kind()).Inc()

	updated, err = t.hooks.Process(hook.CommandNotApplicable, hook.ContextAll, lifecycle.TaskRegistered, t.kv.Clone(), tk, tk.ID(), nil, t.log)
	if updated != nil {
		t.kv = updated
	}
	return err
}

// FindTaskByName returns the first registered task matching the name, or
// nil. A non-empty callingTaskID excludes that task from the search.
func (t *Tasks) FindTaskByName(name, callingTaskID string) *task.Task {
	for _, id := range t.order {
		if callingTaskID != "" && callingTaskID == id {
			continue
		}
		if candidate := t.tasks[id]; candidate.MatchName(name) {
			return candidate
		}
	}
	return nil
}

// TaskByID returns the task registered under id.
func (t *Tasks) TaskByID(id string) (*task.Task, error) {
	if tk, ok := t.tasks[id]; ok {
		return tk, nil
	}
	return nil, fmt.Errorf("Task with task_id \"%s\" NOT FOUND", id)
}

// FindTaskIDsMatchingIdentifier returns, in registration order, the ids of
// every task linked by the identifier.
func (t *Tasks) FindTaskIDsMatchingIdentifier(query *identifier.Identifier) []string {
	var found []string
	for _, id := range t.order {
		if t.tasks[id].MatchNameOrLabelIdentifier(query) {
			found = append(found, id)
		}
	}
	return found
}
