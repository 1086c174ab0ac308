// Copyright Contributors to the Opus project

// Package processor defines the user-supplied task processing capability
// and the pre-processing gate that guards every execution with a run-key
// state machine in the shared key/value store.
package processor

import (
	"fmt"
	"strings"

	"github.com/nicc777/opus/pkg/hook"
	"github.com/nicc777/opus/pkg/kvstore"
	"github.com/nicc777/opus/pkg/lifecycle"
	"github.com/nicc777/opus/pkg/logging"
	"github.com/nicc777/opus/pkg/state"
	"github.com/nicc777/opus/pkg/task"
)

// Run-key states recorded in the key/value store for every
// (task, command, context) triple.
const (
	// StatusReady means the task is waiting to be processed.
	StatusReady = 1
	// StatusDone means the task was successfully processed.
	StatusDone = 2
	// StatusFailed means an attempt to process the task failed.
	StatusFailed = -1
)

// TaskProcessor is the capability implemented by users to process tasks of
// a given kind. A processor may read and write the key/value store and the
// persistence it is handed, and returns the (possibly copied) store.
type TaskProcessor interface {
	// Kind returns the manifest kind this processor handles.
	Kind() string
	// Versions returns the manifest versions this processor handles.
	Versions() []string
	// SupportedCommands returns the commands the processor understands.
	SupportedCommands() []string
	// ProcessTask processes a single task for the command and context.
	ProcessTask(t *task.Task, command, context string, kv *kvstore.KeyValueStore, persistence state.Persistence) (*kvstore.KeyValueStore, error)
}

// ExecutorID returns the composite id identifying a processor across all
// its versions: "kind:v1:v2:...".
func ExecutorID(p TaskProcessor) string {
	parts := append([]string{p.Kind()}, p.Versions()...)
	return strings.Join(parts, ":")
}

// VersionID returns the lookup id for a single (kind, version) pair.
func VersionID(kind, version string) string {
	return fmt.Sprintf("%s:%s", kind, version)
}

// RunKey returns the key/value store key recording the processing state of
// a task for a command and context.
func RunKey(taskID, command, context string) string {
	return fmt.Sprintf("PROCESSING_TASK:%s:%s:%s", taskID, command, context)
}

// PreProcessingCheck gates the processing of a task. On first sight of the
// run key it is set to StatusReady and TASK_PRE_PROCESSING_COMPLETED
// fires. When the key is at StatusReady and execute is true, the
// TASK_PROCESSING_PRE_START hooks fire, the processor runs, the key moves
// to StatusDone and TASK_PRE_PROCESSING_COMPLETED fires a second time. Any
// failure inside that sequence moves the key to StatusFailed and fires
// TASK_PRE_PROCESSING_COMPLETED_ERROR instead; the failure itself is
// surfaced only through those error hooks, so a benign error hook lets the
// run continue.
func PreProcessingCheck(
	p TaskProcessor,
	t *task.Task,
	command, context string,
	kv *kvstore.KeyValueStore,
	execute bool,
	persistence state.Persistence,
	hooks *hook.Hooks,
	log logging.Logger,
) (*kvstore.KeyValueStore, error) {
	log = logging.OrDiscard(log)
	if kv == nil {
		kv = kvstore.New()
	}
	if hooks == nil {
		hooks = hook.NewHooks()
	}
	runKey := RunKey(t.ID(), command, context)

	if _, seen := kv.Get(runKey); !seen {
		kv.Save(runKey, StatusReady)
		updated, err := hooks.Process(command, context, lifecycle.TaskPreProcessingCompleted, kv.Clone(), t, t.ID(), nil, log)
		if err != nil {
			return updated, err
		}
		kv = updated
	}

	status, _ := kv.Get(runKey)
	if status != StatusReady {
		log.Warning(fmt.Sprintf("task %q appears to have been previously validated and/or executed for command %q in context %q", t.ID(), command, context))
		return kv, nil
	}
	if !execute {
		return kv, nil
	}

	updated, execErr := runTask(p, t, command, context, kv, persistence, hooks, log)
	if execErr == nil {
		return updated, nil
	}
	kv = updated
	log.Error(fmt.Sprintf("task %q processing failed: %v", t.ID(), execErr))
	kv.Save(runKey, StatusFailed)
	afterError, err := hooks.Process(command, context, lifecycle.TaskPreProcessingCompletedError, kv.Clone(), t, t.ID(), nil, log)
	if err != nil {
		return afterError, err
	}
	return afterError, nil
}

// runTask performs the guarded execution sequence; the caller records
// StatusFailed when it returns an error.
func runTask(
	p TaskProcessor,
	t *task.Task,
	command, context string,
	kv *kvstore.KeyValueStore,
	persistence state.Persistence,
	hooks *hook.Hooks,
	log logging.Logger,
) (*kvstore.KeyValueStore, error) {
	runKey := RunKey(t.ID(), command, context)

	updated, err := hooks.Process(command, context, lifecycle.TaskProcessingPreStart, kv.Clone(), t, t.ID(), nil, log)
	if err != nil {
		return kv, err
	}
	kv = updated

	result, err := p.ProcessTask(t, command, context, kv.Clone(), persistence)
	if err != nil {
		return kv, err
	}
	if result != nil {
		kv = result
	}
	kv.Save(runKey, StatusDone)

	updated, err = hooks.Process(command, context, lifecycle.TaskPreProcessingCompleted, kv.Clone(), t, t.ID(), nil, log)
	if err != nil {
		return kv, err
	}
	return updated, nil
}
