// Copyright Contributors to the Opus project

package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nicc777/opus/pkg/identifier"
	"github.com/nicc777/opus/pkg/lifecycle"
	"github.com/nicc777/opus/pkg/processor"
)

// ProcessContext runs every task qualifying for the (command, environment)
// processing scope, in dependency order. For each task the
// TASK_PRE_PROCESSING_START hooks fire, the matching processor's gate
// executes the task, the persistence backend flushes, and the
// TASK_PROCESSING_POST_DONE hooks fire. Errors from scheduling or from a
// hook abort propagate to the caller; state already written is not rolled
// back.
func (t *Tasks) ProcessContext(command, context string) error {
	scope := identifier.ProcessingScope(command, context)

	order, err := t.CalculateTaskOrder(scope)
	if err != nil {
		return err
	}
	order = dedupeFirstOccurrence(order)

	runID := uuid.NewString()
	ProcessingRuns.WithLabelValues(command, context).Inc()
	t.log.Info(fmt.Sprintf("run %s: processing command %q in context %q, task order: %s", runID, command, context, strings.Join(order, ", ")))

	for _, taskID := range order {
		tk, ok := t.tasks[taskID]
		if !ok {
			continue
		}

		updated, err := t.hooks.Process(command, context, lifecycle.TaskPreProcessingStart, t.kv.Clone(), tk, taskID, nil, t.log)
		if updated != nil {
			t.kv = updated
		}
		if err != nil {
			return err
		}

		executorID, ok := t.register[processor.VersionID(tk.Kind(), tk.Version())]
		if !ok {
			t.log.Warning(fmt.Sprintf("run %s: no processor registered for task %q, skipping", runID, taskID))
			continue
		}
		executor, ok := t.executors[executorID]
		if !ok {
			t.log.Warning(fmt.Sprintf("run %s: executor %q not found for task %q, skipping", runID, executorID, taskID))
			continue
		}

		started := time.Now()
		updated, err = processor.PreProcessingCheck(executor, tk, command, context, t.kv.Clone(), true, t.persistence, t.hooks, t.log)
		TaskProcessingDuration.WithLabelValues(tk.Kind(), command).Observe(time.Since(started).Seconds())
		if updated != nil {
			// Keep the last good state even when the gate aborts: the run
			// markers written so far stay observable (no rollback).
			t.kv = updated
		}
		if err != nil {
			TaskProcessingFailures.WithLabelValues(tk.Kind(), command).Inc()
			return err
		}
		if status, _ := t.kv.Get(processor.RunKey(taskID, command, context)); status == processor.StatusFailed {
			TaskProcessingFailures.WithLabelValues(tk.Kind(), command).Inc()
		}

		if err := t.persistence.PersistAllState(); err != nil {
			t.log.Error(fmt.Sprintf("run %s: failed to persist state after task %q: %v", runID, taskID, err))
		}

		updated, err = t.hooks.Process(command, context, lifecycle.TaskProcessingPostDone, t.kv.Clone(), tk, taskID, nil, t.log)
		if updated != nil {
			t.kv = updated
		}
		if err != nil {
			return err
		}
	}

	t.log.Info(fmt.Sprintf("run %s: completed", runID))
	return nil
}
