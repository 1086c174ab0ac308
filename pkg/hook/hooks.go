// Copyright Contributors to the Opus project

package hook

import (
	"errors"
	"fmt"

	"github.com/nicc777/opus/pkg/kvstore"
	"github.com/nicc777/opus/pkg/lifecycle"
	"github.com/nicc777/opus/pkg/logging"
	"github.com/nicc777/opus/pkg/task"
)

// Extra parameter keys used when error-stage hooks are fired for a failed
// success-stage hook.
const (
	// ExtraTraceback carries the original error value.
	ExtraTraceback = "Traceback"
	// ExtraExceptionMessage carries the failure description.
	ExtraExceptionMessage = "ExceptionMessage"
)

// ErrHookProcessingFailed is returned by Hooks.Process after any hook in
// the dispatch failed.
var ErrHookProcessingFailed = errors.New("Hook processing failed. Aborting.")

// Hooks is a registry of hooks deduplicated by name: a second registration
// under an existing name is silently ignored, so the first hook for a
// given name wins.
type Hooks struct {
	order  []string
	byName map[string]*Hook
}

// NewHooks returns an empty registry.
func NewHooks() *Hooks {
	return &Hooks{byName: make(map[string]*Hook)}
}

// Register adds a hook unless its name is already taken.
func (h *Hooks) Register(hk *Hook) {
	if hk == nil {
		return
	}
	if _, exists := h.byName[hk.Name()]; exists {
		return
	}
	h.byName[hk.Name()] = hk
	h.order = append(h.order, hk.Name())
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	return len(h.order)
}

// Get returns the hook registered under name, or nil.
func (h *Hooks) Get(name string) *Hook {
	return h.byName[name]
}

func (h *Hooks) matching(command, context string, stage lifecycle.Stage) []*Hook {
	var matched []*Hook
	for _, name := range h.order {
		if hk := h.byName[name]; hk.Applies(command, context, stage) {
			matched = append(matched, hk)
		}
	}
	return matched
}

// AnyHookExists reports whether at least one hook applies to the triple.
func (h *Hooks) AnyHookExists(command, context string, stage lifecycle.Stage) bool {
	for _, name := range h.order {
		if h.byName[name].Applies(command, context, stage) {
			return true
		}
	}
	return false
}

// Process dispatches every hook applying to (command, context, stage), in
// registration order, merging each successfully returned store back into
// kv. When a hook fails on a success stage, the matching error-stage hooks
// are fired under the wildcard scope with the failure in the extra
// parameters; their own failure is only logged. Either way a hook failure
// aborts the dispatch with ErrHookProcessingFailed. The returned store
// reflects all merges up to the failure.
func (h *Hooks) Process(
	command, context string,
	stage lifecycle.Stage,
	kv *kvstore.KeyValueStore,
	t *task.Task,
	taskID string,
	extra map[string]any,
	log logging.Logger,
) (*kvstore.KeyValueStore, error) {
	log = logging.OrDiscard(log)
	if kv == nil {
		kv = kvstore.New()
	}
	for _, hk := range h.matching(command, context, stage) {
		log.Debug(fmt.Sprintf("processing hook %q for task %q on stage %q", hk.Name(), taskID, stage.Name()))
		result, err := hk.Process(command, context, stage, kv.Clone(), t, taskID, extra, log)
		if err == nil {
			if result != nil {
				kv.Store = result.Clone().Store
			}
			continue
		}
		if !stage.IsError() {
			message := fmt.Sprintf("hook %q failed during command %q in context %q at stage %q", hk.Name(), command, context, stage.Name())
			log.Error(message)
			errorStage, stageErr := lifecycle.ErrorStage(stage)
			if stageErr == nil {
				errorExtra := map[string]any{
					ExtraTraceback:        err,
					ExtraExceptionMessage: message,
				}
				if _, recurseErr := h.Process(CommandNotApplicable, ContextAll, errorStage, kv.Clone(), t, taskID, errorExtra, log); recurseErr != nil {
					log.Error(fmt.Sprintf("error-stage hook dispatch for stage %q reported: %v", errorStage.Name(), recurseErr))
				}
			}
		} else {
			log.Error(fmt.Sprintf("while processing an error-stage hook, another failure occurred: %v", err))
		}
		return kv, ErrHookProcessingFailed
	}
	return kv, nil
}
