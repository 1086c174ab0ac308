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

// AlwaysFail is the default error-event hook callable: it always returns
// an error. When the extra parameters carry the original failure under
// Traceback, that error is returned verbatim; an ExceptionMessage
// replaces the generic message otherwise.
func AlwaysFail(
	hookName string,
	t *task.Task,
	_ *kvstore.KeyValueStore,
	command string,
	context string,
	stage lifecycle.Stage,
	extra map[string]any,
	log logging.Logger,
) (*kvstore.KeyValueStore, error) {
	taskID := "unknown"
	if t != nil {
		taskID = t.ID()
	}
	message := fmt.Sprintf(
		"hook %q forced exception on command %q in context %q for life cycle stage %q in task %q",
		hookName, command, context, stage.Name(), taskID,
	)
	if exceptionMessage, ok := extra[ExtraExceptionMessage].(string); ok {
		logging.OrDiscard(log).Error(message)
		message = exceptionMessage
	}
	if traceback, ok := extra[ExtraTraceback].(error); ok && traceback != nil {
		return nil, traceback
	}
	return nil, errors.New(message)
}

// DefaultErrorHookName returns the name under which the orchestrator
// installs its default hook for an error stage.
func DefaultErrorHookName(stage lifecycle.Stage) string {
	return fmt.Sprintf("DEFAULT_%s_HOOK", stage.Name())
}

// NewDefaultErrorHook builds the always-failing default hook for an error
// stage, wildcard on command and context.
func NewDefaultErrorHook(stage lifecycle.Stage, log logging.Logger) *Hook {
	return New(
		DefaultErrorHookName(stage),
		[]string{CommandNotApplicable},
		[]string{ContextAll},
		lifecycle.NewStages(stage),
		AlwaysFail,
		log,
	)
}
