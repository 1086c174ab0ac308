// Copyright Contributors to the Opus project

// Package lifecycle enumerates the task processing lifecycle stages and
// the collections used to bind hooks to them.
package lifecycle

import "fmt"

// Stage is a point in a task's processing journey. Success stages carry
// positive values; each has a mirrored error variant with the negated
// value.
type Stage int

const (
	// TaskPreRegister fires before a task enters the registry.
	TaskPreRegister Stage = 1
	// TaskPreRegisterError is the error variant of TaskPreRegister.
	TaskPreRegisterError Stage = -1
	// TaskRegistered fires once a task is stored in the registry.
	TaskRegistered Stage = 2
	// TaskRegisteredError is the error variant of TaskRegistered.
	TaskRegisteredError Stage = -2
	// TaskPreProcessingStart fires before the processor gate runs.
	TaskPreProcessingStart Stage = 3
	// TaskPreProcessingStartError is the error variant of TaskPreProcessingStart.
	TaskPreProcessingStartError Stage = -3
	// TaskPreProcessingCompleted fires when the gate marks a task ready and
	// again after a successful execution.
	TaskPreProcessingCompleted Stage = 4
	// TaskPreProcessingCompletedError is the error variant of TaskPreProcessingCompleted.
	TaskPreProcessingCompletedError Stage = -4
	// TaskProcessingPreStart fires immediately before the processor runs.
	TaskProcessingPreStart Stage = 5
	// TaskProcessingPreStartError is the error variant of TaskProcessingPreStart.
	TaskProcessingPreStartError Stage = -5
	// TaskProcessingPostDone fires after a task finished processing.
	TaskProcessingPostDone Stage = 6
	// TaskProcessingPostDoneError is the error variant of TaskProcessingPostDone.
	TaskProcessingPostDoneError Stage = -6
)

var stageNames = map[Stage]string{
	TaskPreRegister:                 "TASK_PRE_REGISTER",
	TaskPreRegisterError:            "TASK_PRE_REGISTER_ERROR",
	TaskRegistered:                  "TASK_REGISTERED",
	TaskRegisteredError:             "TASK_REGISTERED_ERROR",
	TaskPreProcessingStart:          "TASK_PRE_PROCESSING_START",
	TaskPreProcessingStartError:     "TASK_PRE_PROCESSING_START_ERROR",
	TaskPreProcessingCompleted:      "TASK_PRE_PROCESSING_COMPLETED",
	TaskPreProcessingCompletedError: "TASK_PRE_PROCESSING_COMPLETED_ERROR",
	TaskProcessingPreStart:          "TASK_PROCESSING_PRE_START",
	TaskProcessingPreStartError:     "TASK_PROCESSING_PRE_START_ERROR",
	TaskProcessingPostDone:          "TASK_PROCESSING_POST_DONE",
	TaskProcessingPostDoneError:     "TASK_PROCESSING_POST_DONE_ERROR",
}

// Name returns the canonical upper-snake name of the stage.
func (s Stage) Name() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_STAGE_%d", int(s))
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	return s.Name()
}

// IsError reports whether the stage is an error variant.
func (s Stage) IsError() bool {
	return s < 0
}

// ErrorStage returns the error variant of a success stage.
func ErrorStage(stage Stage) (Stage, error) {
	if stage.IsError() {
		return 0, fmt.Errorf("stage %q is already an error stage", stage.Name())
	}
	return Stage(-int(stage)), nil
}

// SuccessStages lists all success stages in processing order.
func SuccessStages() []Stage {
	return []Stage{
		TaskPreRegister,
		TaskRegistered,
		TaskPreProcessingStart,
		TaskPreProcessingCompleted,
		TaskProcessingPreStart,
		TaskProcessingPostDone,
	}
}

// ErrorStages lists all error stages.
func ErrorStages() []Stage {
	return []Stage{
		TaskPreRegisterError,
		TaskRegisteredError,
		TaskPreProcessingStartError,
		TaskPreProcessingCompletedError,
		TaskProcessingPreStartError,
		TaskProcessingPostDoneError,
	}
}

// Stages is a collection of Stage values a hook can subscribe to.
type Stages struct {
	stages []Stage
}

// AllStages returns a collection holding every success and error stage.
func AllStages() *Stages {
	s := &Stages{}
	for _, stage := range SuccessStages() {
		s.Register(stage)
	}
	for _, stage := range ErrorStages() {
		s.Register(stage)
	}
	return s
}

// NewStages returns a collection holding only the provided stages.
func NewStages(stages ...Stage) *Stages {
	s := &Stages{}
	for _, stage := range stages {
		s.Register(stage)
	}
	return s
}

// Register adds a stage to the collection. Duplicates are dropped.
func (s *Stages) Register(stage Stage) {
	for _, existing := range s.stages {
		if existing == stage {
			return
		}
	}
	s.stages = append(s.stages, stage)
}

// Registered reports whether the stage is part of the collection.
func (s *Stages) Registered(stage Stage) bool {
	if s == nil {
		return false
	}
	for _, existing := range s.stages {
		if existing == stage {
			return true
		}
	}
	return false
}

// List returns the stages in registration order.
func (s *Stages) List() []Stage {
	out := make([]Stage, len(s.stages))
	copy(out, s.stages)
	return out
}

// Len returns the number of registered stages.
func (s *Stages) Len() int {
	return len(s.stages)
}
