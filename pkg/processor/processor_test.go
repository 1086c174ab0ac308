// Copyright Contributors to the Opus project

package processor

import (
	"errors"
	"testing"

	"github.com/nicc777/opus/pkg/hook"
	"github.com/nicc777/opus/pkg/kvstore"
	"github.com/nicc777/opus/pkg/lifecycle"
	"github.com/nicc777/opus/pkg/logging"
	"github.com/nicc777/opus/pkg/state"
	"github.com/nicc777/opus/pkg/task"
)

type fakeProcessor struct {
	kind     string
	versions []string
	commands []string
	calls    int
	fail     error
	process  func(kv *kvstore.KeyValueStore) *kvstore.KeyValueStore
}

func (f *fakeProcessor) Kind() string                { return f.kind }
func (f *fakeProcessor) Versions() []string          { return f.versions }
func (f *fakeProcessor) SupportedCommands() []string { return f.commands }

func (f *fakeProcessor) ProcessTask(_ *task.Task, _, _ string, kv *kvstore.KeyValueStore, _ state.Persistence) (*kvstore.KeyValueStore, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	if f.process != nil {
		return f.process(kv), nil
	}
	return kv, nil
}

func newFake() *fakeProcessor {
	return &fakeProcessor{kind: "TestKind", versions: []string{"v1"}, commands: []string{"apply"}}
}

func newNamedTask(t *testing.T, name string) *task.Task {
	t.Helper()
	tk, err := task.New("TestKind", "v1", nil, map[string]any{
		"identifiers": []any{map[string]any{"type": "ManifestName", "key": name}},
	}, nil)
	if err != nil {
		t.Fatalf("task.New() error = %v", err)
	}
	return tk
}

func TestExecutorID(t *testing.T) {
	p := &fakeProcessor{kind: "K", versions: []string{"v1", "v2"}}
	if got := ExecutorID(p); got != "K:v1:v2" {
		t.Errorf("ExecutorID() = %q, want %q", got, "K:v1:v2")
	}
	if got := VersionID("K", "v2"); got != "K:v2" {
		t.Errorf("VersionID() = %q, want %q", got, "K:v2")
	}
}

func TestPreProcessingCheckWithoutExecute(t *testing.T) {
	p := newFake()
	tk := newNamedTask(t, "a")
	kv, err := PreProcessingCheck(p, tk, "apply", "default", kvstore.New(), false, state.NewInMemory(nil), hook.NewHooks(), nil)
	if err != nil {
		t.Fatalf("PreProcessingCheck() error = %v", err)
	}
	if value, _ := kv.Get(RunKey("a", "apply", "default")); value != StatusReady {
		t.Errorf("run key = %v, want StatusReady", value)
	}
	if p.calls != 0 {
		t.Errorf("processor calls = %d, want 0", p.calls)
	}
}

func TestPreProcessingCheckExecutesOnce(t *testing.T) {
	p := newFake()
	tk := newNamedTask(t, "a")
	hooks := hook.NewHooks()

	kv, err := PreProcessingCheck(p, tk, "apply", "default", kvstore.New(), true, state.NewInMemory(nil), hooks, nil)
	if err != nil {
		t.Fatalf("PreProcessingCheck() error = %v", err)
	}
	if value, _ := kv.Get(RunKey("a", "apply", "default")); value != StatusDone {
		t.Errorf("run key = %v, want StatusDone", value)
	}
	if p.calls != 1 {
		t.Errorf("processor calls = %d, want 1", p.calls)
	}

	// A second pass finds StatusDone and is a no-op.
	kv, err = PreProcessingCheck(p, tk, "apply", "default", kv, true, state.NewInMemory(nil), hooks, nil)
	if err != nil {
		t.Fatalf("second PreProcessingCheck() error = %v", err)
	}
	if p.calls != 1 {
		t.Errorf("processor calls after rerun = %d, want 1", p.calls)
	}
	if value, _ := kv.Get(RunKey("a", "apply", "default")); value != StatusDone {
		t.Errorf("run key after rerun = %v, want StatusDone", value)
	}
}

func TestPreProcessingCompletedFiresTwice(t *testing.T) {
	p := newFake()
	tk := newNamedTask(t, "a")
	hooks := hook.NewHooks()
	completed := 0
	preStart := 0
	hooks.Register(hook.New("counter", nil, nil,
		lifecycle.NewStages(lifecycle.TaskPreProcessingCompleted, lifecycle.TaskProcessingPreStart),
		func(_ string, _ *task.Task, kv *kvstore.KeyValueStore, _, _ string, stage lifecycle.Stage, _ map[string]any, _ logging.Logger) (*kvstore.KeyValueStore, error) {
			switch stage {
			case lifecycle.TaskPreProcessingCompleted:
				completed++
			case lifecycle.TaskProcessingPreStart:
				preStart++
			}
			return kv, nil
		}, nil))

	_, err := PreProcessingCheck(p, tk, "apply", "default", kvstore.New(), true, state.NewInMemory(nil), hooks, nil)
	if err != nil {
		t.Fatalf("PreProcessingCheck() error = %v", err)
	}
	if completed != 2 {
		t.Errorf("TASK_PRE_PROCESSING_COMPLETED fired %d times, want 2", completed)
	}
	if preStart != 1 {
		t.Errorf("TASK_PROCESSING_PRE_START fired %d times, want 1", preStart)
	}
}

func TestProcessorFailureRecordsFailedStatus(t *testing.T) {
	p := newFake()
	p.fail = errors.New("processor exploded")
	tk := newNamedTask(t, "a")
	hooks := hook.NewHooks()
	errorFired := false
	hooks.Register(hook.New("benign-error-hook", nil, nil,
		lifecycle.NewStages(lifecycle.TaskPreProcessingCompletedError),
		func(_ string, _ *task.Task, kv *kvstore.KeyValueStore, _, _ string, _ lifecycle.Stage, _ map[string]any, _ logging.Logger) (*kvstore.KeyValueStore, error) {
			errorFired = true
			return kv, nil
		}, nil))

	kv, err := PreProcessingCheck(p, tk, "apply", "default", kvstore.New(), true, state.NewInMemory(nil), hooks, nil)
	if err != nil {
		t.Fatalf("PreProcessingCheck() error = %v (benign error hook must swallow)", err)
	}
	if value, _ := kv.Get(RunKey("a", "apply", "default")); value != StatusFailed {
		t.Errorf("run key = %v, want StatusFailed", value)
	}
	if !errorFired {
		t.Error("TASK_PRE_PROCESSING_COMPLETED_ERROR hook did not fire")
	}
}

func TestProcessorFailureWithDefaultHookAborts(t *testing.T) {
	p := newFake()
	p.fail = errors.New("processor exploded")
	tk := newNamedTask(t, "a")
	hooks := hook.NewHooks()
	hooks.Register(hook.NewDefaultErrorHook(lifecycle.TaskPreProcessingCompletedError, nil))

	kv, err := PreProcessingCheck(p, tk, "apply", "default", kvstore.New(), true, state.NewInMemory(nil), hooks, nil)
	if !errors.Is(err, hook.ErrHookProcessingFailed) {
		t.Fatalf("PreProcessingCheck() error = %v, want ErrHookProcessingFailed", err)
	}
	if value, _ := kv.Get(RunKey("a", "apply", "default")); value != StatusFailed {
		t.Errorf("run key = %v, want StatusFailed", value)
	}
}
