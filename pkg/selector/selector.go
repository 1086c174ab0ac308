// Copyright Contributors to the Opus project

// Package selector evaluates CEL expressions against task attributes so
// callers can narrow a manifest set before registration.
package selector

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/nicc777/opus/pkg/identifier"
	"github.com/nicc777/opus/pkg/task"
)

// Selector evaluates CEL expressions against tasks.
type Selector struct {
	// cache stores compiled CEL programs keyed by expression
	cache sync.Map
}

// New creates a new Selector.
func New() *Selector {
	return &Selector{}
}

// compiledProgram holds a compiled CEL program and its environment.
type compiledProgram struct {
	program cel.Program
	env     *cel.Env
}

// Matches evaluates a CEL expression against the task's attributes.
// Returns true if the expression evaluates to true, false otherwise.
// If the expression is empty, returns true (no selector means accept all).
func (s *Selector) Matches(expression string, t *task.Task) (bool, error) {
	if expression == "" {
		return true, nil
	}

	prog, err := s.getOrCompile(expression)
	if err != nil {
		return false, fmt.Errorf("failed to compile CEL expression: %w", err)
	}

	result, _, err := prog.program.Eval(map[string]interface{}{
		"kind":        t.Kind(),
		"version":     t.Version(),
		"id":          t.ID(),
		"labels":      taskLabels(t),
		"annotations": t.Annotations(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	if result.Type() != types.BoolType {
		return false, fmt.Errorf("CEL expression must return bool, got %s", result.Type())
	}
	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression result is not a bool")
	}
	return boolVal, nil
}

// getOrCompile returns a cached compiled program or compiles a new one.
func (s *Selector) getOrCompile(expression string) (*compiledProgram, error) {
	if cached, ok := s.cache.Load(expression); ok {
		prog, ok := cached.(*compiledProgram)
		if !ok {
			return nil, fmt.Errorf("invalid cached program type")
		}
		return prog, nil
	}

	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		// Allow dynamic types that might resolve to bool at runtime
		if ast.OutputType() != cel.DynType {
			return nil, fmt.Errorf("CEL expression must return bool, got %s", ast.OutputType())
		}
	}

	program, err := env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	compiled := &compiledProgram{
		program: program,
		env:     env,
	}
	s.cache.Store(expression, compiled)

	return compiled, nil
}

// ClearCache clears the compiled program cache.
func (s *Selector) ClearCache() {
	s.cache = sync.Map{}
}

// ValidateExpression validates a CEL expression without evaluating it.
// Returns nil if the expression is valid, an error otherwise.
func ValidateExpression(expression string) error {
	if expression == "" {
		return nil
	}

	env, err := newEnv()
	if err != nil {
		return fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return fmt.Errorf("CEL expression must return bool, got %s", ast.OutputType())
	}

	return nil
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("version", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("labels", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("annotations", cel.MapType(cel.StringType, cel.StringType)),
	)
}

// taskLabels collects the task's non-contextual Label identifiers as a
// key/value map.
func taskLabels(t *task.Task) map[string]string {
	labels := make(map[string]string)
	for _, item := range t.Identifiers().List() {
		if item.Type() != identifier.TypeLabel || item.IsContextual() {
			continue
		}
		if value, ok := item.Value(); ok {
			labels[item.Key()] = value
		}
	}
	return labels
}
