// Copyright Contributors to the Opus project

// Package v1alpha1 contains the manifest wire types accepted by the
// orchestration core.
package v1alpha1

import (
	"fmt"

	"github.com/nicc777/opus/pkg/logging"
	"github.com/nicc777/opus/pkg/task"
)

// Identifier types with orchestration meaning. Other types are stored on
// the task but ignored by scheduling.
const (
	// IdentifierTypeManifestName names a task
	IdentifierTypeManifestName = "ManifestName"
	// IdentifierTypeLabel attaches a label pair to a task
	IdentifierTypeLabel = "Label"
	// IdentifierTypeExecutionScope constrains processing by command/environment
	IdentifierTypeExecutionScope = "ExecutionScope"
)

// Manifest is a single declarative task manifest.
//
// Example:
//
//	kind: HelloWorld
//	version: v1
//	metadata:
//	  identifiers:
//	    - type: ManifestName
//	      key: greeter
//	spec:
//	  file: /tmp/hello.txt
type Manifest struct {
	// Kind selects the processor responsible for this manifest.
	Kind string `json:"kind" yaml:"kind"`

	// Version selects the processor version.
	Version string `json:"version" yaml:"version"`

	// Metadata holds identifiers, contextual identifiers, dependencies
	// and annotations.
	// +optional
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Spec is the processor-specific parameter payload, opaque to the
	// orchestration core.
	// +optional
	Spec map[string]any `json:"spec,omitempty" yaml:"spec,omitempty"`
}

// Validate checks the structural invariants the manifest itself requires.
func (m *Manifest) Validate() error {
	if m.Kind == "" {
		return fmt.Errorf("manifest kind must not be empty")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest version must not be empty")
	}
	return nil
}

// ToTask converts the manifest into an immutable Task instance.
func (m *Manifest) ToTask(log logging.Logger) (*task.Task, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return task.New(m.Kind, m.Version, m.Spec, m.Metadata, log)
}

// ManifestList contains a list of Manifest.
type ManifestList struct {
	Items []Manifest `json:"items" yaml:"items"`
}
