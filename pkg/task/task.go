// Copyright Contributors to the Opus project

// Package task implements the immutable manifest instance the orchestrator
// schedules: kind, version, spec and metadata, with derived identifiers,
// dependencies, annotations, checksum and stable id.
package task

import (
	"fmt"
	"strings"

	"github.com/nicc777/opus/internal/canonjson"
	"github.com/nicc777/opus/pkg/identifier"
	"github.com/nicc777/opus/pkg/kvstore"
	"github.com/nicc777/opus/pkg/logging"
)

// Task is a single declarative manifest instance. All derived values are
// fixed at construction; the struct has no mutating methods.
type Task struct {
	kind         string
	version      string
	spec         map[string]any
	metadata     map[string]any
	identifiers  *identifier.Identifiers
	annotations  map[string]string
	dependencies []*identifier.Identifier
	checksum     string
	id           string
	persistable  bool
	log          logging.Logger
}

// New builds a Task from an already-parsed manifest. Top-level and nested
// mapping keys of spec and metadata are lowercased (lists are not
// descended). Malformed metadata entries are skipped rather than failing
// the build; only serialization failures return an error.
func New(kind, version string, spec, metadata map[string]any, log logging.Logger) (*Task, error) {
	t := &Task{
		kind:        kind,
		version:     version,
		identifiers: identifier.FromMetadata(metadata),
		annotations: make(map[string]string),
		log:         logging.OrDiscard(log),
	}
	t.metadata = keysToLower(metadata)
	t.spec = keysToLower(spec)
	t.registerAnnotations()
	t.registerDependencies()
	checksum, err := canonjson.Hash(t.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum for task kind %q: %w", kind, err)
	}
	t.checksum = checksum
	t.id = t.determineID()
	t.log.Info(fmt.Sprintf("task %q initialized, checksum %s", t.id, t.checksum))
	return t, nil
}

// keysToLower returns a copy of data with every mapping key lowercased,
// recursively for nested mappings. Lists are copied but not descended.
func keysToLower(data map[string]any) map[string]any {
	result := make(map[string]any, len(data))
	for key, value := range data {
		if nested, ok := value.(map[string]any); ok {
			result[strings.ToLower(key)] = keysToLower(nested)
			continue
		}
		result[strings.ToLower(key)] = kvstore.DeepCopyValue(value)
	}
	return result
}

func (t *Task) registerAnnotations() {
	raw, ok := t.metadata["annotations"].(map[string]any)
	if !ok {
		return
	}
	for key, value := range raw {
		t.annotations[key] = fmt.Sprintf("%v", value)
	}
}

func (t *Task) registerDependencies() {
	raw, ok := t.metadata["dependencies"].([]any)
	if !ok {
		return
	}
	for _, rawDependency := range raw {
		dependency, ok := rawDependency.(map[string]any)
		if !ok {
			continue
		}
		// Entries inside the list keep their original casing: only
		// mappings are lowercased, lists are not descended.
		identifierType, typeOK := dependency["identifierType"].(string)
		references, refsOK := dependency["identifiers"].([]any)
		if !typeOK || !refsOK {
			continue
		}
		for _, rawReference := range references {
			reference, ok := rawReference.(map[string]any)
			if !ok {
				continue
			}
			key, ok := reference["key"].(string)
			if !ok {
				continue
			}
			switch identifierType {
			case identifier.TypeManifestName:
				t.dependencies = append(t.dependencies, identifier.New(identifier.TypeManifestName, key, nil, nil))
			case identifier.TypeLabel:
				value, ok := reference["value"].(string)
				if !ok {
					continue
				}
				t.dependencies = append(t.dependencies, identifier.New(identifier.TypeLabel, key, identifier.Val(value), nil))
			}
		}
	}
}

func (t *Task) determineID() string {
	id := t.checksum
	for _, item := range t.identifiers.List() {
		if item.IsContextual() {
			continue
		}
		if item.Type() == identifier.TypeManifestName && len(item.Key()) > 0 {
			id = item.Key()
			t.persistable = true
		}
	}
	if !t.persistable {
		t.log.Warning(fmt.Sprintf("task %q is not a named task and can therefore not be persisted", id))
	}
	return id
}

// Kind returns the manifest kind.
func (t *Task) Kind() string {
	return t.kind
}

// Version returns the manifest version.
func (t *Task) Version() string {
	return t.version
}

// Spec returns a deep copy of the (lowercased) spec mapping.
func (t *Task) Spec() map[string]any {
	return kvstore.DeepCopyValue(t.spec).(map[string]any)
}

// Metadata returns a deep copy of the (lowercased) metadata mapping.
func (t *Task) Metadata() map[string]any {
	return kvstore.DeepCopyValue(t.metadata).(map[string]any)
}

// Identifiers returns the identifier collection derived from metadata.
func (t *Task) Identifiers() *identifier.Identifiers {
	return t.identifiers
}

// Annotations returns a copy of the stringified annotation mapping.
func (t *Task) Annotations() map[string]string {
	out := make(map[string]string, len(t.annotations))
	for key, value := range t.annotations {
		out[key] = value
	}
	return out
}

// Dependencies returns the dependency identifiers in metadata order.
func (t *Task) Dependencies() []*identifier.Identifier {
	out := make([]*identifier.Identifier, len(t.dependencies))
	copy(out, t.dependencies)
	return out
}

// Checksum returns the SHA-256 over the canonical manifest encoding.
func (t *Task) Checksum() string {
	return t.checksum
}

// ID returns the stable task id: the ManifestName key when the task is
// named, else the checksum.
func (t *Task) ID() string {
	return t.id
}

// CanBePersisted reports whether the task id came from a ManifestName.
func (t *Task) CanBePersisted() bool {
	return t.persistable
}

// AsMap returns the manifest as a mapping of kind, version and the
// non-empty metadata and spec. This is the checksum input document.
func (t *Task) AsMap() map[string]any {
	data := map[string]any{
		"kind":    t.kind,
		"version": t.version,
	}
	if len(t.metadata) > 0 {
		data["metadata"] = kvstore.DeepCopyValue(t.metadata)
	}
	if len(t.spec) > 0 {
		data["spec"] = kvstore.DeepCopyValue(t.spec)
	}
	return data
}

// MatchName reports whether the given name matches this task's
// ManifestName identifier.
func (t *Task) MatchName(name string) bool {
	return t.identifiers.MatchesAnyContext(identifier.TypeManifestName, name, nil, nil)
}

// MatchLabel reports whether the given label pair matches any of this
// task's Label identifiers.
func (t *Task) MatchLabel(key, value string) bool {
	return t.identifiers.MatchesAnyContext(identifier.TypeLabel, key, identifier.Val(value), nil)
}
