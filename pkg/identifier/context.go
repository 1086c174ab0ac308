// Copyright Contributors to the Opus project

// Package identifier implements the typed match tokens attached to tasks
// and the matching algebra the scheduler is built on.
package identifier

import (
	"fmt"

	"github.com/nicc777/opus/internal/canonjson"
)

// Identifier types and keys with orchestration meaning. The data model is
// open: any other type is stored but ignored by scheduling.
const (
	// TypeManifestName names a task. A task carrying one becomes
	// persistable and the name becomes the task id.
	TypeManifestName = "ManifestName"
	// TypeLabel attaches a key/value label pair to a task.
	TypeLabel = "Label"
	// TypeExecutionScope constrains the commands and environments a task
	// will be processed under.
	TypeExecutionScope = "ExecutionScope"

	// ContextCommand is the context dimension naming a command.
	ContextCommand = "Command"
	// ContextEnvironment is the context dimension naming an environment.
	ContextEnvironment = "Environment"

	// KeyInclude marks an ExecutionScope identifier that restricts
	// processing to the listed commands/environments.
	KeyInclude = "INCLUDE"
	// KeyExclude marks an ExecutionScope identifier that blocks processing
	// for the listed commands/environments.
	KeyExclude = "EXCLUDE"
	// KeyProcessing marks the query identifier built at run time for the
	// current command and environment pair.
	KeyProcessing = "processing"
)

// Context is a named (type, name) tuple attached to an identifier,
// commonly Command or Environment.
type Context struct {
	Type string
	Name string
}

// NewContext returns a Context for the given type and name.
func NewContext(contextType, contextName string) Context {
	return Context{Type: contextType, Name: contextName}
}

// String returns the canonical "<type>:<name>" form.
func (c Context) String() string {
	return fmt.Sprintf("%s:%s", c.Type, c.Name)
}

// Equals reports whether both the type and the name match.
func (c Context) Equals(other Context) bool {
	return c.Type == other.Type && c.Name == other.Name
}

func (c Context) toDoc() canonjson.Doc {
	return canonjson.Doc{
		{Key: "ContextType", Value: c.Type},
		{Key: "ContextName", Value: c.Name},
	}
}

// Contexts is an insertion-ordered collection of unique Context values.
// Duplicates are silently dropped on add.
type Contexts struct {
	contexts []Context
}

// NewContexts returns a collection seeded with the given contexts.
func NewContexts(contexts ...Context) *Contexts {
	c := &Contexts{}
	for _, ctx := range contexts {
		c.Add(ctx)
	}
	return c
}

// Add appends a context unless an equal one is already present.
func (c *Contexts) Add(ctx Context) {
	for _, existing := range c.contexts {
		if existing.Equals(ctx) {
			return
		}
	}
	c.contexts = append(c.contexts, ctx)
}

// IsEmpty reports whether the collection holds no contexts.
func (c *Contexts) IsEmpty() bool {
	return c == nil || len(c.contexts) == 0
}

// Len returns the number of contexts in the collection.
func (c *Contexts) Len() int {
	if c == nil {
		return 0
	}
	return len(c.contexts)
}

// Contains reports whether an equal context is part of the collection.
func (c *Contexts) Contains(target Context) bool {
	if c == nil {
		return false
	}
	for _, existing := range c.contexts {
		if existing.Equals(target) {
			return true
		}
	}
	return false
}

// List returns the contexts in insertion order.
func (c *Contexts) List() []Context {
	if c == nil {
		return nil
	}
	out := make([]Context, len(c.contexts))
	copy(out, c.contexts)
	return out
}

// UniqueID returns the SHA-256 over the canonical serialization of the
// current contexts. It is recomputed from current state on every call, so
// mutation can never leave a stale value.
func (c *Contexts) UniqueID() string {
	docs := make([]canonjson.Doc, 0, c.Len())
	if c != nil {
		for _, ctx := range c.contexts {
			docs = append(docs, ctx.toDoc())
		}
	}
	hash, err := canonjson.Hash(docs)
	if err != nil {
		// The document is built from plain strings; encoding cannot fail.
		panic(fmt.Sprintf("contexts hash: %v", err))
	}
	return hash
}

// ToDoc returns the canonical serializable form of the collection.
func (c *Contexts) ToDoc() canonjson.Doc {
	docs := make([]canonjson.Doc, 0, c.Len())
	if c != nil {
		for _, ctx := range c.contexts {
			docs = append(docs, ctx.toDoc())
		}
	}
	return canonjson.Doc{
		{Key: "IdentifierContexts", Value: docs},
		{Key: "UniqueId", Value: c.UniqueID()},
	}
}

// Clone returns an independent copy of the collection.
func (c *Contexts) Clone() *Contexts {
	clone := &Contexts{}
	if c != nil {
		clone.contexts = make([]Context, len(c.contexts))
		copy(clone.contexts, c.contexts)
	}
	return clone
}
