// Copyright Contributors to the Opus project

package identifier

import (
	"fmt"

	"github.com/nicc777/opus/internal/canonjson"
)

// Identifiers is an insertion-ordered collection of Identifier values,
// deduplicated by UniqueID.
type Identifiers struct {
	items []*Identifier
}

// NewIdentifiers returns a collection seeded with the given identifiers.
func NewIdentifiers(items ...*Identifier) *Identifiers {
	c := &Identifiers{}
	for _, item := range items {
		c.Add(item)
	}
	return c
}

// Add appends an identifier unless one with the same UniqueID is present.
func (c *Identifiers) Add(item *Identifier) {
	if item == nil {
		return
	}
	uid := item.UniqueID()
	for _, existing := range c.items {
		if existing.UniqueID() == uid {
			return
		}
	}
	c.items = append(c.items, item)
}

// Len returns the number of identifiers in the collection.
func (c *Identifiers) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// List returns the identifiers in insertion order.
func (c *Identifiers) List() []*Identifier {
	if c == nil {
		return nil
	}
	out := make([]*Identifier, len(c.items))
	copy(out, c.items)
	return out
}

// Found reports whether any member satisfies the strict equality test
// against the provided identifier.
func (c *Identifiers) Found(item *Identifier) bool {
	if c == nil {
		return false
	}
	for _, existing := range c.items {
		if existing.Equals(item) {
			return true
		}
	}
	return false
}

// MatchesAnyContext is the short-circuit disjunction of
// Identifier.MatchesAnyContext over the members.
func (c *Identifiers) MatchesAnyContext(identifierType, key string, val *string, target *Contexts) bool {
	if c == nil {
		return false
	}
	for _, existing := range c.items {
		if existing.MatchesAnyContext(identifierType, key, val, target) {
			return true
		}
	}
	return false
}

// UniqueID returns the SHA-256 over the canonical metadata form of the
// collection.
func (c *Identifiers) UniqueID() string {
	hash, err := canonjson.Hash(c.ToMetadataMap())
	if err != nil {
		panic(fmt.Sprintf("identifiers hash: %v", err))
	}
	return hash
}

// ToMetadataMap converts the collection back to the manifest metadata
// shape: non-contextual members under "identifiers", contextual members
// under "contextualIdentifiers" with their contexts grouped by type.
func (c *Identifiers) ToMetadataMap() map[string]any {
	metadata := make(map[string]any)
	if c == nil {
		return metadata
	}
	for _, item := range c.items {
		entry := map[string]any{
			"type": item.Type(),
			"key":  item.Key(),
		}
		if val, ok := item.Value(); ok {
			entry["val"] = val
		}
		if item.IsContextual() {
			var contextTypes []string
			namesByType := make(map[string][]any)
			for _, ctx := range item.Contexts().List() {
				if _, seen := namesByType[ctx.Type]; !seen {
					contextTypes = append(contextTypes, ctx.Type)
				}
				namesByType[ctx.Type] = append(namesByType[ctx.Type], ctx.Name)
			}
			contexts := make([]any, 0, len(contextTypes))
			for _, contextType := range contextTypes {
				contexts = append(contexts, map[string]any{
					"type":  contextType,
					"names": namesByType[contextType],
				})
			}
			entry["contexts"] = contexts
			existing, _ := metadata["contextualIdentifiers"].([]any)
			metadata["contextualIdentifiers"] = append(existing, any(entry))
		} else {
			existing, _ := metadata["identifiers"].([]any)
			metadata["identifiers"] = append(existing, any(entry))
		}
	}
	return metadata
}
