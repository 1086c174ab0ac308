// Copyright Contributors to the Opus project

package identifier

import (
	"fmt"

	"github.com/nicc777/opus/internal/canonjson"
)

// Identifier is a typed (type, key, val?, contexts) match token. An
// identifier is contextual iff its context collection is non-empty.
type Identifier struct {
	identifierType string
	key            string
	val            *string
	contexts       *Contexts
}

// Val wraps a string as an optional identifier value.
func Val(s string) *string {
	return &s
}

// New returns an Identifier. A nil val means the identifier carries no
// value; a nil contexts means the identifier is non-contextual.
func New(identifierType, key string, val *string, contexts *Contexts) *Identifier {
	if contexts == nil {
		contexts = NewContexts()
	}
	return &Identifier{
		identifierType: identifierType,
		key:            key,
		val:            val,
		contexts:       contexts,
	}
}

// Type returns the identifier type.
func (i *Identifier) Type() string {
	return i.identifierType
}

// Key returns the identifier key.
func (i *Identifier) Key() string {
	return i.key
}

// Value returns the identifier value and whether one is set.
func (i *Identifier) Value() (string, bool) {
	if i.val == nil {
		return "", false
	}
	return *i.val, true
}

// Contexts returns the identifier's context collection.
func (i *Identifier) Contexts() *Contexts {
	return i.contexts
}

// IsContextual reports whether the identifier carries any contexts.
func (i *Identifier) IsContextual() bool {
	return !i.contexts.IsEmpty()
}

// UniqueID returns the SHA-256 over the canonical serialization of the
// identifier. It is a pure function of current state.
func (i *Identifier) UniqueID() string {
	doc := canonjson.Doc{
		{Key: "IdentifierType", Value: i.identifierType},
		{Key: "IdentifierKey", Value: i.key},
	}
	if i.val != nil {
		doc = append(doc, canonjson.Field{Key: "IdentifierValue", Value: *i.val})
	}
	doc = append(doc, canonjson.Field{Key: "IdentifierContexts", Value: i.contexts.ToDoc()})
	hash, err := canonjson.Hash(doc)
	if err != nil {
		panic(fmt.Sprintf("identifier hash: %v", err))
	}
	return hash
}

// ToDoc returns the canonical serializable form of the identifier.
func (i *Identifier) ToDoc() canonjson.Doc {
	doc := canonjson.Doc{
		{Key: "IdentifierType", Value: i.identifierType},
		{Key: "IdentifierKey", Value: i.key},
	}
	if i.val != nil {
		doc = append(doc, canonjson.Field{Key: "IdentifierValue", Value: *i.val})
	}
	doc = append(doc, canonjson.Field{Key: "IdentifierContexts", Value: i.contexts.ToDoc()})
	doc = append(doc, canonjson.Field{Key: "UniqueId", Value: i.UniqueID()})
	return doc
}

func valEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MatchesAnyContext reports whether the scalar triple matches and the
// context rule holds: when either side carries no contexts the scalar
// match alone decides; otherwise at least one of the target contexts must
// be present in this identifier's contexts.
func (i *Identifier) MatchesAnyContext(identifierType, key string, val *string, target *Contexts) bool {
	if i.identifierType != identifierType || i.key != key || !valEqual(i.val, val) {
		return false
	}
	if i.contexts.IsEmpty() || target.IsEmpty() {
		return true
	}
	for _, ctx := range target.List() {
		if i.contexts.Contains(ctx) {
			return true
		}
	}
	return false
}

// Equals is the strict form used for registry checks: type, key and val
// must all be equal, and the contexts must either both be empty or share
// at least one member.
func (i *Identifier) Equals(other *Identifier) bool {
	if other == nil {
		return false
	}
	if i.identifierType != other.identifierType {
		return false
	}
	if i.key != other.key || !valEqual(i.val, other.val) {
		return false
	}
	if i.contexts.IsEmpty() && other.contexts.IsEmpty() {
		return true
	}
	for _, ctx := range other.contexts.List() {
		if i.contexts.Contains(ctx) {
			return true
		}
	}
	return false
}
