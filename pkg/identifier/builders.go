// Copyright Contributors to the Opus project

package identifier

// BuildNonContextual extracts the non-contextual identifiers from the
// "identifiers" metadata entry and returns a new collection containing the
// current identifiers plus the extracted ones. Malformed entries are
// skipped rather than failing the build.
//
// The expected shape:
//
//	identifiers:
//	  - type: ManifestName
//	    key: my-manifest
//	  - type: Label
//	    key: my-key
//	    value: my-value
func BuildNonContextual(metadata map[string]any, current *Identifiers) *Identifiers {
	result := NewIdentifiers(current.List()...)
	raw, ok := metadata["identifiers"].([]any)
	if !ok {
		return result
	}
	for _, rawEntry := range raw {
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			continue
		}
		identifierType, typeOK := entry["type"].(string)
		key, keyOK := entry["key"].(string)
		if !typeOK || !keyOK {
			continue
		}
		result.Add(New(identifierType, key, optionalValue(entry), nil))
	}
	return result
}

// BuildContextual extracts the contextual identifiers from the
// "contextualIdentifiers" metadata entry and returns a new collection
// containing the current identifiers plus the extracted ones. Malformed
// entries are skipped.
//
// The expected shape:
//
//	contextualIdentifiers:
//	  - type: ExecutionScope
//	    key: INCLUDE
//	    contexts:
//	      - type: Environment
//	        names: [sandbox, test]
//	      - type: Command
//	        names: [apply, delete]
func BuildContextual(metadata map[string]any, current *Identifiers) *Identifiers {
	result := NewIdentifiers(current.List()...)
	raw, ok := metadata["contextualIdentifiers"].([]any)
	if !ok {
		return result
	}
	for _, rawEntry := range raw {
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			continue
		}
		contexts := NewContexts()
		if rawContexts, ok := entry["contexts"].([]any); ok {
			for _, rawContext := range rawContexts {
				contextEntry, ok := rawContext.(map[string]any)
				if !ok {
					continue
				}
				contextType, typeOK := contextEntry["type"].(string)
				names, namesOK := contextEntry["names"].([]any)
				if !typeOK || !namesOK {
					continue
				}
				for _, rawName := range names {
					if name, ok := rawName.(string); ok {
						contexts.Add(NewContext(contextType, name))
					}
				}
			}
		}
		identifierType, typeOK := entry["type"].(string)
		key, keyOK := entry["key"].(string)
		if !typeOK || !keyOK {
			continue
		}
		result.Add(New(identifierType, key, optionalValue(entry), contexts))
	}
	return result
}

// FromMetadata builds the full identifier collection of a manifest: the
// union of the non-contextual and contextual entries.
func FromMetadata(metadata map[string]any) *Identifiers {
	return BuildContextual(metadata, BuildNonContextual(metadata, NewIdentifiers()))
}

// ProcessingScope builds the query identifier representing the current
// (command, environment) processing request: ExecutionScope/"processing"
// with one Environment and one Command context.
func ProcessingScope(command, environment string) *Identifier {
	contexts := NewContexts(
		NewContext(ContextEnvironment, environment),
		NewContext(ContextCommand, command),
	)
	return New(TypeExecutionScope, KeyProcessing, nil, contexts)
}

// IsProcessingScope reports whether the identifier is the runtime
// processing-scope query built by ProcessingScope.
func IsProcessingScope(i *Identifier) bool {
	return i != nil && i.Type() == TypeExecutionScope && i.Key() == KeyProcessing
}

func optionalValue(entry map[string]any) *string {
	// Manifests accept either "val" or "value"; "value" wins when both are
	// present.
	var val *string
	if s, ok := entry["val"].(string); ok {
		val = Val(s)
	}
	if s, ok := entry["value"].(string); ok {
		val = Val(s)
	}
	return val
}
