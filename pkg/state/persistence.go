// Copyright Contributors to the Opus project

// Package state defines the persistence capability the orchestration core
// calls to load and store per-object state, plus the default in-memory
// backend and a JSON file backend.
package state

import (
	"sync"

	"github.com/nicc777/opus/pkg/kvstore"
	"github.com/nicc777/opus/pkg/logging"
)

// Persistence is the capability for persisting per-object state keyed by
// string. The orchestrator calls PersistAllState after every processed
// task; processors may read and write object state at will.
type Persistence interface {
	// RetrieveAllState reloads the cache from the backing store. It
	// returns false when the backend holds nothing or reloading is not
	// supported.
	RetrieveAllState() (bool, error)
	// GetObjectState returns the state stored under the identifier. When
	// the identifier is unknown and refreshIfMissing is true, the cache is
	// reloaded once before the second (and final) lookup. A missing
	// object yields an empty map.
	GetObjectState(objectIdentifier string, refreshIfMissing bool) map[string]any
	// SaveObjectState caches the data under the identifier.
	SaveObjectState(objectIdentifier string, data map[string]any)
	// PersistAllState writes the full cache to the backing store.
	PersistAllState() error
}

// InMemory is the default Persistence: a runtime cache with no long-term
// backend.
type InMemory struct {
	log   logging.Logger
	mu    sync.Mutex
	cache map[string]map[string]any
}

// NewInMemory returns an in-memory Persistence.
func NewInMemory(log logging.Logger) *InMemory {
	return &InMemory{
		log:   logging.OrDiscard(log),
		cache: make(map[string]map[string]any),
	}
}

// RetrieveAllState is a no-op for the in-memory backend.
func (p *InMemory) RetrieveAllState() (bool, error) {
	p.log.Warning("state: in-memory persistence has no backing store to retrieve from")
	return false, nil
}

// GetObjectState returns a deep copy of the cached state for the
// identifier, or an empty map when unknown. The in-memory backend has
// nothing to refresh from, so refreshIfMissing has no effect here.
func (p *InMemory) GetObjectState(objectIdentifier string, _ bool) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if data, ok := p.cache[objectIdentifier]; ok {
		return copyState(data)
	}
	return map[string]any{}
}

// SaveObjectState caches a deep copy of data under the identifier.
func (p *InMemory) SaveObjectState(objectIdentifier string, data map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[objectIdentifier] = copyState(data)
}

// PersistAllState is a no-op for the in-memory backend.
func (p *InMemory) PersistAllState() error {
	p.log.Warning("state: in-memory persistence has no backing store to persist to")
	return nil
}

// Snapshot returns a deep copy of the full cache. Backing implementations
// embed InMemory and use this when flushing.
func (p *InMemory) Snapshot() map[string]map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := make(map[string]map[string]any, len(p.cache))
	for key, data := range p.cache {
		snapshot[key] = copyState(data)
	}
	return snapshot
}

// Replace swaps the full cache content for the provided snapshot.
func (p *InMemory) Replace(snapshot map[string]map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]map[string]any, len(snapshot))
	for key, data := range snapshot {
		p.cache[key] = copyState(data)
	}
}

func copyState(data map[string]any) map[string]any {
	return kvstore.DeepCopyValue(data).(map[string]any)
}
