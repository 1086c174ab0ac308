// Copyright Contributors to the Opus project

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nicc777/opus/pkg/logging"
)

// File is a Persistence backed by a single JSON document on disk. The
// document maps object identifiers to their state objects. Writes go
// through a temp file followed by a rename so readers never observe a
// partial document.
type File struct {
	*InMemory
	log  logging.Logger
	path string
}

// NewFile returns a file-backed Persistence reading and writing path.
// The initial cache is loaded from the file when it exists.
func NewFile(path string, log logging.Logger) (*File, error) {
	f := &File{
		InMemory: NewInMemory(log),
		log:      logging.OrDiscard(log),
		path:     path,
	}
	if _, err := f.RetrieveAllState(); err != nil {
		return nil, err
	}
	return f, nil
}

// RetrieveAllState reloads the cache from the JSON file. A missing file
// yields an empty cache and no error.
func (f *File) RetrieveAllState() (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.Replace(map[string]map[string]any{})
			return false, nil
		}
		return false, fmt.Errorf("failed to read state file %q: %w", f.path, err)
	}
	var snapshot map[string]map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return false, fmt.Errorf("failed to parse state file %q: %w", f.path, err)
	}
	f.Replace(snapshot)
	return true, nil
}

// GetObjectState returns the state for the identifier, reloading the file
// once when the identifier is unknown and refreshIfMissing is true.
func (f *File) GetObjectState(objectIdentifier string, refreshIfMissing bool) map[string]any {
	data := f.InMemory.GetObjectState(objectIdentifier, false)
	if len(data) > 0 || !refreshIfMissing {
		return data
	}
	if _, err := f.RetrieveAllState(); err != nil {
		f.log.Error(fmt.Sprintf("state: refresh of %q failed: %v", f.path, err))
		return data
	}
	return f.InMemory.GetObjectState(objectIdentifier, false)
}

// PersistAllState writes the full cache to the JSON file.
func (f *File) PersistAllState() error {
	snapshot := f.Snapshot()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".opus-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file %q: %w", f.path, err)
	}
	return nil
}
