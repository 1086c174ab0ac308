// Copyright Contributors to the Opus project

// Package manifest loads task manifests from YAML files.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nicc777/opus/api/v1alpha1"
)

// Load reads one YAML file, which may contain multiple documents, and
// returns the parsed manifests. Empty documents are skipped; any invalid
// manifest fails the load.
func Load(path string) ([]v1alpha1.Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest file %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var manifests []v1alpha1.Manifest
	decoder := yaml.NewDecoder(file)
	for index := 0; ; index++ {
		var m v1alpha1.Manifest
		if err := decoder.Decode(&m); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to parse manifest file %q (document %d): %w", path, index, err)
		}
		if m.Kind == "" && m.Version == "" && m.Spec == nil && m.Metadata == nil {
			continue
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("invalid manifest in %q (document %d): %w", path, index, err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// LoadAll loads manifests from every file in order.
func LoadAll(paths []string) ([]v1alpha1.Manifest, error) {
	var manifests []v1alpha1.Manifest
	for _, path := range paths {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, loaded...)
	}
	return manifests, nil
}
