// Copyright Contributors to the Opus project

package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifests.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest file: %v", err)
	}
	return path
}

func TestLoadMultiDocument(t *testing.T) {
	path := writeFile(t, `
kind: HelloWorld
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: first
spec:
  file: /tmp/first.txt
---
kind: HelloWorld
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: second
  dependencies:
    - identifierType: ManifestName
      identifiers:
        - key: first
---
`)
	manifests, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(manifests) != 2 {
		t.Fatalf("Load() returned %d manifests, want 2", len(manifests))
	}
	if manifests[0].Kind != "HelloWorld" || manifests[0].Version != "v1" {
		t.Errorf("manifest[0] = %+v", manifests[0])
	}

	first, err := manifests[0].ToTask(nil)
	if err != nil {
		t.Fatalf("ToTask() error = %v", err)
	}
	if first.ID() != "first" {
		t.Errorf("first.ID() = %q", first.ID())
	}
	second, err := manifests[1].ToTask(nil)
	if err != nil {
		t.Fatalf("ToTask() error = %v", err)
	}
	if len(second.Dependencies()) != 1 || second.Dependencies()[0].Key() != "first" {
		t.Errorf("second dependencies = %v", second.Dependencies())
	}
}

func TestLoadInvalidManifestFails(t *testing.T) {
	path := writeFile(t, "version: v1\nspec:\n  a: 1\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil for manifest without kind")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() error = nil for missing file")
	}
}

func TestLoadAll(t *testing.T) {
	first := writeFile(t, "kind: K\nversion: v1\n")
	manifests, err := LoadAll([]string{first})
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(manifests) != 1 {
		t.Errorf("LoadAll() returned %d manifests, want 1", len(manifests))
	}
}
