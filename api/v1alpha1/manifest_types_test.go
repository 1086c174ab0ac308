// Copyright Contributors to the Opus project

package v1alpha1

import (
	"testing"
)

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		wantErr  bool
	}{
		{"valid", Manifest{Kind: "K", Version: "v1"}, false},
		{"missing kind", Manifest{Version: "v1"}, true},
		{"missing version", Manifest{Kind: "K"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManifestToTask(t *testing.T) {
	m := Manifest{
		Kind:    "HelloWorld",
		Version: "v1",
		Metadata: map[string]any{
			"identifiers": []any{
				map[string]any{"type": IdentifierTypeManifestName, "key": "greeter"},
			},
		},
		Spec: map[string]any{"file": "/tmp/out.txt"},
	}
	tk, err := m.ToTask(nil)
	if err != nil {
		t.Fatalf("ToTask() error = %v", err)
	}
	if tk.ID() != "greeter" {
		t.Errorf("ID() = %q, want greeter", tk.ID())
	}
	if tk.Spec()["file"] != "/tmp/out.txt" {
		t.Errorf("spec[file] = %v", tk.Spec()["file"])
	}

	invalid := Manifest{Version: "v1"}
	if _, err := invalid.ToTask(nil); err == nil {
		t.Error("ToTask() error = nil for invalid manifest")
	}
}
