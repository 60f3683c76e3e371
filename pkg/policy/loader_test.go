package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const testRego = `# Rejects circuits without measurements
# on any wire.
package test.policy

import rego.v1

deny contains "Circuit has no operations" if {
	input.summary.num_operations == 0
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(nil)
	path := filepath.Join(t.TempDir(), "empty-circuit.rego")
	writeFile(t, path, testRego)

	policy, err := loader.loadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if policy.Name != "empty-circuit" {
		t.Errorf("Expected name 'empty-circuit', got '%s'", policy.Name)
	}
	if policy.Description != "Rejects circuits without measurements on any wire." {
		t.Errorf("Description = %q", policy.Description)
	}
	if policy.Rego != testRego || !policy.Enabled || policy.Severity != SeverityWarning {
		t.Errorf("policy = %+v", policy)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewLoader(nil)
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "p.json"), `{"name": "json-policy", "rego": "package p", "enabled": true}`)
	policy, err := loader.loadFromFile(filepath.Join(dir, "p.json"))
	if err != nil {
		t.Fatal(err)
	}
	if policy.Name != "json-policy" || policy.Severity != SeverityWarning {
		t.Errorf("policy = %+v", policy)
	}

	writeFile(t, filepath.Join(dir, "bad.json"), `{"name": `)
	if _, err := loader.loadFromFile(filepath.Join(dir, "bad.json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	writeFile(t, filepath.Join(dir, "unnamed.json"), `{"rego": "package p"}`)
	if _, err := loader.loadFromFile(filepath.Join(dir, "unnamed.json")); err == nil {
		t.Error("expected error for unnamed policy")
	}
	writeFile(t, filepath.Join(dir, "p.txt"), "x")
	if _, err := loader.loadFromFile(filepath.Join(dir, "p.txt")); err == nil {
		t.Error("expected error for unsupported file type")
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := NewLoader(nil)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rego"), testRego)
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), testRego)
	writeFile(t, filepath.Join(dir, "nested", "broken.json"), "{")
	writeFile(t, filepath.Join(dir, "README.md"), "ignored")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(policies) != 2 {
		t.Fatalf("loaded %d policies, want 2", len(policies))
	}

	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestEngine_LoadPolicies(t *testing.T) {
	eng := newTestEngine(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty-circuit.rego"), testRego)

	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatal(err)
	}
	result, err := eng.Evaluate(context.Background(), &Input{CircuitID: "empty"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Message != "Circuit has no operations" {
		t.Errorf("warnings = %+v", result.Warnings)
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"# One line\npackage p", "One line"},
		{"\n# First\n#\n# Second\npackage p\n# ignored", "First Second"},
		{"package p\n# after", ""},
	}
	for _, tt := range tests {
		if got := extractDescription(tt.content); got != tt.want {
			t.Errorf("extractDescription(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}
