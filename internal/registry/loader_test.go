package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanDirFindsModels(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tinyllama.gguf"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "resnet@2"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write hidden: %v", err)
	}

	entries, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(entries), entries)
	}
	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	if _, ok := byName["tinyllama.gguf"]; !ok {
		t.Fatalf("file model missing: %v", entries)
	}
	if e, ok := byName["resnet"]; !ok || e.Version != "2" {
		t.Fatalf("versioned model parsed wrong: %v", entries)
	}
}

func TestScanDirMissing(t *testing.T) {
	if _, err := ScanDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestSplitVersion(t *testing.T) {
	cases := []struct{ in, name, version string }{
		{"m", "m", ""},
		{"m@1", "m", "1"},
		{"m@v1.2", "m", "v1.2"},
		{"@odd", "@odd", ""},
	}
	for _, c := range cases {
		name, version := splitVersion(c.in)
		if name != c.name || version != c.version {
			t.Fatalf("splitVersion(%q) = %q,%q", c.in, name, version)
		}
	}
}
