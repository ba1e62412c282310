package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home) // windows lookup path

	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/var/lib/models", "/var/lib/models"},
		{"relative/models", "relative/models"},
		{"~", home},
		{"~/models", filepath.Join(home, "models")},
		{"~/a/b/c", filepath.Join(home, "a", "b", "c")},
	}
	for _, tc := range cases {
		got, err := ExpandHome(tc.in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "weights.bin")
	if err := os.WriteFile(file, []byte("w"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !PathExists(dir) {
		t.Fatalf("directory not reported: %s", dir)
	}
	if !PathExists(file) {
		t.Fatalf("file not reported: %s", file)
	}
	if PathExists(filepath.Join(dir, "nope")) {
		t.Fatalf("missing path reported as present")
	}
}
