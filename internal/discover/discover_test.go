package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverPythonFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "print('hello')")
	writeFile(t, dir, "lib/util.pyw", "def helper(): pass")
	// Non-Python file should be ignored
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.py", "secret")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}

	// Should be sorted
	if entries[0].Path != "lib/util.pyw" || entries[0].Module != "util" {
		t.Errorf("entry 0: got %+v", entries[0])
	}
	if entries[1].Path != "main.py" || entries[1].Module != "main" {
		t.Errorf("entry 1: got %+v", entries[1])
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "node_modules/pkg.py", "pass")
	writeFile(t, dir, "__pycache__/cached.py", "pass")
	writeFile(t, dir, ".hidden/secret.py", "pass")
	writeFile(t, dir, "thing.egg-info/setup.py", "pass")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Path != "main.py" {
		t.Errorf("expected main.py, got %q", entries[0].Path)
	}
}

func TestDiscoverExclude(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "pkg/__init__.py", "")
	writeFile(t, dir, "pkg/core.py", "pass")
	writeFile(t, dir, "pkg/tests/test_core.py", "pass")
	writeFile(t, dir, "setup.py", "pass")

	entries, err := Files(dir, Options{Exclude: []string{"tests/", "/setup.py"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Module)
	}
	want := []string{"pkg", "pkg.core"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("modules = %v, want %v", got, want)
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated_*.py\n")
	writeFile(t, dir, "kept.py", "pass")
	writeFile(t, dir, "generated_api.py", "pass")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Module != "kept" {
		t.Errorf("entries = %+v, want only kept", entries)
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.py", "pass")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.py"), filepath.Join(dir, "link.py"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (no symlink), got %d", len(entries))
	}
	if entries[0].Path != "real.py" {
		t.Errorf("expected real.py, got %q", entries[0].Path)
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	paths := []string{
		"__init__.py",
		"a.py",
		"my-script.py",
		"pkg/__init__.py",
		"pkg/mod.py",
		"pkg/sub/__init__.py",
		"pkg/sub/deep.py",
		"pkg/plain/x.py",
		"bad-dir/__init__.py",
		"bad-dir/y.py",
	}

	tests := []struct {
		root string
		want map[string]FileEntry
	}{
		{
			root: "src",
			want: map[string]FileEntry{
				"__init__.py":         {Module: "src", IsPackage: true},
				"a.py":                {Module: "src.a"},
				"my-script.py":        {Module: "script-my_script_py", Script: true},
				"pkg/__init__.py":     {Module: "src.pkg", IsPackage: true},
				"pkg/mod.py":          {Module: "src.pkg.mod"},
				"pkg/sub/__init__.py": {Module: "src.pkg.sub", IsPackage: true},
				"pkg/sub/deep.py":     {Module: "src.pkg.sub.deep"},
				"pkg/plain/x.py":      {Module: "x"},
				"bad-dir/y.py":        {Module: "y"},
			},
		},
		{
			// The root is not an identifier, so it is not a package.
			root: "my-project",
			want: map[string]FileEntry{
				"a.py":            {Module: "a"},
				"pkg/__init__.py": {Module: "pkg", IsPackage: true},
				"pkg/mod.py":      {Module: "pkg.mod"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			t.Parallel()
			got := map[string]FileEntry{}
			for _, e := range Name(paths, tt.root) {
				got[e.Path] = e
			}
			if tt.root == "src" && len(got) != len(tt.want) {
				t.Errorf("got %d entries, want %d: %+v", len(got), len(tt.want), got)
			}
			for p, want := range tt.want {
				want.Path = p
				if got[p] != want {
					t.Errorf("%s: got %+v, want %+v", p, got[p], want)
				}
			}
			if _, ok := got["bad-dir/__init__.py"]; ok {
				t.Error("__init__ of a non-identifier directory was kept")
			}
		})
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
