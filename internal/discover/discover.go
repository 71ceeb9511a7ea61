// Package discover finds Python modules under a source root and derives
// their dotted module names.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/AnjaneyuluBatta505/epydoc/internal/lang"
)

// FileEntry represents a discovered module file.
type FileEntry struct {
	Path      string // relative to root, slash-separated
	Module    string // dotted module name
	IsPackage bool   // the file is a package's __init__ module
	Script    bool   // the file name is not an identifier; Module is munged
}

// Options controls discovery.
type Options struct {
	// Exclude holds gitignore-style patterns matched against root-relative
	// paths.
	Exclude []string
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	".env":          {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

var (
	identRe   = regexp.MustCompile(`^[A-Za-z_]\w*$`)
	nonWordRe = regexp.MustCompile(`\W`)
)

// Files discovers Python module files under root, sorted by path.
func Files(root string, opts Options) ([]FileEntry, error) {
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}
	var excl *ignore.GitIgnore
	if len(opts.Exclude) > 0 {
		excl = ignore.CompileIgnoreLines(opts.Exclude...)
	}

	var paths []string

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if p == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".egg-info") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if excl != nil && excl.MatchesPath(rel) {
			return nil
		}

		if lang.ForExtension(filepath.Ext(name)) == "" {
			return nil
		}

		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return Name(paths, filepath.Base(root)), nil
}

// Name derives module names for root-relative slash-separated paths.
// A directory is a package when it has an identifier name and one of the
// paths is its __init__ file; rootName names the root directory itself.
// A module's name is prefixed by the chain of packages directly above it.
func Name(paths []string, rootName string) []FileEntry {
	packages := map[string]bool{}
	for _, p := range paths {
		if isInit(p) {
			dir := path.Dir(p)
			if identRe.MatchString(dirName(dir, rootName)) {
				packages[dir] = true
			}
		}
	}

	entries := make([]FileEntry, 0, len(paths))
	for _, p := range paths {
		dir, file := path.Split(p)
		dir = path.Clean(dir)
		base := strings.TrimSuffix(file, path.Ext(file))

		e := FileEntry{Path: p}
		if isInit(p) {
			if !packages[dir] {
				continue
			}
			e.IsPackage = true
			e.Module = packageName(dir, rootName, packages)
		} else if !identRe.MatchString(base) {
			e.Script = true
			e.Module = "script-" + nonWordRe.ReplaceAllString(file, "_")
		} else {
			e.Module = base
			if pkg := packageName(dir, rootName, packages); pkg != "" {
				e.Module = pkg + "." + base
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// packageName returns the dotted name of the package directory dir, or ""
// when dir is not a package.
func packageName(dir, rootName string, packages map[string]bool) string {
	var parts []string
	for packages[dir] {
		parts = append([]string{dirName(dir, rootName)}, parts...)
		if dir == "." {
			break
		}
		dir = path.Dir(dir)
	}
	return strings.Join(parts, ".")
}

func dirName(dir, rootName string) string {
	if dir == "." {
		return rootName
	}
	return path.Base(dir)
}

func isInit(p string) bool {
	base := path.Base(p)
	return base == "__init__.py" || base == "__init__.pyw"
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
