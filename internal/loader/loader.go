// Package loader reads and parses discovered Python files with a bounded
// worker pool and introspects each one into a module record.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AnjaneyuluBatta505/epydoc/internal/discover"
	"github.com/AnjaneyuluBatta505/epydoc/internal/introspect"
	"github.com/AnjaneyuluBatta505/epydoc/internal/lang"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

// DefaultMaxFileSize is the size above which files are not loaded.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// ErrTooLarge is wrapped by the LoadError of a file over the size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Options controls loading.
type Options struct {
	Workers     int   // <= 0 means GOMAXPROCS
	MaxFileSize int64 // <= 0 means DefaultMaxFileSize
	Logger      *slog.Logger
}

// Result holds the loaded modules and the per-module failures, both
// sorted by module name.
type Result struct {
	Modules  []*introspect.ModuleRecord
	Failures []*model.LoadError
}

// Load reads, parses and introspects files. A file that cannot be read or
// does not parse becomes a LoadError; the other files are unaffected. The
// returned error is non-nil only when ctx is cancelled.
func Load(ctx context.Context, root string, files []discover.FileEntry, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	py := lang.Python()
	query, err := py.GetCallQuery()
	if err != nil {
		return nil, fmt.Errorf("compiling call query: %w", err)
	}

	type result struct {
		mod *introspect.ModuleRecord
		err *model.LoadError
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	indexed := make([]result, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own parser
			parser := py.NewParser()
			defer parser.Close()

			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				f := files[idx]
				mod, err := loadOne(ctx, root, f, maxSize, parser, query)
				if err != nil {
					logger.Debug("module failed to load", "module", f.Module, "path", f.Path, "error", err)
					indexed[idx] = result{err: &model.LoadError{Module: f.Module, Path: f.Path, Err: err}}
					continue
				}
				indexed[idx] = result{mod: mod}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, r := range indexed {
		switch {
		case r.mod != nil:
			res.Modules = append(res.Modules, r.mod)
		case r.err != nil:
			res.Failures = append(res.Failures, r.err)
		}
	}
	sort.SliceStable(res.Modules, func(i, j int) bool { return res.Modules[i].Name < res.Modules[j].Name })
	sort.SliceStable(res.Failures, func(i, j int) bool { return res.Failures[i].Module < res.Failures[j].Module })

	logger.Debug("loaded modules", "loaded", len(res.Modules), "failed", len(res.Failures))
	return res, nil
}

func loadOne(ctx context.Context, root string, f discover.FileEntry, maxSize int64, parser *sitter.Parser, query *sitter.Query) (*introspect.ModuleRecord, error) {
	absPath := filepath.Join(root, filepath.FromSlash(f.Path))
	fi, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxSize {
		return nil, fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, fi.Size(), maxSize)
	}
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	tree, err := introspect.ParseTree(ctx, parser, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	return introspect.Introspect(introspect.Unit{
		Module:    f.Module,
		Path:      f.Path,
		IsPackage: f.IsPackage,
		Source:    source,
		Root:      tree.RootNode(),
	}, query), nil
}
