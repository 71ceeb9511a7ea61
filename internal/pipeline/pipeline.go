// Package pipeline runs a documentation build: discovery, loading and
// introspection, docstring parsing, model building, reference resolution
// and view derivation, in that order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/AnjaneyuluBatta505/epydoc/internal/builder"
	"github.com/AnjaneyuluBatta505/epydoc/internal/discover"
	"github.com/AnjaneyuluBatta505/epydoc/internal/graph"
	"github.com/AnjaneyuluBatta505/epydoc/internal/introspect"
	"github.com/AnjaneyuluBatta505/epydoc/internal/loader"
	"github.com/AnjaneyuluBatta505/epydoc/internal/markup"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
	"github.com/AnjaneyuluBatta505/epydoc/internal/resolve"
)

// Options configures a build.
type Options struct {
	// DefaultDialect is used for modules without a __docformat__ marker or
	// a matching Modules pattern. Empty means epytext.
	DefaultDialect string
	// Modules maps glob patterns over dotted module names to dialects.
	Modules     map[string]string
	Exclude     []string
	Workers     int
	MaxFileSize int64
	Policy      resolve.Policy
	Logger      *slog.Logger
}

// Run builds the documentation model of the Python tree at root. The
// returned error is non-nil only when ctx is cancelled, discovery fails or
// no module loads (model.ErrNothingToDocument); every other problem is a
// diagnostic on the model.
func Run(ctx context.Context, root string, opts Options) (*model.Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	files, err := discover.Files(root, discover.Options{Exclude: opts.Exclude})
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	logger.Debug("discovered files", "root", root, "count", len(files))

	loaded, err := loader.Load(ctx, root, files, loader.Options{
		Workers:     opts.Workers,
		MaxFileSize: opts.MaxFileSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return Build(ctx, loaded, opts)
}

// Build runs every phase after loading.
func Build(ctx context.Context, loaded *loader.Result, opts Options) (*model.Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var diags []model.Diagnostic
	for _, f := range loaded.Failures {
		diags = append(diags, model.NewDiagnostic(model.PhaseLoad, "", f))
	}
	if len(loaded.Modules) == 0 {
		return nil, fmt.Errorf("%w (%d failed)", model.ErrNothingToDocument, len(loaded.Failures))
	}

	parseDiags, err := ParseDocstrings(ctx, loaded.Modules, opts)
	if err != nil {
		return nil, err
	}
	diags = append(diags, parseDiags...)
	logger.Debug("parsed docstrings", "modules", len(loaded.Modules))

	m, buildDiags := builder.Build(loaded.Modules)
	diags = append(diags, buildDiags...)
	logger.Debug("built model", "entities", m.Len(), "aliases", len(m.AliasIDs()))

	policy := opts.Policy
	if len(policy.TieBreak) == 0 {
		policy = resolve.DefaultPolicy()
	}
	diags = append(diags, resolve.Resolve(m, policy)...)
	logger.Debug("resolved references", "references", len(m.References()))

	diags = append(diags, graph.Derive(m)...)
	logger.Debug("derived views", "calls", len(m.CallEdges("")))

	m.AddDiagnostics(diags...)
	return m, nil
}

// ParseDocstrings parses every docstring of mods in place, one module per
// job with at most opts.Workers jobs running. Each module's results are
// written only to its own records.
func ParseDocstrings(ctx context.Context, mods []*introspect.ModuleRecord, opts Options) ([]model.Diagnostic, error) {
	perModule := make([][]model.Diagnostic, len(mods))

	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, mod := range mods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dialect, diag := Dialect(mod, opts)
			if diag != nil {
				perModule[i] = append(perModule[i], *diag)
			}
			mod.Walk(func(_ string, r *introspect.Record) {
				if !r.HasDoc {
					return
				}
				r.Dialect = dialect
				r.Doc, r.DocErr = markup.Parse(r.Docstring, dialect)
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var diags []model.Diagnostic
	for _, ds := range perModule {
		diags = append(diags, ds...)
	}
	return diags, nil
}

// Dialect picks the markup dialect of a module: its __docformat__ marker,
// then the first matching Modules pattern (patterns tried in sorted order),
// then the default. An unsupported name falls back to the next source and
// is reported as a warning.
func Dialect(mod *introspect.ModuleRecord, opts Options) (string, *model.Diagnostic) {
	var diag *model.Diagnostic
	unknown := func(name, source string) {
		if diag != nil {
			return
		}
		d := model.NewDiagnostic(model.PhaseParse, mod.Name, &model.MarkupError{
			Dialect: name,
			Msg:     fmt.Sprintf("unsupported markup dialect %q from %s", name, source),
		})
		diag = &d
	}

	if mod.Docformat != "" {
		if canon, ok := markup.Canonical(mod.Docformat); ok {
			return canon, nil
		}
		unknown(mod.Docformat, "__docformat__")
	}

	patterns := make([]string, 0, len(opts.Modules))
	for p := range opts.Modules {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	for _, p := range patterns {
		if ok, _ := path.Match(p, mod.Name); !ok {
			continue
		}
		name := opts.Modules[p]
		if canon, ok := markup.Canonical(name); ok {
			return canon, diag
		}
		unknown(name, "markup.modules["+p+"]")
		break
	}

	if opts.DefaultDialect != "" {
		if canon, ok := markup.Canonical(opts.DefaultDialect); ok {
			return canon, diag
		}
		unknown(opts.DefaultDialect, "markup.default")
	}
	return markup.Epytext, diag
}
