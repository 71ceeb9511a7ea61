package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnjaneyuluBatta505/epydoc/internal/introspect"
	"github.com/AnjaneyuluBatta505/epydoc/internal/markup"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

func mod(name string, members ...*introspect.Record) *introspect.ModuleRecord {
	return &introspect.ModuleRecord{
		Record: introspect.Record{Name: name, Kind: model.Module, Line: 1, Members: members},
		Path:   name + ".py",
	}
}

func pkg(name string, members ...*introspect.Record) *introspect.ModuleRecord {
	m := mod(name, members...)
	m.IsPackage = true
	m.Path = name + "/__init__.py"
	return m
}

func class(name string, line int, members ...*introspect.Record) *introspect.Record {
	return &introspect.Record{Name: name, Kind: model.Class, Line: line, Members: members}
}

func fn(name string, line int, params ...string) *introspect.Record {
	r := &introspect.Record{Name: name, Kind: model.Function, Line: line}
	for _, p := range params {
		r.Params = append(r.Params, model.Param{Name: p})
	}
	return r
}

func method(name string, line int, params ...string) *introspect.Record {
	r := fn(name, line, params...)
	r.Kind = model.Method
	return r
}

func withDoc(t *testing.T, r *introspect.Record, doc string) *introspect.Record {
	t.Helper()
	tree, err := markup.Parse(doc, markup.Epytext)
	require.NoError(t, err)
	r.Docstring, r.HasDoc, r.Doc, r.Dialect = doc, true, tree, markup.Epytext
	return r
}

func imports(m *introspect.ModuleRecord, imps ...model.Import) *introspect.ModuleRecord {
	m.Imports = imps
	return m
}

func ids(es []*model.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func TestOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mods []*introspect.ModuleRecord
		want []string
	}{
		{
			name: "dependencies first",
			mods: []*introspect.ModuleRecord{
				imports(mod("c"), model.Import{Name: "Thing", Target: "a.Thing"}),
				imports(mod("a"), model.Import{Name: "b", Target: "b"}),
				mod("b"),
				mod("d"),
			},
			want: []string{"b", "a", "c", "d"},
		},
		{
			name: "cycle broken alphabetically",
			mods: []*introspect.ModuleRecord{
				imports(mod("y"), model.Import{Name: "x", Target: "x"}),
				imports(mod("x"), model.Import{Name: "y", Target: "y"}),
				imports(mod("z"), model.Import{Name: "y", Target: "y"}),
			},
			want: []string{"x", "y", "z"},
		},
		{
			name: "unloaded imports ignored",
			mods: []*introspect.ModuleRecord{
				imports(mod("b"), model.Import{Name: "os", Target: "os"}),
				mod("a"),
			},
			want: []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, m := range Order(tt.mods) {
				got = append(got, m.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildContainment(t *testing.T) {
	t.Parallel()

	m, diags := Build([]*introspect.ModuleRecord{
		mod("pkg.sub", fn("helper", 1)),
		pkg("pkg", class("Base", 3, method("run", 4, "self"))),
		mod("other"),
	})
	assert.Empty(t, diags)

	assert.Equal(t, []string{"other", "pkg", "pkg.Base", "pkg.Base.run", "pkg.sub", "pkg.sub.helper"}, ids(m.Entities()))
	assert.Equal(t, []string{"other", "pkg"}, ids(m.Roots()))

	sub, ok := m.Entity("pkg.sub")
	require.True(t, ok)
	assert.Equal(t, "pkg", sub.Parent)

	p, _ := m.Entity("pkg")
	assert.Equal(t, []string{"pkg.Base", "pkg.sub"}, p.Children)

	run, _ := m.Entity("pkg.Base.run")
	assert.Equal(t, "pkg.Base", run.Parent)
	assert.Equal(t, model.Location{File: "pkg/__init__.py", Line: 4}, run.Location)

	base, ok := m.Child("pkg", "Base")
	require.True(t, ok)
	assert.Equal(t, model.Class, base.Kind)
}

func TestSubmoduleWithoutPackageIsRoot(t *testing.T) {
	t.Parallel()

	m, _ := Build([]*introspect.ModuleRecord{mod("ns.tool")})
	e, _ := m.Entity("ns.tool")
	assert.Empty(t, e.Parent)
	assert.Len(t, m.Roots(), 1)
}

func TestCollisions(t *testing.T) {
	t.Parallel()

	m, diags := Build([]*introspect.ModuleRecord{
		mod("m",
			class("C", 1, method("f", 2, "self")),
			class("C", 10, method("f", 11, "self"), method("g", 12, "self")),
			fn("h", 20),
		),
	})

	assert.Equal(t, []string{"m", "m.C", "m.C.f", "m.C#2", "m.C#2.f", "m.C#2.g", "m.h"}, ids(m.Entities()))

	loser, ok := m.Entity("m.C#2")
	require.True(t, ok)
	assert.True(t, loser.Collision)
	assert.Equal(t, 10, loser.Location.Line)

	winner, _ := m.Child("m", "C")
	assert.Equal(t, "m.C", winner.ID)

	require.Len(t, diags, 1)
	assert.Equal(t, model.CodeModel, diags[0].Code)
	assert.Equal(t, model.Error, diags[0].Severity)
	assert.Equal(t, "m.C#2", diags[0].EntityID)
}

func TestModuleMemberCollisionEarliestWins(t *testing.T) {
	t.Parallel()

	// pkg/__init__.py defines sub() and pkg/sub.py is a module: the
	// function comes first in (file, line) order.
	sub := mod("pkg.sub", fn("x", 1))
	sub.Path = "pkg/sub.py"
	m, diags := Build([]*introspect.ModuleRecord{pkg("pkg", fn("sub", 2)), sub})
	require.Len(t, diags, 1)

	f, _ := m.Entity("pkg.sub")
	assert.Equal(t, model.Function, f.Kind)
	moved, ok := m.Entity("pkg.sub#2")
	require.True(t, ok)
	assert.Equal(t, model.Module, moved.Kind)
	_, ok = m.Entity("pkg.sub#2.x")
	assert.True(t, ok)
}

func TestUniqueIDs(t *testing.T) {
	t.Parallel()

	m, _ := Build([]*introspect.ModuleRecord{
		mod("a", fn("f", 1), fn("f", 2), fn("f", 3)),
		mod("a", fn("f", 1)),
	})
	seen := map[string]bool{}
	for _, e := range m.Entities() {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
	assert.Len(t, seen, 6)
}

func TestAliases(t *testing.T) {
	t.Parallel()

	m, _ := Build([]*introspect.ModuleRecord{
		imports(pkg("pkg"),
			model.Import{Name: "Base", Target: "pkg.a.Base"},
			model.Import{Name: "os", Target: "os"},
			model.Import{Name: "*", Target: "pkg.b"},
		),
		mod("pkg.a", class("Base", 1)),
		imports(mod("pkg.b", fn("public", 1), fn("_hidden", 2)),
			model.Import{Name: "Base", Target: "pkg.a.Base"},
		),
		imports(mod("c"), model.Import{Name: "B", Target: "pkg.Base"}),
	})

	assert.Equal(t, map[string]string{
		"pkg.Base":   "pkg.a.Base",
		"pkg.public": "pkg.b.public",
		"pkg.b.Base": "pkg.a.Base",
		"c.B":        "pkg.Base",
	}, m.Aliases())

	id, ok := m.Canonical("c.B")
	assert.True(t, ok)
	assert.Equal(t, "pkg.a.Base", id)
}

func TestDefinitionShadowsImport(t *testing.T) {
	t.Parallel()

	m, _ := Build([]*introspect.ModuleRecord{
		mod("a", class("X", 1)),
		imports(mod("b", class("X", 3)), model.Import{Name: "X", Target: "a.X"}),
	})
	_, ok := m.Alias("b.X")
	assert.False(t, ok)
}

func TestStampReferences(t *testing.T) {
	t.Parallel()

	m, diags := Build([]*introspect.ModuleRecord{
		mod("m",
			withDoc(t, class("C", 1), "See L{f} and L{g()}."),
			withDoc(t, fn("f", 5, "x"), "@param x: Uses L{C}.\n@raise KeyError: never"),
		),
	})
	assert.Empty(t, diags)

	refs := m.References()
	require.Len(t, refs, 4)
	want := []struct {
		id     int
		target string
		scope  string
	}{
		{1, "f", "m.C"}, {2, "g", "m.C"}, {3, "C", "m.f"}, {4, "KeyError", "m.f"},
	}
	for i, w := range want {
		assert.Equal(t, w.id, refs[i].ID)
		assert.Equal(t, w.target, refs[i].Target)
		assert.Equal(t, w.scope, refs[i].Scope)
		assert.Equal(t, model.Pending, refs[i].Status)

		r, ok := m.Reference(w.id)
		require.True(t, ok)
		assert.Same(t, refs[i], r)
	}
}

func TestParamValidation(t *testing.T) {
	t.Parallel()

	kw := withDoc(t, fn("kw", 10, "a"), "@keyword anything: fine")
	kw.Params = append(kw.Params, model.Param{Name: "opts", Variadic: "**"})

	_, diags := Build([]*introspect.ModuleRecord{
		mod("m",
			withDoc(t, fn("f", 1, "a", "b"), "@param a: ok\n@param c: missing\n@type b: int"),
			withDoc(t, class("C", 5, method("__init__", 6, "self", "size")), "@param size: ok\n@param color: missing"),
			kw,
		),
	})
	model.SortDiagnostics(diags)

	require.Len(t, diags, 2)
	assert.Equal(t, "m.C", diags[0].EntityID)
	assert.Contains(t, diags[0].Message, `"color"`)
	assert.Equal(t, "m.f", diags[1].EntityID)
	assert.Contains(t, diags[1].Message, `"c"`)
	for _, d := range diags {
		assert.Equal(t, model.Warning, d.Severity)
		assert.Equal(t, model.PhaseBuild, d.Phase)
	}
}

func TestMarkupErrorsReported(t *testing.T) {
	t.Parallel()

	rec := fn("f", 1)
	tree, err := markup.Parse("See L{broken", markup.Epytext)
	rec.Doc, rec.DocErr = tree, err

	_, diags := Build([]*introspect.ModuleRecord{mod("m", rec)})
	require.Len(t, diags, 1)
	assert.Equal(t, model.CodeMarkup, diags[0].Code)
	assert.Equal(t, model.PhaseParse, diags[0].Phase)
	assert.Equal(t, "m.f", diags[0].EntityID)
}

func TestPrivate(t *testing.T) {
	t.Parallel()

	m1 := mod("m", fn("listed", 1), fn("unlisted", 2), fn("_private", 3), fn("__dunder__", 4))
	m1.All = []string{"listed", "__dunder__", "_private"}

	m, _ := Build([]*introspect.ModuleRecord{m1, mod("_impl", fn("f", 1))})
	for id, want := range map[string]bool{
		"m":            false,
		"m.listed":     false,
		"m.unlisted":   true,
		"m._private":   true,
		"m.__dunder__": false,
		"_impl":        true,
		"_impl.f":      true,
	} {
		e, ok := m.Entity(id)
		require.True(t, ok, id)
		assert.Equal(t, want, e.Private, id)
	}
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	build := func() *model.Model {
		m, _ := Build([]*introspect.ModuleRecord{
			mod("b", fn("f", 1), fn("f", 2)),
			imports(mod("a", class("C", 1)), model.Import{Name: "f", Target: "b.f"}),
		})
		return m
	}
	first, second := build(), build()
	assert.Equal(t, ids(first.Entities()), ids(second.Entities()))
	assert.Equal(t, first.Aliases(), second.Aliases())
}
