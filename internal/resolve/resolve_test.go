package resolve

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnjaneyuluBatta505/epydoc/internal/builder"
	"github.com/AnjaneyuluBatta505/epydoc/internal/introspect"
	"github.com/AnjaneyuluBatta505/epydoc/internal/lang"
	"github.com/AnjaneyuluBatta505/epydoc/internal/markup"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

type source struct {
	name string
	code string
	pkg  bool
}

func build(t *testing.T, srcs ...source) *model.Model {
	t.Helper()
	py := lang.Python()
	q, err := py.GetCallQuery()
	require.NoError(t, err)
	parser := py.NewParser()
	defer parser.Close()

	var mods []*introspect.ModuleRecord
	for _, s := range srcs {
		code := []byte(s.code)
		tree, err := introspect.ParseTree(context.Background(), parser, code)
		require.NoError(t, err, s.name)

		path := strings.ReplaceAll(s.name, ".", "/") + ".py"
		if s.pkg {
			path = strings.ReplaceAll(s.name, ".", "/") + "/__init__.py"
		}
		mod := introspect.Introspect(introspect.Unit{
			Module: s.name, Path: path, IsPackage: s.pkg, Source: code, Root: tree.RootNode(),
		}, q)
		tree.Close()

		mod.Walk(func(_ string, r *introspect.Record) {
			if r.HasDoc {
				r.Dialect = markup.Epytext
				r.Doc, r.DocErr = markup.Parse(r.Docstring, markup.Epytext)
			}
		})
		mods = append(mods, mod)
	}
	m, _ := builder.Build(mods)
	return m
}

func ref(t *testing.T, m *model.Model, scope, target string) *model.CrossRef {
	t.Helper()
	for _, r := range m.References() {
		if r.Scope == scope && r.Target == target {
			return r
		}
	}
	require.Failf(t, "reference not found", "%s in %s", target, scope)
	return nil
}

func entity(t *testing.T, m *model.Model, id string) *model.Entity {
	t.Helper()
	e, ok := m.Entity(id)
	require.True(t, ok, id)
	return e
}

var baseModule = source{name: "a", code: `
class Base:
    """Root of everything."""

    def run(self):
        """Run it."""
`}

func TestResolveInheritedMember(t *testing.T) {
	t.Parallel()

	m := build(t, baseModule, source{name: "b", code: `
from a import Base

class Derived(Base):
    """Overrides L{Base.run} and L{Derived#run}."""

    def go(self):
        """Calls L{run()} then L{go}."""
`})
	diags := Resolve(m, DefaultPolicy())
	assert.Empty(t, diags)

	assert.Equal(t, "a.Base", entity(t, m, "b.Derived").Bases[0].Resolved)

	for _, tc := range []struct{ scope, target, want string }{
		{"b.Derived", "Base.run", "a.Base.run"},
		{"b.Derived", "Derived#run", "a.Base.run"},
		{"b.Derived.go", "run", "a.Base.run"},
		{"b.Derived.go", "go", "b.Derived.go"},
	} {
		r := ref(t, m, tc.scope, tc.target)
		assert.Equal(t, model.Resolved, r.Status, tc.target)
		assert.Equal(t, tc.want, r.Resolved, tc.target)
	}
}

func TestResolveWithoutImportFallsBackToGlobalIndex(t *testing.T) {
	t.Parallel()

	m := build(t, baseModule, source{name: "b", code: `
class Derived(Base):
    """See L{Base.run}."""
`})
	Resolve(m, DefaultPolicy())
	assert.Equal(t, "a.Base", entity(t, m, "b.Derived").Bases[0].Resolved)
	assert.Equal(t, "a.Base.run", ref(t, m, "b.Derived", "Base.run").Resolved)
}

func TestResolveAmbiguousSiblings(t *testing.T) {
	t.Parallel()

	m := build(t,
		source{name: "pkg", code: "", pkg: true},
		source{name: "pkg.x", code: "class Helper:\n    pass\n"},
		source{name: "pkg.y", code: "class Helper:\n    pass\n"},
		source{name: "pkg.z", code: "def f():\n    \"\"\"Uses L{Helper}.\"\"\"\n"},
	)
	diags := Resolve(m, DefaultPolicy())

	r := ref(t, m, "pkg.z.f", "Helper")
	assert.Equal(t, model.Ambiguous, r.Status)
	assert.Empty(t, r.Resolved)
	assert.Equal(t, []string{"pkg.x.Helper", "pkg.y.Helper"}, r.Candidates)

	require.Len(t, diags, 1)
	assert.Equal(t, model.CodeReference, diags[0].Code)
	assert.Equal(t, model.Warning, diags[0].Severity)
	assert.Equal(t, model.PhaseResolve, diags[0].Phase)
	assert.Equal(t, "pkg.z.f", diags[0].EntityID)
	assert.Equal(t, []string{"pkg.x.Helper", "pkg.y.Helper"}, diags[0].Candidates)
}

func TestResolveImportedNameWins(t *testing.T) {
	t.Parallel()

	m := build(t,
		source{name: "x", code: "class Helper:\n    pass\n"},
		source{name: "y", code: "class Helper:\n    pass\n"},
		source{name: "z", code: "from y import Helper\n\ndef f():\n    \"\"\"Uses L{Helper}.\"\"\"\n"},
	)
	assert.Empty(t, Resolve(m, DefaultPolicy()))
	assert.Equal(t, "y.Helper", ref(t, m, "z.f", "Helper").Resolved)
}

func TestResolveTieBreakOrder(t *testing.T) {
	t.Parallel()

	srcs := []source{
		{name: "p.q", code: `
class K:
    run = 1

def user():
    """Calls L{run()}."""
`},
		{name: "r", code: "def run():\n    pass\n"},
	}

	tests := []struct {
		tiebreak []string
		want     string
	}{
		{[]string{TieCallable, TieClosest}, "r.run"},
		// closest keeps only the variable, which "()" then rules out.
		{[]string{TieClosest, TieCallable}, ""},
		// Without tie-breaks the non-callable candidate is still dropped.
		{nil, "r.run"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.tiebreak, ","), func(t *testing.T) {
			t.Parallel()
			m := build(t, srcs...)
			diags := Resolve(m, Policy{TieBreak: tt.tiebreak})
			r := ref(t, m, "p.q.user", "run")
			assert.Equal(t, tt.want, r.Resolved)
			if tt.want != "" {
				assert.Empty(t, diags)
				return
			}
			assert.Equal(t, model.Unresolved, r.Status)
			require.Len(t, diags, 1)
			assert.Contains(t, diags[0].Message, "p.q.K.run is not callable")
		})
	}
}

func TestResolveCallableMarker(t *testing.T) {
	t.Parallel()

	m := build(t, source{name: "m", code: `
run = 3

def go():
    pass

def f():
    """Calls L{run()} and L{go()}, reads L{run}."""
`})
	diags := Resolve(m, DefaultPolicy())

	var called, plain *model.CrossRef
	for _, x := range m.References() {
		if x.Scope == "m.f" && x.Target == "run" {
			if x.Callable {
				called = x
			} else {
				plain = x
			}
		}
	}
	require.NotNil(t, called)
	require.NotNil(t, plain)
	assert.Equal(t, model.Unresolved, called.Status)
	assert.Empty(t, called.Resolved)
	assert.Equal(t, "m.run", plain.Resolved)
	assert.Equal(t, "m.go", ref(t, m, "m.f", "go").Resolved)

	require.Len(t, diags, 1)
	assert.Equal(t, model.CodeReference, diags[0].Code)
	assert.Contains(t, diags[0].Message, "m.run is not callable")
}

func TestResolveUnresolved(t *testing.T) {
	t.Parallel()

	m := build(t, source{name: "m", code: `
def f(count):
    """Mentions L{Nowhere}, L{count}.

    @raise KeyError: when missing
    @raise BadThing: on failure
    """
`})
	diags := Resolve(m, DefaultPolicy())

	for _, target := range []string{"Nowhere", "count", "KeyError", "BadThing"} {
		r := ref(t, m, "m.f", target)
		assert.Equal(t, model.Unresolved, r.Status, target)
		assert.Equal(t, target, r.Target)
	}

	var msgs []string
	for _, d := range diags {
		msgs = append(msgs, d.Message)
	}
	require.Len(t, diags, 3, msgs)
	assert.Contains(t, msgs[0], `"BadThing"`)
	assert.Contains(t, msgs[1], `"Nowhere"`)
	assert.Contains(t, msgs[2], "names a parameter of m.f")
}

func TestResolveBases(t *testing.T) {
	t.Parallel()

	m := build(t,
		source{name: "m", code: `
from django.db import models

class Err(Exception):
    pass

class Model(models.Model):
    pass

class Lost(Missing):
    pass

class A(B):
    pass

class B(A):
    pass

class V(Err):
    Inner = 1
`},
	)
	diags := Resolve(m, DefaultPolicy())
	require.Len(t, diags, 1)
	assert.Equal(t, "m.Lost", diags[0].EntityID)

	assert.Empty(t, entity(t, m, "m.Err").Bases[0].Resolved)
	assert.Empty(t, entity(t, m, "m.Model").Bases[0].Resolved)
	assert.Equal(t, "m.B", entity(t, m, "m.A").Bases[0].Resolved)
	assert.Equal(t, "m.A", entity(t, m, "m.B").Bases[0].Resolved)
	assert.Equal(t, "m.Err", entity(t, m, "m.V").Bases[0].Resolved)
}

func TestResolveBaseSkipsNonClasses(t *testing.T) {
	t.Parallel()

	m := build(t,
		source{name: "a", code: "class Base:\n    pass\n"},
		source{name: "b", code: "Base = 3\n\nclass C(Base):\n    pass\n"},
	)
	assert.Empty(t, Resolve(m, DefaultPolicy()))
	assert.Equal(t, "a.Base", entity(t, m, "b.C").Bases[0].Resolved)
}

func TestResolveIdempotent(t *testing.T) {
	t.Parallel()

	m := build(t,
		baseModule,
		source{name: "b", code: "from a import Base\n\nclass D(Base):\n    \"\"\"L{run}, L{Nope}.\"\"\"\n"},
		source{name: "c", code: "class Base:\n    pass\n"},
	)
	type state struct {
		status     model.Status
		resolved   string
		candidates []string
	}
	snapshot := func() []state {
		var out []state
		for _, r := range m.References() {
			out = append(out, state{r.Status, r.Resolved, r.Candidates})
		}
		return out
	}

	first := Resolve(m, DefaultPolicy())
	before := snapshot()
	second := Resolve(m, DefaultPolicy())
	assert.Equal(t, first, second)
	assert.Equal(t, before, snapshot())
}

func TestResolveTotality(t *testing.T) {
	t.Parallel()

	m := build(t,
		baseModule,
		source{name: "b", code: `
from a import *

class D(Base):
    """L{run}, L{Base}, L{a}, L{missing()}, L{a.Base.run}."""

    def f(self, x):
        """@param x: see L{D.f}
        @see: Base, D
        """
`},
	)
	Resolve(m, DefaultPolicy())
	require.NotEmpty(t, m.References())
	for _, r := range m.References() {
		switch r.Status {
		case model.Resolved:
			_, ok := m.Entity(r.Resolved)
			assert.True(t, ok, r.Target)
			assert.Empty(t, r.Candidates)
		case model.Unresolved:
			assert.Empty(t, r.Resolved)
		case model.Ambiguous:
			assert.Greater(t, len(r.Candidates), 1)
		default:
			t.Errorf("reference %q left %s", r.Target, r.Status)
		}
	}
	assert.Equal(t, "a.Base", ref(t, m, "b.D.f", "Base").Resolved)
	assert.Equal(t, "b.D.f", ref(t, m, "b.D.f", "D.f").Resolved)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)

	p, err = ParsePolicy([]string{" Closest ", "callable", "closest"})
	require.NoError(t, err)
	assert.Equal(t, []string{TieClosest, TieCallable}, p.TieBreak)

	_, err = ParsePolicy([]string{"nearest"})
	assert.ErrorIs(t, err, ErrUnknownTieBreak)
}
