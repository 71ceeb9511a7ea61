package introspect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnjaneyuluBatta505/epydoc/internal/lang"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

func introspect(t *testing.T, module string, isPkg bool, src string) *ModuleRecord {
	t.Helper()
	py := lang.Python()
	q, err := py.GetCallQuery()
	require.NoError(t, err)

	source := []byte(src)
	tree, err := ParseTree(context.Background(), py.NewParser(), source)
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	return Introspect(Unit{Module: module, Path: "test.py", IsPackage: isPkg, Source: source, Root: tree.RootNode()}, q)
}

func names(rs []*Record) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Name)
	}
	return out
}

func member(t *testing.T, r *Record, name string) *Record {
	t.Helper()
	m := findMember(r, name)
	require.NotNil(t, m, "member %q of %s", name, r.Name)
	return m
}

func TestIntrospectMembers(t *testing.T) {
	t.Parallel()

	src := `"""Module summary."""

__docformat__ = "restructuredtext en"
__all__ = ["Base", "helper"]

#: Number of retries.
RETRIES = 3

TIMEOUT: float = 1.5
"""Seconds to wait."""


class Base(object):
    """A base."""

    kind = "base"

    def run(self, x, *args, **kw):
        """Run it."""
        self.step()
        helper(x)
        return os.path.join("a", "b")

    @staticmethod
    def make(): pass

    @property
    def size(self):
        return 1

    @size.setter
    def size(self, v):
        pass


def helper(value=None):
    'Help.'
    pass
`
	mod := introspect(t, "pkg.mod", false, src)

	assert.Equal(t, "pkg.mod", mod.Name)
	assert.Equal(t, model.Module, mod.Kind)
	assert.Equal(t, "Module summary.", mod.Docstring)
	assert.Equal(t, "restructuredtext en", mod.Docformat)
	assert.Equal(t, []string{"Base", "helper"}, mod.All)
	assert.Equal(t, []string{"RETRIES", "TIMEOUT", "Base", "helper"}, names(mod.Members))

	retries := member(t, &mod.Record, "RETRIES")
	assert.Equal(t, model.Variable, retries.Kind)
	assert.Equal(t, "Number of retries.", retries.Docstring)
	assert.Equal(t, 7, retries.Line)

	timeout := member(t, &mod.Record, "TIMEOUT")
	assert.Equal(t, "TIMEOUT: float", timeout.Signature)
	assert.Equal(t, "Seconds to wait.", timeout.Docstring)

	base := member(t, &mod.Record, "Base")
	assert.Equal(t, model.Class, base.Kind)
	assert.Equal(t, []string{"object"}, base.Bases)
	assert.Equal(t, "A base.", base.Docstring)
	assert.Equal(t, []string{"kind", "run", "make", "size"}, names(base.Members))

	run := member(t, base, "run")
	assert.Equal(t, model.Method, run.Kind)
	assert.Equal(t, "run(self, x, *args, **kw)", run.Signature)
	assert.Equal(t, []model.Param{{Name: "self"}, {Name: "x"}, {Name: "args", Variadic: "*"}, {Name: "kw", Variadic: "**"}}, run.Params)
	assert.Equal(t, []string{"self.step", "helper", "os.path.join"}, run.Calls)

	assert.Equal(t, []string{"staticmethod"}, member(t, base, "make").Decorators)
	assert.Equal(t, []string{"property"}, member(t, base, "size").Decorators)

	helper := member(t, &mod.Record, "helper")
	assert.Equal(t, model.Function, helper.Kind)
	assert.Equal(t, "Help.", helper.Docstring)
	assert.Equal(t, []model.Param{{Name: "value", HasDefault: true}}, helper.Params)
}

func TestIntrospectImports(t *testing.T) {
	t.Parallel()

	src := `from __future__ import annotations
import os
import os.path as osp
import a.b.c
from pkg.a import Base, helper as h
from . import sibling
from .sub import Thing
from .. import top
from x import *
`
	mod := introspect(t, "pkg.inner.mod", false, src)

	want := []model.Import{
		{Name: "os", Target: "os", Line: 2},
		{Name: "osp", Target: "os.path", Line: 3},
		{Name: "a", Target: "a", Line: 4},
		{Name: "Base", Target: "pkg.a.Base", Line: 5},
		{Name: "h", Target: "pkg.a.helper", Line: 5},
		{Name: "sibling", Target: "pkg.inner.sibling", Line: 6},
		{Name: "Thing", Target: "pkg.inner.sub.Thing", Line: 7},
		{Name: "top", Target: "pkg.top", Line: 8},
		{Name: "*", Target: "x", Line: 9},
	}
	assert.Equal(t, want, mod.Imports)
	assert.True(t, mod.Imports[8].Star())
}

func TestRelative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pkg  string
		dots int
		rest string
		want string
		ok   bool
	}{
		{"pkg", 1, "a", "pkg.a", true},
		{"pkg.sub", 2, "a", "pkg.a", true},
		{"pkg.sub", 2, "", "pkg", true},
		{"pkg", 2, "a", "a", true},
		{"pkg", 3, "a", "", false},
		{"", 1, "", "", false},
	}
	for _, tt := range tests {
		got, ok := Relative(tt.pkg, tt.dots, tt.rest)
		assert.Equal(t, tt.ok, ok, "%+v", tt)
		assert.Equal(t, tt.want, got, "%+v", tt)
	}
}

func TestPackageRelativeImport(t *testing.T) {
	t.Parallel()

	mod := introspect(t, "pkg", true, "from .a import Base\n")
	assert.Equal(t, []model.Import{{Name: "Base", Target: "pkg.a.Base", Line: 1}}, mod.Imports)
}

func TestIntrospectOpaque(t *testing.T) {
	t.Parallel()

	src := `class Widget:
    pass

setattr(Widget, "color", "red")
setattr(mod, "flag", True)
globals()["dynamic"] = 1
Point = type("Point", (Base, mixins.Eq), {})
`
	mod := introspect(t, "m", false, src)

	assert.Equal(t, []string{"Widget", "flag", "dynamic", "Point"}, names(mod.Members))

	color := member(t, member(t, &mod.Record, "Widget"), "color")
	assert.True(t, color.Opaque)
	assert.Equal(t, model.Variable, color.Kind)

	assert.True(t, member(t, &mod.Record, "flag").Opaque)
	assert.True(t, member(t, &mod.Record, "dynamic").Opaque)

	point := member(t, &mod.Record, "Point")
	assert.True(t, point.Opaque)
	assert.Equal(t, model.Class, point.Kind)
	assert.Equal(t, []string{"Base", "mixins.Eq"}, point.Bases)
}

func TestIntrospectControlFlow(t *testing.T) {
	t.Parallel()

	src := `try:
    import json
except ImportError:
    json = None

if PY3:
    def compat():
        """New."""
else:
    def compat():
        pass

x = 1
x = 2
`
	mod := introspect(t, "m", false, src)
	assert.Equal(t, []string{"json", "compat", "x"}, names(mod.Members))
	assert.Equal(t, "New.", member(t, &mod.Record, "compat").Docstring)
	assert.Equal(t, []model.Import{{Name: "json", Target: "json", Line: 2}}, mod.Imports)
}

func TestIntrospectLocals(t *testing.T) {
	t.Parallel()

	src := `import os

counter = 0

def f(arg):
    global counter
    counter += 1
    run = lambda: 1
    a, (b, *c) = 1, (2, 3)
    self.attr = 4
    for i in range(3):
        pass
    with open(arg) as fh:
        pass
    try:
        pass
    except OSError as err:
        pass
    if (n := len(arg)) > 1:
        pass
    import json as j, sys
    from os import path, sep as s

    def inner(x):
        y = x

    class Local:
        z = 1

    return run()

def g():
    return helper()
`
	mod := introspect(t, "m", false, src)
	f := member(t, &mod.Record, "f")
	assert.ElementsMatch(t,
		[]string{"run", "a", "b", "c", "i", "fh", "err", "n", "j", "sys", "path", "s", "inner", "Local"},
		f.Locals)
	assert.Contains(t, f.Calls, "run")
	assert.Nil(t, member(t, &mod.Record, "g").Locals)
}

func TestIntrospectMethodsInControlFlow(t *testing.T) {
	t.Parallel()

	src := `class A:
    if PY3:
        def new(self):
            pass
    else:
        @staticmethod
        def new():
            pass

def top():
    pass
`
	mod := introspect(t, "m", false, src)
	assert.Equal(t, model.Method, member(t, member(t, &mod.Record, "A"), "new").Kind)
	assert.Equal(t, model.Function, member(t, &mod.Record, "top").Kind)
}

func TestDuplicateDefinitionsAreKept(t *testing.T) {
	t.Parallel()

	mod := introspect(t, "m", false, "def f():\n    pass\n\ndef f():\n    pass\n")
	require.Len(t, mod.Members, 2)
	assert.Equal(t, 1, mod.Members[0].Line)
	assert.Equal(t, 4, mod.Members[1].Line)
}

func TestWalk(t *testing.T) {
	t.Parallel()

	mod := introspect(t, "m", false, "class A:\n    def f(self): pass\n\ndef g(): pass\n")
	var paths []string
	mod.Walk(func(path string, r *Record) {
		paths = append(paths, path)
	})
	assert.Equal(t, []string{"", "A", "A.f", "g"}, paths)
}

func TestOrderMembersFallback(t *testing.T) {
	t.Parallel()

	rs := []*Record{{Name: "z"}, {Name: "b", Line: 5}, {Name: "a"}, {Name: "c", Line: 2}}
	orderMembers(rs)
	assert.Equal(t, []string{"c", "b", "a", "z"}, names(rs))
}

func TestParseTreeSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := ParseTree(context.Background(), lang.Python().NewParser(), []byte("def broken(:\n    pass\n"))
	require.Error(t, err)
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Line)
}

func TestIntrospectEmpty(t *testing.T) {
	t.Parallel()

	mod := Introspect(Unit{Module: "empty"}, nil)
	assert.Equal(t, "empty", mod.Name)
	assert.Empty(t, mod.Members)
	assert.False(t, mod.HasDoc)
}
