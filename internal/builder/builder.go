// Package builder merges introspected module records and their parsed
// documentation into one documentation model.
package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/introspect"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

type node struct {
	e      *model.Entity
	rec    *introspect.Record
	mod    *introspect.ModuleRecord // set on module nodes
	parent *node
	kids   []*node
	seq    int
}

// Build assigns canonical ids, wires containment and alias edges, and
// stamps every cross-reference with its scope and id. Modules are
// processed in Order.
func Build(mods []*introspect.ModuleRecord) (*model.Model, []model.Diagnostic) {
	b := &builder{nodeOf: map[*model.Entity]*node{}}
	for _, m := range Order(mods) {
		b.module(m)
	}
	b.collisions()
	entities := b.containment()
	aliases := b.aliases(entities)
	b.stamp(entities)
	b.validateParams(entities)
	return model.New(entities, aliases), b.diags
}

type builder struct {
	modules []*node
	all     []*node
	nodeOf  map[*model.Entity]*node
	diags   []model.Diagnostic
}

func (b *builder) newNode(rec *introspect.Record, id, file string, parent *node) *node {
	n := &node{
		rec:    rec,
		parent: parent,
		seq:    len(b.all),
		e: &model.Entity{
			ID:         id,
			Name:       rec.Name,
			Kind:       rec.Kind,
			Location:   model.Location{File: file, Line: rec.Line},
			Signature:  rec.Signature,
			Docstring:  rec.Docstring,
			Dialect:    rec.Dialect,
			Doc:        rec.Doc,
			Params:     rec.Params,
			Decorators: rec.Decorators,
			Calls:      rec.Calls,
			Locals:     rec.Locals,
			Opaque:     rec.Opaque,
		},
	}
	for _, base := range rec.Bases {
		n.e.Bases = append(n.e.Bases, model.Base{Text: base})
	}
	b.all = append(b.all, n)
	b.nodeOf[n.e] = n
	return n
}

func (b *builder) module(m *introspect.ModuleRecord) {
	n := b.newNode(&m.Record, m.Name, m.Path, nil)
	n.mod = m
	n.e.Imports = m.Imports
	n.e.Private = privateModule(m.Name)
	b.modules = append(b.modules, n)
	b.members(n, m.Path)
}

func (b *builder) members(parent *node, file string) {
	var public map[string]bool
	if parent.mod != nil && parent.mod.All != nil {
		public = make(map[string]bool, len(parent.mod.All))
		for _, name := range parent.mod.All {
			public[name] = true
		}
	}
	for _, rec := range parent.rec.Members {
		n := b.newNode(rec, parent.e.ID+"."+rec.Name, file, parent)
		n.e.Private = parent.e.Private || model.IsPrivate(rec.Name) || (public != nil && !public[rec.Name])
		parent.kids = append(parent.kids, n)
		b.members(n, file)
	}
}

func privateModule(name string) bool {
	for _, part := range strings.Split(name, ".") {
		if model.IsPrivate(part) {
			return true
		}
	}
	return false
}

// collisions gives every id exactly one owner. Claimants are grouped by
// id, shortest ids first; the earliest source location keeps the id and
// the others are renamed <id>#2, <id>#3, ... together with their members.
func (b *builder) collisions() {
	levels := map[int][]*node{}
	maxLevel := 0
	for _, n := range b.all {
		k := strings.Count(n.e.ID, ".")
		levels[k] = append(levels[k], n)
		if k > maxLevel {
			maxLevel = k
		}
	}

	for k := 0; k <= maxLevel; k++ {
		groups := map[string][]*node{}
		for _, n := range levels[k] {
			groups[n.e.ID] = append(groups[n.e.ID], n)
		}
		ids := make([]string, 0, len(groups))
		for id, g := range groups {
			if len(g) > 1 {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)

		for _, id := range ids {
			g := groups[id]
			sort.SliceStable(g, func(i, j int) bool {
				a, c := g[i].e.Location, g[j].e.Location
				if a != c {
					return a.Less(c)
				}
				return g[i].seq < g[j].seq
			})
			winner := g[0].e
			for i, n := range g[1:] {
				renamed := fmt.Sprintf("%s#%d", id, i+2)
				rename(n, id, renamed)
				n.e.Collision = true
				b.diags = append(b.diags, model.NewDiagnostic(model.PhaseBuild, renamed, &model.ModelError{
					EntityID: renamed,
					Msg: fmt.Sprintf("%s %s at %s:%d collides with the definition at %s:%d",
						n.e.Kind, id, n.e.Location.File, n.e.Location.Line, winner.Location.File, winner.Location.Line),
				}))
			}
		}
	}
}

func rename(n *node, from, to string) {
	n.e.ID = to + strings.TrimPrefix(n.e.ID, from)
	for _, k := range n.kids {
		rename(k, from, to)
	}
}

// containment fills Parent and Children and returns the entities in stable
// pre-order: modules in build order, each followed by its members.
func (b *builder) containment() []*model.Entity {
	byID := map[string]*node{}
	for _, n := range b.all {
		byID[n.e.ID] = n
	}

	var out []*model.Entity
	var walk func(n *node)
	walk = func(n *node) {
		out = append(out, n.e)
		for _, k := range n.kids {
			k.e.Parent = n.e.ID
			n.e.Children = append(n.e.Children, k.e.ID)
			walk(k)
		}
	}
	for _, m := range b.modules {
		walk(m)
	}

	// A submodule belongs to its package module when that was loaded.
	var subs []*node
	for _, m := range b.modules {
		if m.e.Collision {
			continue
		}
		i := strings.LastIndexByte(m.e.ID, '.')
		if i < 0 {
			continue
		}
		if p := byID[m.e.ID[:i]]; p != nil && p.e.Kind == model.Module && p.mod.IsPackage {
			m.e.Parent = p.e.ID
			subs = append(subs, m)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].e.ID < subs[j].e.ID })
	for _, m := range subs {
		p := byID[m.e.Parent]
		p.e.Children = append(p.e.Children, m.e.ID)
		m.e.Private = m.e.Private || p.e.Private
	}
	return out
}

// aliases records an alias edge for every imported name that leads to an
// entity. Star imports re-export the public members of their target.
func (b *builder) aliases(entities []*model.Entity) map[string]string {
	byID := make(map[string]*model.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}
	cand := map[string]string{}

	for _, m := range b.modules {
		for _, imp := range m.mod.Imports {
			if imp.Star() {
				continue
			}
			id := m.e.ID + "." + imp.Name
			if _, ok := byID[id]; ok {
				continue
			}
			if _, ok := cand[id]; !ok {
				cand[id] = imp.Target
			}
		}
	}

	canonical := func(id string) (string, bool) {
		seen := map[string]bool{}
		for {
			if _, ok := byID[id]; ok {
				return id, true
			}
			next, ok := cand[id]
			if !ok || seen[id] {
				return "", false
			}
			seen[id] = true
			id = next
		}
	}

	for _, m := range b.modules {
		for _, imp := range m.mod.Imports {
			if !imp.Star() {
				continue
			}
			target, ok := canonical(imp.Target)
			if !ok {
				continue
			}
			for _, name := range exported(byID[target], byID, cand) {
				id := m.e.ID + "." + name
				if _, ok := byID[id]; ok {
					continue
				}
				if _, ok := cand[id]; !ok {
					cand[id] = target + "." + name
				}
			}
		}
	}

	out := map[string]string{}
	for id, target := range cand {
		if _, ok := canonical(target); ok {
			out[id] = target
		}
	}
	return out
}

// exported returns the names a star import of mod binds: its public
// non-module members and its own public imported names.
func exported(mod *model.Entity, byID map[string]*model.Entity, cand map[string]string) []string {
	if mod == nil || mod.Kind != model.Module {
		return nil
	}
	var names []string
	for _, id := range mod.Children {
		c := byID[id]
		if c == nil || c.Private || c.Collision || c.Kind == model.Module {
			continue
		}
		names = append(names, c.Name)
	}
	prefix := mod.ID + "."
	var reexports []string
	for id := range cand {
		rest, ok := strings.CutPrefix(id, prefix)
		if ok && !strings.Contains(rest, ".") && !model.IsPrivate(rest) {
			reexports = append(reexports, rest)
		}
	}
	sort.Strings(reexports)
	return append(names, reexports...)
}

// stamp gives every cross-reference its lexical scope and a 1-based id in
// entity order.
func (b *builder) stamp(entities []*model.Entity) {
	next := 1
	for _, e := range entities {
		for _, r := range e.Doc.Refs() {
			r.Scope = e.ID
			r.ID = next
			r.Reset()
			next++
		}
		if n := b.nodeOf[e]; n != nil && n.rec.DocErr != nil {
			b.diags = append(b.diags, model.NewDiagnostic(model.PhaseParse, e.ID, n.rec.DocErr))
		}
	}
}

// validateParams warns about param fields naming parameters the signature
// does not have. A class's param fields document its __init__.
func (b *builder) validateParams(entities []*model.Entity) {
	byID := make(map[string]*model.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	for _, e := range entities {
		if e.Doc == nil {
			continue
		}
		sig := e
		if e.Kind == model.Class {
			sig = byID[e.ID+".__init__"]
			if sig == nil {
				continue
			}
		} else if !e.Kind.Routine() {
			continue
		}
		if sig.Opaque || hasVariadic(sig.Params, "**") {
			continue
		}
		for _, f := range e.Doc.Fields(model.ParamField) {
			name := f.ParamName()
			if name == "" {
				continue
			}
			name = strings.TrimLeft(name, "*")
			if _, ok := sig.Param(name); ok {
				continue
			}
			b.diags = append(b.diags, model.NewDiagnostic(model.PhaseBuild, e.ID, &model.ReferenceError{
				Target: name,
				Scope:  e.ID,
				Note:   fmt.Sprintf("%s has no parameter %q", sig.Signature, name),
			}))
		}
	}
}

func hasVariadic(ps []model.Param, marker string) bool {
	for _, p := range ps {
		if p.Variadic == marker {
			return true
		}
	}
	return false
}
