// Package graph derives the structural views of a resolved model:
// inheritance chains, the subclass index and call/uses edges.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

// Derive recomputes every view from the model's resolved bases and
// references and stores them on m. It flags classes on an inheritance
// cycle and returns one ModelError per flagged class.
func Derive(m *model.Model) []model.Diagnostic {
	var diags []model.Diagnostic
	views := model.Views{
		Chains:    map[string][]string{},
		Ancestors: map[string][]model.InheritanceEdge{},
	}

	for _, e := range m.Entities() {
		if e.Kind != model.Class {
			continue
		}
		chain, edges, cyclic := inheritance(m, e.ID)
		views.Chains[e.ID] = chain
		if len(edges) > 0 {
			views.Ancestors[e.ID] = edges
		}
		e.Cyclic = cyclic
		if cyclic {
			diags = append(diags, model.NewDiagnostic(model.PhaseViews, e.ID, &model.ModelError{
				EntityID: e.ID,
				Msg:      fmt.Sprintf("inheritance cycle: %s", strings.Join(append(chain, e.ID), " -> ")),
			}))
		}
	}

	views.Direct, views.Subclasses = subclasses(m)
	views.Calls = BuildCallGraph(m, views.Chains)
	m.SetViews(views)

	model.SortDiagnostics(diags)
	return diags
}

// inheritance walks resolved bases depth-first, left to right, visiting
// each ancestor once. cyclic is set when a base edge leads back to id.
func inheritance(m *model.Model, id string) (chain []string, edges []model.InheritanceEdge, cyclic bool) {
	seen := map[string]bool{id: true}
	chain = []string{id}

	var visit func(cur string, depth int)
	visit = func(cur string, depth int) {
		e, ok := m.Entity(cur)
		if !ok {
			return
		}
		for _, b := range e.Bases {
			if b.Resolved == "" {
				continue
			}
			if b.Resolved == id {
				cyclic = true
				continue
			}
			if seen[b.Resolved] {
				continue
			}
			seen[b.Resolved] = true
			chain = append(chain, b.Resolved)
			edges = append(edges, model.InheritanceEdge{Subclass: id, Superclass: b.Resolved, Depth: depth})
			visit(b.Resolved, depth+1)
		}
	}
	visit(id, 1)
	return chain, edges, cyclic
}

// subclasses indexes classes by their resolved bases. Both maps hold
// sorted ids.
func subclasses(m *model.Model) (direct, all map[string][]string) {
	directSet := make(map[string]map[string]struct{})
	for _, e := range m.Entities() {
		if e.Kind != model.Class {
			continue
		}
		for _, b := range e.Bases {
			if b.Resolved == "" || b.Resolved == e.ID {
				continue
			}
			if directSet[b.Resolved] == nil {
				directSet[b.Resolved] = make(map[string]struct{})
			}
			directSet[b.Resolved][e.ID] = struct{}{}
		}
	}

	direct = make(map[string][]string, len(directSet))
	for base, subs := range directSet {
		direct[base] = sortedKeys(subs)
	}

	all = make(map[string][]string, len(direct))
	for base := range direct {
		seen := map[string]struct{}{}
		stack := append([]string(nil), direct[base]...)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := seen[cur]; ok || cur == base {
				continue
			}
			seen[cur] = struct{}{}
			stack = append(stack, direct[cur]...)
		}
		all[base] = sortedKeys(seen)
	}
	return direct, all
}

// BuildCallGraph builds routine-level uses edges. A call whose first name
// is a parameter or local of the caller is skipped. Otherwise it is followed
// only through the caller's module, its imports and self./cls. on the
// enclosing class, never through a global name search; an edge is kept
// when it lands on a function or method (a class call lands on its
// __init__). Docstring references resolved from one routine to another
// are added with ViaDoc. Edges are deduplicated and sorted.
func BuildCallGraph(m *model.Model, chains map[string][]string) []model.CallEdge {
	type edgeKey struct{ caller, callee, via string }
	seen := make(map[edgeKey]struct{})

	var edges []model.CallEdge
	add := func(caller, callee, via string) {
		key := edgeKey{caller, callee, via}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		edges = append(edges, model.CallEdge{Caller: caller, Callee: callee, Via: via})
	}

	w := walker{m: m, chains: chains}
	for _, e := range m.Entities() {
		if !e.Kind.Routine() {
			continue
		}
		for _, call := range e.Calls {
			if callee, ok := w.call(e, call); ok {
				add(e.ID, callee, model.ViaCall)
			}
		}
	}

	for _, r := range m.References() {
		if r.Status != model.Resolved {
			continue
		}
		caller, ok := m.Entity(r.Scope)
		if !ok || !caller.Kind.Routine() {
			continue
		}
		if callee, ok := m.Entity(r.Resolved); ok && callee.Kind.Routine() {
			add(caller.ID, callee.ID, model.ViaDoc)
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Caller != edges[j].Caller {
			return edges[i].Caller < edges[j].Caller
		}
		if edges[i].Callee != edges[j].Callee {
			return edges[i].Callee < edges[j].Callee
		}
		return edges[i].Via < edges[j].Via
	})

	return edges
}

type walker struct {
	m      *model.Model
	chains map[string][]string
}

func (w walker) call(caller *model.Entity, name string) (string, bool) {
	parts := strings.Split(name, ".")
	var start string
	switch parts[0] {
	case "self", "cls":
		if caller.Kind != model.Method {
			return "", false
		}
		start = caller.Parent
	default:
		if shadowed(caller, parts[0]) {
			return "", false
		}
		mod := w.module(caller)
		if c, ok := w.m.Child(mod, parts[0]); ok {
			start = c.ID
		} else if alias, ok := w.m.Alias(mod + "." + parts[0]); ok {
			if start, ok = w.m.Canonical(alias); !ok {
				return "", false
			}
		} else {
			return "", false
		}
	}

	cur := start
	for _, p := range parts[1:] {
		next, ok := w.member(cur, p)
		if !ok {
			return "", false
		}
		cur = next
	}

	e, ok := w.m.Entity(cur)
	if !ok {
		return "", false
	}
	switch {
	case e.Kind.Routine():
		return e.ID, true
	case e.Kind == model.Class:
		if init, ok := w.member(e.ID, "__init__"); ok {
			return init, true
		}
	}
	return "", false
}

// shadowed reports whether name is a parameter or local binding of the
// routine, so a call through it cannot be followed statically.
func shadowed(e *model.Entity, name string) bool {
	for _, p := range e.Params {
		if p.Name == name {
			return true
		}
	}
	for _, l := range e.Locals {
		if l == name {
			return true
		}
	}
	return false
}

func (w walker) member(id, name string) (string, bool) {
	if c, ok := w.m.Child(id, name); ok {
		return c.ID, true
	}
	e, ok := w.m.Entity(id)
	if !ok {
		return "", false
	}
	switch e.Kind {
	case model.Class:
		for _, anc := range w.chains[id] {
			if anc == id {
				continue
			}
			if c, ok := w.m.Child(anc, name); ok {
				return c.ID, true
			}
		}
	case model.Module:
		if alias, ok := w.m.Alias(id + "." + name); ok {
			return w.m.Canonical(alias)
		}
	}
	return "", false
}

func (w walker) module(e *model.Entity) string {
	for e != nil && e.Kind != model.Module {
		p, ok := w.m.Entity(e.Parent)
		if !ok {
			return ""
		}
		e = p
	}
	if e == nil {
		return ""
	}
	return e.ID
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
