// Package ranking narrows a documentation model to the part a reader asked
// for: the top-ranked modules, the entities matching a name, or the
// modules under a path.
package ranking

import (
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/graph"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

// Filter reports whether an entity is kept.
type Filter func(*model.Entity) bool

// All keeps an entity only when every non-nil filter keeps it.
func All(filters ...Filter) Filter {
	return func(e *model.Entity) bool {
		for _, f := range filters {
			if f != nil && !f(e) {
				return false
			}
		}
		return true
	}
}

// SelectModules keeps the entities of the maxModules highest-ranked modules.
// If maxModules is <= 0 or covers every ranked module, it returns nil.
func SelectModules(m *model.Model, ranks []graph.ModuleRank, maxModules int) Filter {
	if maxModules <= 0 || maxModules >= len(ranks) {
		return nil
	}

	selected := make(map[string]struct{}, maxModules)
	for _, r := range ranks[:maxModules] {
		selected[r.Module] = struct{}{}
	}
	return func(e *model.Entity) bool {
		_, ok := selected[moduleOf(m, e)]
		return ok
	}
}

// FilterByFile keeps the entities defined in files whose path contains
// substr. An empty substr returns nil.
func FilterByFile(substr string) Filter {
	if substr == "" {
		return nil
	}
	return func(e *model.Entity) bool {
		return strings.Contains(e.Location.File, substr)
	}
}

// FilterBySymbol keeps entities whose name contains substr
// (case-insensitive), together with the routines that call or are called
// by a match, every member of a matched class, and the containers needed
// to reach all of them. An empty substr returns nil.
func FilterBySymbol(m *model.Model, substr string) Filter {
	if substr == "" {
		return nil
	}
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	for _, e := range m.Entities() {
		if e.Kind != model.Module && strings.Contains(strings.ToLower(e.Name), lower) {
			matched[e.ID] = struct{}{}
		}
	}

	keep := make(map[string]struct{}, len(matched))
	for id := range matched {
		keep[id] = struct{}{}
	}

	// Expand to callers and callees of matched symbols.
	for _, ce := range m.CallEdges("") {
		if _, ok := matched[ce.Caller]; ok {
			keep[ce.Callee] = struct{}{}
		}
		if _, ok := matched[ce.Callee]; ok {
			keep[ce.Caller] = struct{}{}
		}
	}

	// Members of matched classes, in pre-order so nested members follow
	// their class.
	for _, e := range m.Entities() {
		if _, ok := keep[e.Parent]; ok {
			if p, _ := m.Entity(e.Parent); p != nil && p.Kind == model.Class {
				if _, direct := matched[p.ID]; direct || isMemberOfMatch(m, p, matched) {
					keep[e.ID] = struct{}{}
				}
			}
		}
	}

	// Containers, so every kept entity stays reachable from its module.
	for id := range keep {
		e, ok := m.Entity(id)
		for ok && e.Parent != "" {
			keep[e.Parent] = struct{}{}
			e, ok = m.Entity(e.Parent)
		}
	}

	return func(e *model.Entity) bool {
		_, ok := keep[e.ID]
		return ok
	}
}

// isMemberOfMatch reports whether class c sits inside a matched class.
func isMemberOfMatch(m *model.Model, c *model.Entity, matched map[string]struct{}) bool {
	for id := c.Parent; id != ""; {
		if _, ok := matched[id]; ok {
			return true
		}
		e, ok := m.Entity(id)
		if !ok {
			return false
		}
		id = e.Parent
	}
	return false
}

func moduleOf(m *model.Model, e *model.Entity) string {
	for e.Kind != model.Module {
		p, ok := m.Entity(e.Parent)
		if !ok {
			return ""
		}
		e = p
	}
	return e.ID
}
