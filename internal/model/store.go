package model

import "sort"

// Model is the documentation model of one build. The builder creates it;
// the resolver and view deriver fill in resolution state and derived views.
// Renderers use only the read accessors and must not mutate what they get.
type Model struct {
	entities    []*Entity
	byID        map[string]*Entity
	aliases     map[string]string
	refs        []*CrossRef
	views       Views
	diagnostics []Diagnostic
}

// New indexes entities (already in stable order) and alias edges, and
// collects their cross-references.
func New(entities []*Entity, aliases map[string]string) *Model {
	m := &Model{
		entities: entities,
		byID:     make(map[string]*Entity, len(entities)),
		aliases:  make(map[string]string, len(aliases)),
	}
	for _, e := range entities {
		m.byID[e.ID] = e
		m.refs = append(m.refs, e.Doc.Refs()...)
	}
	for k, v := range aliases {
		m.aliases[k] = v
	}
	return m
}

// Entities returns all entities in stable pre-order: modules in build
// order, each followed by its members in declaration order.
func (m *Model) Entities() []*Entity {
	return append([]*Entity(nil), m.entities...)
}

// Entity returns the entity with the given canonical id.
func (m *Model) Entity(id string) (*Entity, bool) {
	e, ok := m.byID[id]
	return e, ok
}

// Len returns the number of entities.
func (m *Model) Len() int { return len(m.entities) }

// Children returns the entities directly contained in id.
func (m *Model) Children(id string) []*Entity {
	e, ok := m.byID[id]
	if !ok {
		return nil
	}
	out := make([]*Entity, 0, len(e.Children))
	for _, c := range e.Children {
		if ce, ok := m.byID[c]; ok {
			out = append(out, ce)
		}
	}
	return out
}

// Child returns the member of id with the given short name.
func (m *Model) Child(id, name string) (*Entity, bool) {
	e, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	for _, c := range e.Children {
		if ce := m.byID[c]; ce != nil && ce.Name == name && !ce.Collision {
			return ce, true
		}
	}
	return nil, false
}

// Roots returns the modules that have no parent.
func (m *Model) Roots() []*Entity {
	var out []*Entity
	for _, e := range m.entities {
		if e.Parent == "" {
			out = append(out, e)
		}
	}
	return out
}

// Doc returns the documentation tree of id, or nil.
func (m *Model) Doc(id string) *DocTree {
	if e, ok := m.byID[id]; ok {
		return e.Doc
	}
	return nil
}

// Alias returns the canonical id an alias points at.
func (m *Model) Alias(id string) (string, bool) {
	t, ok := m.aliases[id]
	return t, ok
}

// Aliases returns a copy of the alias edges.
func (m *Model) Aliases() map[string]string {
	out := make(map[string]string, len(m.aliases))
	for k, v := range m.aliases {
		out[k] = v
	}
	return out
}

// AliasIDs returns the alias ids in sorted order.
func (m *Model) AliasIDs() []string {
	ids := make([]string, 0, len(m.aliases))
	for k := range m.aliases {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	return ids
}

// Canonical follows alias edges from id until it reaches an entity. It
// returns false when the chain ends outside the model or loops.
func (m *Model) Canonical(id string) (string, bool) {
	seen := map[string]bool{}
	for {
		if _, ok := m.byID[id]; ok {
			return id, true
		}
		next, ok := m.aliases[id]
		if !ok || seen[id] {
			return "", false
		}
		seen[id] = true
		id = next
	}
}

// References returns every cross-reference in entity order.
func (m *Model) References() []*CrossRef {
	return append([]*CrossRef(nil), m.refs...)
}

// Reference returns the cross-reference with the given id.
func (m *Model) Reference(id int) (*CrossRef, bool) {
	if id >= 1 && id <= len(m.refs) && m.refs[id-1].ID == id {
		return m.refs[id-1], true
	}
	for _, r := range m.refs {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// SetViews replaces the derived structural views.
func (m *Model) SetViews(v Views) { m.views = v }

// InheritanceChain returns id followed by its ancestors in depth-first
// order. Non-classes have no chain.
func (m *Model) InheritanceChain(id string) []string {
	return append([]string(nil), m.views.Chains[id]...)
}

// Ancestors returns the inheritance edges from id to each ancestor.
func (m *Model) Ancestors(id string) []InheritanceEdge {
	return append([]InheritanceEdge(nil), m.views.Ancestors[id]...)
}

// DirectSubclasses returns classes that list id as a resolved base.
func (m *Model) DirectSubclasses(id string) []string {
	return append([]string(nil), m.views.Direct[id]...)
}

// Subclasses returns direct and transitive subclasses of id.
func (m *Model) Subclasses(id string) []string {
	return append([]string(nil), m.views.Subclasses[id]...)
}

// CallEdges returns the uses edges where id is the caller or the callee.
// An empty id returns every edge. Edges to entities no longer in the model
// are skipped.
func (m *Model) CallEdges(id string) []CallEdge {
	var out []CallEdge
	for _, e := range m.views.Calls {
		if id != "" && e.Caller != id && e.Callee != id {
			continue
		}
		if m.byID[e.Caller] == nil || m.byID[e.Callee] == nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// AddDiagnostics appends findings to the build's diagnostics.
func (m *Model) AddDiagnostics(ds ...Diagnostic) {
	m.diagnostics = append(m.diagnostics, ds...)
}

// Diagnostics returns the build's findings in deterministic order.
func (m *Model) Diagnostics() []Diagnostic {
	out := append([]Diagnostic(nil), m.diagnostics...)
	SortDiagnostics(out)
	return out
}
