package graph

import (
	"sort"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

// Edge kinds of the exported graph.
const (
	Contains = "contains"
	Inherits = "inherits"
	Calls    = "calls"
	Alias    = "alias"
)

// Node is one entity of the exported graph.
type Node struct {
	ID   string     `json:"id" yaml:"id"`
	Name string     `json:"name" yaml:"name"`
	Kind model.Kind `json:"kind" yaml:"kind"`
}

// Edge connects two nodes. Label carries the call's via for calls edges
// and the local name for alias edges.
type Edge struct {
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
	Kind  string `json:"kind" yaml:"kind"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Graph is the abstract node/edge list handed to layout tools.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Export lists every entity as a node and every structural relation as an
// edge. Alias edges run from the module declaring the alias to its
// canonical target. Entities rejected by keep, and edges touching them,
// are left out; a nil keep keeps everything.
func Export(m *model.Model, keep func(*model.Entity) bool) Graph {
	if keep == nil {
		keep = func(*model.Entity) bool { return true }
	}
	var g Graph
	in := map[string]bool{}
	for _, e := range m.Entities() {
		if !keep(e) {
			continue
		}
		in[e.ID] = true
		g.Nodes = append(g.Nodes, Node{ID: e.ID, Name: e.Name, Kind: e.Kind})
	}

	var edges []Edge
	add := func(from, to, kind, label string) {
		if in[from] && in[to] {
			edges = append(edges, Edge{From: from, To: to, Kind: kind, Label: label})
		}
	}
	for _, e := range m.Entities() {
		for _, c := range e.Children {
			add(e.ID, c, Contains, "")
		}
		for _, b := range e.Bases {
			if b.Resolved != "" {
				add(e.ID, b.Resolved, Inherits, "")
			}
		}
	}
	for _, c := range m.CallEdges("") {
		add(c.Caller, c.Callee, Calls, c.Via)
	}
	for _, id := range m.AliasIDs() {
		target, ok := m.Canonical(id)
		if !ok {
			continue
		}
		i := strings.LastIndexByte(id, '.')
		if i < 0 {
			continue
		}
		add(id[:i], target, Alias, id[i+1:])
	}

	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Label < b.Label
	})
	g.Edges = edges
	return g
}
