package graph

import (
	"math"
	"sort"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

// ModuleRank is the PageRank score of one module.
type ModuleRank struct {
	Module string  `json:"module" yaml:"module"`
	Rank   float64 `json:"rank" yaml:"rank"`
}

// Rank scores modules by how much the rest of the model depends on them.
// A module depends on another for every import, resolved base and call
// edge that crosses between them. Results are sorted by rank descending,
// then by module name.
func Rank(m *model.Model) []ModuleRank {
	nodes := make(map[string]struct{})
	for _, e := range m.Entities() {
		if e.Kind == model.Module && !e.Collision {
			nodes[e.ID] = struct{}{}
		}
	}
	if len(nodes) == 0 {
		return nil
	}

	w := walker{m: m}
	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	link := func(from, to string) {
		src, tgt := w.moduleOf(from), w.moduleOf(to)
		if src == tgt {
			return
		}
		_, srcOK := nodes[src]
		_, tgtOK := nodes[tgt]
		if !srcOK || !tgtOK {
			return
		}
		outEdges[src] = append(outEdges[src], tgt)
		outDegree[src]++
	}

	for _, id := range m.AliasIDs() {
		if target, ok := m.Canonical(id); ok {
			link(id, target)
		}
	}
	for _, e := range m.Entities() {
		for _, b := range e.Bases {
			if b.Resolved != "" {
				link(e.ID, b.Resolved)
			}
		}
	}
	for _, c := range m.CallEdges("") {
		link(c.Caller, c.Callee)
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)

	out := make([]ModuleRank, 0, len(ranks))
	for id, r := range ranks {
		out = append(out, ModuleRank{Module: id, Rank: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].Module < out[j].Module
	})
	return out
}

// moduleOf returns the module enclosing the entity id, or for an alias id
// the module that declares it.
func (w walker) moduleOf(id string) string {
	for id != "" {
		if e, ok := w.m.Entity(id); ok {
			return w.module(e)
		}
		i := strings.LastIndexByte(id, '.')
		if i < 0 {
			return ""
		}
		id = id[:i]
	}
	return ""
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)
	ordered := sortedKeys(nodes)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for _, node := range ordered {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for _, node := range ordered {
			newRank[node] = teleport + danglingContrib
		}

		// Distribute rank through edges
		for _, src := range ordered {
			targets := outEdges[src]
			if len(targets) == 0 {
				continue
			}
			contrib := alpha * rank[src] / float64(outDegree[src])
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for _, node := range ordered {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}
