// Package export writes a finished documentation model in one of several
// machine-readable formats.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AnjaneyuluBatta505/epydoc/internal/graph"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
	"github.com/AnjaneyuluBatta505/epydoc/internal/ranking"
	"github.com/AnjaneyuluBatta505/epydoc/internal/toon"
)

// Output formats.
const (
	TOON = "toon"
	JSON = "json"
	YAML = "yaml"
	DOT  = "dot"
)

// ErrUnknownFormat is returned for a format name Write does not know.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported format names.
func Formats() []string { return []string{TOON, JSON, YAML, DOT} }

// Options controls what gets written.
type Options struct {
	Format  string
	Project string
	// Private includes entities with conventionally private names and
	// everything they contain.
	Private bool
	// MaxModules limits output to the highest-ranked modules; <= 0 keeps
	// all of them.
	MaxModules int
	// Symbol and File narrow output to matching entities; see
	// ranking.FilterBySymbol and ranking.FilterByFile.
	Symbol string
	File   string
}

// Document is the serialized form of a model used by the JSON and YAML
// formats.
type Document struct {
	Project     string                             `json:"project" yaml:"project"`
	Modules     []graph.ModuleRank                 `json:"modules" yaml:"modules"`
	Entities    []*model.Entity                    `json:"entities" yaml:"entities"`
	Aliases     map[string]string                  `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Ancestors   map[string][]model.InheritanceEdge `json:"ancestors,omitempty" yaml:"ancestors,omitempty"`
	Subclasses  map[string][]string                `json:"subclasses,omitempty" yaml:"subclasses,omitempty"`
	Calls       []model.CallEdge                   `json:"calls,omitempty" yaml:"calls,omitempty"`
	Diagnostics []model.Diagnostic                 `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Write encodes m to w.
func Write(w io.Writer, m *model.Model, opts Options) error {
	ranks := graph.Rank(m)
	keep := ranking.All(
		Keep(m, opts.Private),
		ranking.SelectModules(m, ranks, opts.MaxModules),
		ranking.FilterByFile(opts.File),
		ranking.FilterBySymbol(m, opts.Symbol),
	)
	switch strings.ToLower(opts.Format) {
	case "", TOON:
		_, err := fmt.Fprintln(w, toon.Encode(m, toon.Options{
			Project: opts.Project,
			Ranks:   ranks,
			Keep:    keep,
		}))
		return err
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(m, opts.Project, ranks, keep))
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(m, opts.Project, ranks, keep)); err != nil {
			return err
		}
		return enc.Close()
	case DOT:
		return writeDOT(w, opts.Project, graph.Export(m, keep))
	default:
		return fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, opts.Format, strings.Join(Formats(), ", "))
	}
}

// Keep returns the entity filter for the private setting. An entity is
// dropped when it or any of its containers has a private name.
func Keep(m *model.Model, private bool) ranking.Filter {
	if private {
		return func(*model.Entity) bool { return true }
	}
	hidden := map[string]bool{}
	for _, e := range m.Entities() {
		if e.Private || hidden[e.Parent] {
			hidden[e.ID] = true
		}
	}
	return func(e *model.Entity) bool { return !hidden[e.ID] }
}

// NewDocument collects the entities accepted by keep and the views between
// them. Modules are listed in ranks order.
func NewDocument(m *model.Model, project string, ranks []graph.ModuleRank, keep func(*model.Entity) bool) Document {
	doc := Document{Project: project, Diagnostics: m.Diagnostics()}
	kept := map[string]bool{}
	for _, e := range m.Entities() {
		if keep(e) {
			kept[e.ID] = true
			doc.Entities = append(doc.Entities, e)
		}
	}
	for _, r := range ranks {
		if kept[r.Module] {
			doc.Modules = append(doc.Modules, r)
		}
	}
	for _, id := range m.AliasIDs() {
		if i := strings.LastIndexByte(id, '.'); i < 0 || !kept[id[:i]] {
			continue
		}
		if doc.Aliases == nil {
			doc.Aliases = map[string]string{}
		}
		doc.Aliases[id], _ = m.Alias(id)
	}
	for _, e := range doc.Entities {
		if e.Kind != model.Class {
			continue
		}
		if anc := m.Ancestors(e.ID); len(anc) > 0 {
			if doc.Ancestors == nil {
				doc.Ancestors = map[string][]model.InheritanceEdge{}
			}
			doc.Ancestors[e.ID] = anc
		}
		var subs []string
		for _, s := range m.Subclasses(e.ID) {
			if kept[s] {
				subs = append(subs, s)
			}
		}
		if len(subs) > 0 {
			if doc.Subclasses == nil {
				doc.Subclasses = map[string][]string{}
			}
			doc.Subclasses[e.ID] = subs
		}
	}
	for _, c := range m.CallEdges("") {
		if kept[c.Caller] && kept[c.Callee] {
			doc.Calls = append(doc.Calls, c)
		}
	}
	return doc
}

var edgeStyle = map[string]string{
	graph.Contains: `color="gray"`,
	graph.Inherits: `arrowhead="empty"`,
	graph.Calls:    `style="dashed"`,
	graph.Alias:    `style="dotted"`,
}

var nodeShape = map[model.Kind]string{
	model.Module:   "folder",
	model.Class:    "box",
	model.Function: "ellipse",
	model.Method:   "ellipse",
	model.Variable: "plaintext",
}

func writeDOT(w io.Writer, project string, g graph.Graph) error {
	var b strings.Builder
	name := project
	if name == "" {
		name = "epydoc"
	}
	fmt.Fprintf(&b, "digraph %s {\n", dotQuote(name))
	b.WriteString("  rankdir=LR;\n")
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "  %s [label=%s, shape=%s];\n", dotQuote(n.ID), dotQuote(n.Name), nodeShape[n.Kind])
	}
	for _, e := range g.Edges {
		attrs := []string{edgeStyle[e.Kind]}
		if e.Label != "" {
			attrs = append(attrs, "label="+dotQuote(e.Label))
		}
		sort.Strings(attrs)
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotQuote(e.From), dotQuote(e.To), strings.Join(attrs, ", "))
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func dotQuote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
