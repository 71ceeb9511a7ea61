// Package toon implements TOON (Token-Oriented Object Notation) encoding
// of a documentation model.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/graph"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Options controls what Encode writes.
type Options struct {
	Project string
	// Ranks orders the modules table; modules without a rank follow in
	// model order.
	Ranks []graph.ModuleRank
	// Keep filters entities; nil keeps everything.
	Keep func(*model.Entity) bool
}

// Encode converts a documentation model into TOON format.
func Encode(m *model.Model, opts Options) string {
	keep := opts.Keep
	if keep == nil {
		keep = func(*model.Entity) bool { return true }
	}
	var entities []*model.Entity
	kept := map[string]bool{}
	for _, e := range m.Entities() {
		if keep(e) {
			entities = append(entities, e)
			kept[e.ID] = true
		}
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("project: %s", encodeValue(opts.Project)))

	rank := map[string]float64{}
	var order []string
	for _, r := range opts.Ranks {
		if kept[r.Module] {
			rank[r.Module] = r.Rank
			order = append(order, r.Module)
		}
	}
	for _, e := range entities {
		if _, ok := rank[e.ID]; !ok && e.Kind == model.Module {
			order = append(order, e.ID)
		}
	}
	var moduleRows [][]string
	for _, id := range order {
		e, _ := m.Entity(id)
		moduleRows = append(moduleRows, []string{
			e.ID,
			e.Location.File,
			fmt.Sprintf("%.4f", rank[id]),
			e.Doc.Summary(),
		})
	}
	parts = append(parts, formatTabular("modules", []string{"id", "file", "rank", "summary"}, moduleRows))

	var entityRows [][]string
	for _, e := range entities {
		if e.Kind == model.Module {
			continue
		}
		entityRows = append(entityRows, []string{
			e.ID,
			string(e.Kind),
			strconv.Itoa(e.Location.Line),
			e.Signature,
			e.Doc.Summary(),
			flags(e),
		})
	}
	parts = append(parts, formatTabular("entities", []string{"id", "kind", "line", "signature", "summary", "flags"}, entityRows))

	var baseRows, chainRows [][]string
	for _, e := range entities {
		for _, b := range e.Bases {
			baseRows = append(baseRows, []string{e.ID, b.Text, b.Resolved})
		}
		if chain := m.InheritanceChain(e.ID); len(chain) > 1 {
			chainRows = append(chainRows, []string{e.ID, strings.Join(chain[1:], " ")})
		}
	}
	parts = append(parts, formatTabular("bases", []string{"class", "base", "resolved"}, baseRows))
	parts = append(parts, formatTabular("inheritance", []string{"class", "ancestors"}, chainRows))

	var aliasRows [][]string
	for _, id := range m.AliasIDs() {
		if i := strings.LastIndexByte(id, '.'); i < 0 || !kept[id[:i]] {
			continue
		}
		target, _ := m.Alias(id)
		canonical, _ := m.Canonical(id)
		aliasRows = append(aliasRows, []string{id, target, canonical})
	}
	parts = append(parts, formatTabular("aliases", []string{"alias", "target", "canonical"}, aliasRows))

	var refRows [][]string
	for _, r := range m.References() {
		if !kept[r.Scope] {
			continue
		}
		resolved := r.Resolved
		if r.Status == model.Ambiguous {
			resolved = strings.Join(r.Candidates, " ")
		}
		refRows = append(refRows, []string{
			strconv.Itoa(r.ID),
			r.Scope,
			r.Target,
			string(r.Status),
			resolved,
		})
	}
	parts = append(parts, formatTabular("references", []string{"id", "scope", "target", "status", "resolved"}, refRows))

	var callRows [][]string
	for _, ce := range m.CallEdges("") {
		if kept[ce.Caller] && kept[ce.Callee] {
			callRows = append(callRows, []string{ce.Caller, ce.Callee, ce.Via})
		}
	}
	parts = append(parts, formatTabular("calls", []string{"caller", "callee", "via"}, callRows))

	if diags := m.Diagnostics(); len(diags) > 0 {
		var diagRows [][]string
		for _, d := range diags {
			diagRows = append(diagRows, []string{
				string(d.Severity),
				string(d.Phase),
				string(d.Code),
				d.EntityID,
				d.Message,
			})
		}
		parts = append(parts, formatTabular("diagnostics", []string{"severity", "phase", "code", "entity", "message"}, diagRows))
	}

	return strings.Join(parts, "\n")
}

func flags(e *model.Entity) string {
	var fs []string
	if e.Opaque {
		fs = append(fs, "opaque")
	}
	if e.Collision {
		fs = append(fs, "collision")
	}
	if e.Cyclic {
		fs = append(fs, "cyclic")
	}
	if e.Private {
		fs = append(fs, "private")
	}
	return strings.Join(fs, " ")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
