// Package introspect walks Python syntax trees and produces raw entity
// records. Nothing is resolved and no code is executed.
package introspect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AnjaneyuluBatta505/epydoc/internal/lang"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

// Unit is one loaded module: its dotted name, source and syntax tree.
type Unit struct {
	Module    string
	Path      string // relative to the source root
	IsPackage bool   // the module is a package __init__ file
	Source    []byte
	Root      *sitter.Node
}

// Record is a raw member record.
type Record struct {
	Name       string
	Kind       model.Kind
	Line       int
	Docstring  string
	HasDoc     bool
	Signature  string
	Bases      []string
	Params     []model.Param
	Decorators []string
	Calls      []string
	Locals     []string // names bound in a function body, params excluded
	Members    []*Record
	Opaque     bool

	// Filled by the parse phase.
	Dialect string
	Doc     *model.DocTree
	DocErr  error
}

// ModuleRecord is the record of a whole module.
type ModuleRecord struct {
	Record
	Path      string
	IsPackage bool
	Docformat string   // __docformat__ marker, if any
	All       []string // __all__, nil when absent
	Imports   []model.Import
}

// Package returns the package relative imports are resolved against.
func (m *ModuleRecord) Package() string {
	if m.IsPackage {
		return m.Name
	}
	if i := strings.LastIndexByte(m.Name, '.'); i >= 0 {
		return m.Name[:i]
	}
	return ""
}

// Walk calls fn for every record below m in pre-order, with the dotted
// path of the record relative to the module.
func (m *ModuleRecord) Walk(fn func(path string, r *Record)) {
	var walk func(prefix string, rs []*Record)
	walk = func(prefix string, rs []*Record) {
		for _, r := range rs {
			p := r.Name
			if prefix != "" {
				p = prefix + "." + r.Name
			}
			fn(p, r)
			walk(p, r.Members)
		}
	}
	fn("", &m.Record)
	walk("", m.Members)
}

// Introspect builds the record of one module. calls is the compiled
// call-site query; it may be nil, in which case no body calls are recorded.
func Introspect(u Unit, calls *sitter.Query) *ModuleRecord {
	w := &walker{src: u.Source, calls: calls}
	mod := &ModuleRecord{
		Record:    Record{Name: u.Module, Kind: model.Module, Line: 1},
		Path:      u.Path,
		IsPackage: u.IsPackage,
	}
	w.mod = mod
	if u.Root == nil {
		return mod
	}
	mod.Docstring, mod.HasDoc = lang.Docstring(u.Root, u.Source)
	w.body(u.Root, &mod.Record, false)
	orderMembers(mod.Members)
	return mod
}

type walker struct {
	src   []byte
	calls *sitter.Query
	mod   *ModuleRecord
}

// body walks the statements of a module or class body into parent.
// nested is true inside control-flow blocks, where a name that is already
// defined is an alternative definition rather than a collision.
func (w *walker) body(node *sitter.Node, parent *Record, nested bool) {
	for _, stmt := range lang.NamedChildren(node) {
		switch stmt.Type() {
		case "function_definition", "class_definition":
			w.add(parent, w.definition(stmt, nil, parent), nested)
		case "decorated_definition":
			def := stmt.ChildByFieldName("definition")
			if def == nil {
				continue
			}
			rec := w.definition(def, stmt, parent)
			if isAccessor(rec, parent) {
				continue
			}
			w.add(parent, rec, nested)
		case "expression_statement":
			w.expression(stmt, parent, nested)
		case "import_statement", "import_from_statement", "future_import_statement":
			if parent == &w.mod.Record {
				w.imports(stmt)
			}
		case "if_statement", "try_statement", "with_statement", "elif_clause", "else_clause",
			"except_clause", "finally_clause":
			w.control(stmt, parent)
		}
	}
}

// control descends into the blocks of a compound statement.
func (w *walker) control(node *sitter.Node, parent *Record) {
	for _, c := range lang.NamedChildren(node) {
		switch c.Type() {
		case "block":
			w.body(c, parent, true)
		case "elif_clause", "else_clause", "except_clause", "finally_clause":
			w.control(c, parent)
		}
	}
}

func (w *walker) add(parent *Record, rec *Record, nested bool) {
	if rec == nil || rec.Name == "" {
		return
	}
	if prev := findMember(parent, rec.Name); prev != nil && (nested || rec.Kind == model.Variable) {
		if !prev.HasDoc && rec.HasDoc {
			prev.Docstring, prev.HasDoc = rec.Docstring, true
		}
		return
	}
	parent.Members = append(parent.Members, rec)
}

func findMember(parent *Record, name string) *Record {
	for _, m := range parent.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// isAccessor reports whether rec is the setter or deleter half of a
// property already recorded in parent.
func isAccessor(rec *Record, parent *Record) bool {
	if rec == nil || findMember(parent, rec.Name) == nil {
		return false
	}
	for _, d := range rec.Decorators {
		if d == rec.Name+".setter" || d == rec.Name+".deleter" || d == rec.Name+".getter" {
			return true
		}
	}
	return false
}

func (w *walker) definition(def, decorated *sitter.Node, parent *Record) *Record {
	rec := &Record{
		Name:       lang.DefName(def, w.src),
		Line:       lang.Line(def),
		Decorators: lang.Decorators(decorated, w.src),
	}
	body := def.ChildByFieldName("body")
	rec.Docstring, rec.HasDoc = lang.Docstring(body, w.src)

	switch def.Type() {
	case "class_definition":
		rec.Kind = model.Class
		rec.Signature = lang.ClassSignature(def, w.src)
		rec.Bases = lang.Bases(def, w.src)
		if body != nil {
			w.body(body, rec, false)
			orderMembers(rec.Members)
		}
	default:
		rec.Kind = model.Function
		if lang.EnclosingClass(def) != nil {
			rec.Kind = model.Method
		}
		rec.Signature = lang.FunctionSignature(def, w.src)
		rec.Params = lang.Params(def, w.src)
		rec.Calls = w.callsIn(body)
		rec.Locals = w.localsIn(body)
	}
	return rec
}

// localsIn returns the names a function body binds locally: assignment,
// loop, with/except and walrus targets, local imports and nested
// definitions. Names declared global are left out. Nested function and
// lambda bodies are not entered.
func (w *walker) localsIn(body *sitter.Node) []string {
	if body == nil {
		return nil
	}
	seen := map[string]bool{}
	global := map[string]bool{}
	var out []string
	bind := func(n *sitter.Node) {
		if n == nil || n.Type() != "identifier" {
			return
		}
		name := lang.NodeText(n, w.src)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var targets func(n *sitter.Node)
	targets = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "identifier":
			bind(n)
		case "attribute", "subscript":
		default:
			for _, c := range lang.NamedChildren(n) {
				targets(c)
			}
		}
	}
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "function_definition", "class_definition":
			bind(n.ChildByFieldName("name"))
			return
		case "lambda":
			return
		case "global_statement":
			for _, c := range lang.NamedChildren(n) {
				global[lang.NodeText(c, w.src)] = true
			}
			return
		case "assignment", "augmented_assignment", "for_statement", "for_in_clause":
			targets(n.ChildByFieldName("left"))
		case "named_expression":
			bind(n.ChildByFieldName("name"))
		case "as_pattern", "with_item":
			targets(n.ChildByFieldName("alias"))
		case "except_clause":
			for i := 0; i+1 < int(n.ChildCount()); i++ {
				if n.Child(i).Type() == "as" {
					targets(n.Child(i + 1))
				}
			}
		case "import_statement", "import_from_statement":
			w.importNames(n, bind)
			return
		}
		for _, c := range lang.NamedChildren(n) {
			visit(c)
		}
	}
	visit(body)

	kept := out[:0]
	for _, name := range out {
		if !global[name] {
			kept = append(kept, name)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// importNames calls bind for each name an import statement binds.
func (w *walker) importNames(stmt *sitter.Node, bind func(*sitter.Node)) {
	from := stmt.ChildByFieldName("module_name")
	for _, c := range lang.NamedChildren(stmt) {
		if from != nil && c.StartByte() == from.StartByte() {
			continue
		}
		switch c.Type() {
		case "aliased_import":
			bind(c.ChildByFieldName("alias"))
		case "dotted_name":
			bind(c.NamedChild(0))
		}
	}
}

// callsIn returns the dotted callee expressions of the calls in body, in
// source order without duplicates.
func (w *walker) callsIn(body *sitter.Node) []string {
	if body == nil || w.calls == nil {
		return nil
	}
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(w.calls, body)

	seen := map[string]bool{}
	var out []string
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, w.src)
		for _, c := range match.Captures {
			if w.calls.CaptureNameForId(c.Index) != "name" {
				continue
			}
			text := lang.NodeText(c.Node, w.src)
			if !lang.IsDotted(text) || seen[text] {
				continue
			}
			seen[text] = true
			out = append(out, text)
		}
	}
	return out
}

func (w *walker) expression(stmt *sitter.Node, parent *Record, nested bool) {
	kids := lang.NamedChildren(stmt)
	if len(kids) != 1 {
		return
	}
	expr := kids[0]
	switch expr.Type() {
	case "assignment":
		w.assignment(stmt, expr, parent, nested)
	case "call":
		if p := w.setattr(expr, parent); p != nil {
			w.add(p.parent, p.rec, true)
		}
	}
}

func (w *walker) assignment(stmt, expr *sitter.Node, parent *Record, nested bool) {
	left := expr.ChildByFieldName("left")
	right := expr.ChildByFieldName("right")
	if left == nil {
		return
	}
	// a = b = value: the innermost right-hand side is the value.
	for right != nil && right.Type() == "assignment" {
		if l := right.ChildByFieldName("left"); l != nil {
			w.assignTargets(stmt, l, nil, nil, parent, nested)
		}
		right = right.ChildByFieldName("right")
	}
	w.assignTargets(stmt, left, right, expr.ChildByFieldName("type"), parent, nested)
}

func (w *walker) assignTargets(stmt, left, right, typ *sitter.Node, parent *Record, nested bool) {
	switch left.Type() {
	case "identifier":
	case "pattern_list", "tuple_pattern", "list_pattern":
		for _, c := range lang.NamedChildren(left) {
			if c.Type() == "identifier" {
				w.add(parent, &Record{Name: lang.NodeText(c, w.src), Kind: model.Variable, Line: lang.Line(c)}, nested)
			}
		}
		return
	case "subscript":
		if rec := w.globalsItem(left); rec != nil {
			w.add(&w.mod.Record, rec, true)
		}
		return
	default:
		return
	}

	name := lang.NodeText(left, w.src)
	if parent == &w.mod.Record && w.marker(name, right) {
		return
	}

	if right != nil && right.Type() == "call" {
		if rec := w.dynamicClass(name, left, right); rec != nil {
			w.add(parent, rec, nested)
			return
		}
	}

	rec := &Record{Name: name, Kind: model.Variable, Line: lang.Line(left), Signature: name}
	if typ != nil {
		rec.Signature = name + ": " + lang.CollapseWhitespace(lang.NodeText(typ, w.src))
	}
	rec.Docstring, rec.HasDoc = w.variableDoc(stmt)
	w.add(parent, rec, nested)
}

// marker records the __docformat__ and __all__ module markers.
func (w *walker) marker(name string, value *sitter.Node) bool {
	switch name {
	case "__docformat__":
		if value != nil {
			if s, ok := lang.StringValue(value, w.src); ok {
				w.mod.Docformat = strings.TrimSpace(s)
			}
		}
		return true
	case "__all__":
		w.mod.All = []string{}
		if value == nil {
			return true
		}
		switch value.Type() {
		case "list", "tuple":
			for _, c := range lang.NamedChildren(value) {
				if s, ok := lang.StringValue(c, w.src); ok {
					w.mod.All = append(w.mod.All, s)
				}
			}
		}
		return true
	}
	return false
}

// variableDoc returns the docstring of an assignment: the string statement
// right after it, or else the "#:" comment lines right above it.
func (w *walker) variableDoc(stmt *sitter.Node) (string, bool) {
	if next := stmt.NextNamedSibling(); next != nil {
		if s, ok := lang.StringStatement(next, w.src); ok {
			return s, true
		}
	}

	var lines []string
	line := lang.Line(stmt)
	for prev := stmt.PrevNamedSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevNamedSibling() {
		text := lang.NodeText(prev, w.src)
		if !strings.HasPrefix(text, "#:") || lang.Line(prev) != line-1 {
			break
		}
		lines = append([]string{strings.TrimPrefix(strings.TrimPrefix(text, "#:"), " ")}, lines...)
		line--
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

// dynamicClass recognizes Name = type("Name", (Base, ...), {...}).
func (w *walker) dynamicClass(name string, left, call *sitter.Node) *Record {
	fn := call.ChildByFieldName("function")
	args := call.ChildByFieldName("arguments")
	if fn == nil || args == nil || lang.NodeText(fn, w.src) != "type" {
		return nil
	}
	argv := lang.NamedChildren(args)
	if len(argv) != 3 {
		return nil
	}
	rec := &Record{Name: name, Kind: model.Class, Line: lang.Line(left), Opaque: true, Signature: name}
	if argv[1].Type() == "tuple" || argv[1].Type() == "parenthesized_expression" {
		for _, b := range lang.NamedChildren(argv[1]) {
			if text := lang.NodeText(b, w.src); lang.IsDotted(text) {
				rec.Bases = append(rec.Bases, text)
			}
		}
	}
	return rec
}

// globalsItem recognizes globals()["name"] = value.
func (w *walker) globalsItem(sub *sitter.Node) *Record {
	value := sub.ChildByFieldName("value")
	key := sub.ChildByFieldName("subscript")
	if value == nil || key == nil || lang.CollapseWhitespace(lang.NodeText(value, w.src)) != "globals()" {
		return nil
	}
	name, ok := lang.StringValue(key, w.src)
	if !ok || !lang.IsDotted(name) || strings.Contains(name, ".") {
		return nil
	}
	return &Record{Name: name, Kind: model.Variable, Line: lang.Line(sub), Opaque: true}
}

type placed struct {
	parent *Record
	rec    *Record
}

// setattr recognizes setattr(target, "name", value). The stub belongs to
// the class named by target when the module defines it, else to parent.
func (w *walker) setattr(call *sitter.Node, parent *Record) *placed {
	fn := call.ChildByFieldName("function")
	args := call.ChildByFieldName("arguments")
	if fn == nil || args == nil || lang.NodeText(fn, w.src) != "setattr" {
		return nil
	}
	argv := lang.NamedChildren(args)
	if len(argv) != 3 {
		return nil
	}
	name, ok := lang.StringValue(argv[1], w.src)
	if !ok || !lang.IsDotted(name) || strings.Contains(name, ".") {
		return nil
	}
	owner := parent
	if target := findMember(parent, lang.NodeText(argv[0], w.src)); target != nil && target.Kind == model.Class {
		owner = target
	}
	return &placed{parent: owner, rec: &Record{Name: name, Kind: model.Variable, Line: lang.Line(call), Opaque: true}}
}

// orderMembers sorts members by declaration order. Members without a
// position go last, alphabetically.
func orderMembers(rs []*Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		switch {
		case a.Line == 0 && b.Line == 0:
			return a.Name < b.Name
		case a.Line == 0:
			return false
		case b.Line == 0:
			return true
		}
		return a.Line < b.Line
	})
}

// ParseTree parses source with the given parser. A tree containing syntax
// errors is reported as an error so the module can be skipped.
func ParseTree(ctx context.Context, parser *sitter.Parser, source []byte) (*sitter.Tree, error) {
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	if root := tree.RootNode(); root.HasError() {
		line := firstErrorLine(root)
		tree.Close()
		return nil, &SyntaxError{Line: line}
	}
	return tree, nil
}

// SyntaxError reports Python source that does not parse.
type SyntaxError struct {
	Line int
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid syntax at line %d", e.Line)
	}
	return "invalid syntax"
}

func firstErrorLine(node *sitter.Node) int {
	if node.Type() == "ERROR" || node.IsMissing() {
		return lang.Line(node)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.HasError() || c.IsMissing() {
			return firstErrorLine(c)
		}
	}
	return 0
}
