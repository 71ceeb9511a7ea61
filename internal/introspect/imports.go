package introspect

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AnjaneyuluBatta505/epydoc/internal/lang"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

// imports records the names an import statement binds in the module.
//
//	import a.b        binds a -> a
//	import a.b as c   binds c -> a.b
//	from x import y   binds y -> x.y
//	from x import *   star import of x
//
// Relative imports are resolved against the module's package; imports
// that climb above the top-level package are dropped.
func (w *walker) imports(stmt *sitter.Node) {
	line := lang.Line(stmt)
	bind := func(name, target string) {
		if name != "" && target != "" {
			w.mod.Imports = append(w.mod.Imports, model.Import{Name: name, Target: target, Line: line})
		}
	}

	switch stmt.Type() {
	case "future_import_statement":
		return

	case "import_statement":
		for _, c := range lang.NamedChildren(stmt) {
			switch c.Type() {
			case "dotted_name":
				full := lang.NodeText(c, w.src)
				top, _, _ := strings.Cut(full, ".")
				bind(top, top)
			case "aliased_import":
				name := c.ChildByFieldName("name")
				alias := c.ChildByFieldName("alias")
				if name != nil && alias != nil {
					bind(lang.NodeText(alias, w.src), lang.NodeText(name, w.src))
				}
			}
		}

	case "import_from_statement":
		modNode := stmt.ChildByFieldName("module_name")
		if modNode == nil {
			return
		}
		from, ok := w.fromModule(modNode)
		if !ok || from == "__future__" {
			return
		}
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			c := stmt.NamedChild(i)
			if c.StartByte() == modNode.StartByte() {
				continue
			}
			switch c.Type() {
			case "wildcard_import":
				bind("*", from)
			case "dotted_name", "identifier":
				name := lang.NodeText(c, w.src)
				bind(name, join(from, name))
			case "aliased_import":
				name := c.ChildByFieldName("name")
				alias := c.ChildByFieldName("alias")
				if name != nil && alias != nil {
					bind(lang.NodeText(alias, w.src), join(from, lang.NodeText(name, w.src)))
				}
			}
		}
	}
}

// fromModule returns the absolute module named by the module part of a
// from-import.
func (w *walker) fromModule(node *sitter.Node) (string, bool) {
	if node.Type() != "relative_import" {
		return lang.NodeText(node, w.src), true
	}
	var dots int
	var rest string
	for _, c := range lang.NamedChildren(node) {
		switch c.Type() {
		case "import_prefix":
			dots = strings.Count(lang.NodeText(c, w.src), ".")
		case "dotted_name":
			rest = lang.NodeText(c, w.src)
		}
	}
	return Relative(w.mod.Package(), dots, rest)
}

// Relative resolves a relative import of the given level (number of
// leading dots) from pkg.
func Relative(pkg string, dots int, rest string) (string, bool) {
	var parts []string
	if pkg != "" {
		parts = strings.Split(pkg, ".")
	}
	up := dots - 1
	if up < 0 || up > len(parts) {
		return "", false
	}
	target := join(strings.Join(parts[:len(parts)-up], "."), rest)
	return target, target != ""
}

func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "." + b
}
