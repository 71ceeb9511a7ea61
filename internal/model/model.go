// Package model defines the documentation model: entities, documentation
// trees, cross-references, diagnostics and the finished read-only Model.
package model

import "strings"

// Kind indicates the syntactic kind of a documented entity.
type Kind string

const (
	Module   Kind = "module"
	Class    Kind = "class"
	Function Kind = "function"
	Method   Kind = "method"
	Variable Kind = "variable"
)

// Callable reports whether entities of this kind can be called.
func (k Kind) Callable() bool {
	return k == Function || k == Method || k == Class
}

// Routine reports whether the kind is a function or method.
func (k Kind) Routine() bool {
	return k == Function || k == Method
}

// Location is a position in a source file. Line is 1-based; 0 means unknown.
type Location struct {
	File string `json:"file" yaml:"file"`
	Line int    `json:"line" yaml:"line"`
}

// Less orders locations by file, then line.
func (l Location) Less(o Location) bool {
	if l.File != o.File {
		return l.File < o.File
	}
	return l.Line < o.Line
}

// Param is one formal parameter of a function or method.
type Param struct {
	Name       string `json:"name" yaml:"name"`
	HasDefault bool   `json:"has_default,omitempty" yaml:"has_default,omitempty"`
	Variadic   string `json:"variadic,omitempty" yaml:"variadic,omitempty"` // "", "*" or "**"
	Annotation string `json:"annotation,omitempty" yaml:"annotation,omitempty"`
}

// Base is a declared base class. Text is the expression as written;
// Resolved is the entity id it resolved to, or "" when external/unresolved.
type Base struct {
	Text     string `json:"text" yaml:"text"`
	Resolved string `json:"resolved,omitempty" yaml:"resolved,omitempty"`
}

// Import binds a local name in a module to an imported dotted target.
// Star imports have Name "*" and bind every public member of Target.
type Import struct {
	Name   string `json:"name" yaml:"name"`
	Target string `json:"target" yaml:"target"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
}

// Star reports whether the import is a wildcard import.
func (i Import) Star() bool { return i.Name == "*" }

// Entity is a documented program unit.
type Entity struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Kind       Kind     `json:"kind" yaml:"kind"`
	Location   Location `json:"location" yaml:"location"`
	Parent     string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Children   []string `json:"children,omitempty" yaml:"children,omitempty"`
	Signature  string   `json:"signature,omitempty" yaml:"signature,omitempty"`
	Docstring  string   `json:"docstring,omitempty" yaml:"docstring,omitempty"`
	Dialect    string   `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	Doc        *DocTree `json:"doc,omitempty" yaml:"doc,omitempty"`
	Bases      []Base   `json:"bases,omitempty" yaml:"bases,omitempty"`
	Params     []Param  `json:"params,omitempty" yaml:"params,omitempty"`
	Decorators []string `json:"decorators,omitempty" yaml:"decorators,omitempty"`
	Imports    []Import `json:"imports,omitempty" yaml:"imports,omitempty"`
	Calls      []string `json:"-" yaml:"-"`
	Locals     []string `json:"-" yaml:"-"`

	// Opaque marks a stub recorded for a member that could not be fully
	// introspected.
	Opaque bool `json:"opaque,omitempty" yaml:"opaque,omitempty"`
	// Collision marks an entity that lost an identifier collision and was
	// given a disambiguated id.
	Collision bool `json:"collision,omitempty" yaml:"collision,omitempty"`
	// Cyclic marks a class whose declared bases form a cycle.
	Cyclic  bool `json:"cyclic,omitempty" yaml:"cyclic,omitempty"`
	Private bool `json:"private,omitempty" yaml:"private,omitempty"`
}

// Param returns the parameter with the given name, if any.
func (e *Entity) Param(name string) (Param, bool) {
	for _, p := range e.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// IsPrivate reports whether a Python name is conventionally private.
// Dunder names are public.
func IsPrivate(name string) bool {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return false
	}
	return strings.HasPrefix(name, "_")
}

// InheritanceEdge is a derived superclass relationship.
type InheritanceEdge struct {
	Subclass   string `json:"subclass" yaml:"subclass"`
	Superclass string `json:"superclass" yaml:"superclass"`
	Depth      int    `json:"depth" yaml:"depth"`
}

// Via values for CallEdge.
const (
	ViaCall = "call"
	ViaDoc  = "doc"
)

// CallEdge is a derived uses relationship between two routines.
type CallEdge struct {
	Caller string `json:"caller" yaml:"caller"`
	Callee string `json:"callee" yaml:"callee"`
	Via    string `json:"via" yaml:"via"`
}

// Views holds the structural data derived from a resolved model.
type Views struct {
	Chains     map[string][]string
	Ancestors  map[string][]InheritanceEdge
	Direct     map[string][]string
	Subclasses map[string][]string
	Calls      []CallEdge
}
