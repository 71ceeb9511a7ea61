// Package markup parses docstring markup into documentation trees and
// renders trees back into their dialect's plain-text form.
//
// Every dialect produces the same tree shape (paragraphs, literal blocks,
// field lists, cross-reference spans), so consumers never switch on the
// dialect.
package markup

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

// Dialect names.
const (
	Epytext          = "epytext"
	ReStructuredText = "restructuredtext"
	Javadoc          = "javadoc"
	Plaintext        = "plaintext"
)

// ErrUnknownDialect is returned for dialect names that are not registered.
var ErrUnknownDialect = errors.New("unknown markup dialect")

// Dialect is one supported docstring markup syntax.
type Dialect interface {
	Name() string
	// Parse parses cleaned docstring text. Errors are *model.MarkupError.
	Parse(text string) (*model.DocTree, error)
	// Render writes a tree back as dialect-conformant text.
	Render(tree *model.DocTree) string
}

var dialects = map[string]Dialect{}

var aliases = map[string]string{
	"epytext":           Epytext,
	"restructuredtext":  ReStructuredText,
	"restructured_text": ReStructuredText,
	"rest":              ReStructuredText,
	"rst":               ReStructuredText,
	"javadoc":           Javadoc,
	"plaintext":         Plaintext,
	"plain":             Plaintext,
}

func register(d Dialect) {
	dialects[d.Name()] = d
}

func init() {
	register(epytextDialect{})
	register(rstDialect{})
	register(javadocDialect{})
	register(plaintextDialect{})
}

// Lookup returns the dialect for a name as written in configuration or a
// __docformat__ marker ("restructuredtext en" names restructuredtext).
func Lookup(name string) (Dialect, bool) {
	canon, ok := Canonical(name)
	if !ok {
		return nil, false
	}
	d, ok := dialects[canon]
	return d, ok
}

// Canonical normalizes a dialect name. The second result is false for
// names that are not supported.
func Canonical(name string) (string, bool) {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return "", false
	}
	canon, ok := aliases[fields[0]]
	return canon, ok
}

// Names returns the registered dialect names, sorted.
func Names() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Parse cleans a raw docstring and parses it in the named dialect. Parsing
// never fails outright: on malformed markup it returns the literal
// fallback tree together with the *model.MarkupError so the caller can
// report a warning.
func Parse(raw, dialect string) (*model.DocTree, error) {
	text := Clean(raw)
	d, ok := Lookup(dialect)
	if !ok {
		return Fallback(text), fmt.Errorf("%w %q", ErrUnknownDialect, dialect)
	}
	tree, err := d.Parse(text)
	if err != nil {
		return Fallback(text), err
	}
	return tree, nil
}

// Render writes a tree back in the dialect it was parsed from.
func Render(tree *model.DocTree) string {
	if tree == nil {
		return ""
	}
	d, ok := Lookup(tree.Dialect)
	if !ok {
		d = plaintextDialect{}
	}
	return d.Render(tree)
}

// Fallback treats the whole text as a single literal block.
func Fallback(text string) *model.DocTree {
	tree := &model.DocTree{Dialect: Plaintext}
	if strings.TrimSpace(text) != "" {
		tree.Blocks = []model.Block{{Kind: model.Literal, Text: text}}
	}
	return tree
}

// Clean normalizes docstring indentation the way Python's inspect.cleandoc
// does: tabs are expanded, the common margin of all lines after the first
// is removed, and leading/trailing blank lines are dropped.
func Clean(doc string) string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	lines := strings.Split(doc, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(expandTabs(l), " \t")
	}

	margin := -1
	for _, l := range lines[1:] {
		if l == "" {
			continue
		}
		ind := indentOf(l)
		if margin < 0 || ind < margin {
			margin = ind
		}
	}
	lines[0] = strings.TrimLeft(lines[0], " ")
	if margin > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= margin {
				lines[i] = lines[i][margin:]
			}
		}
	}

	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		if r == '\t' {
			n := 8 - col%8
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}

func indentOf(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}

type plaintextDialect struct{}

func (plaintextDialect) Name() string { return Plaintext }

func (plaintextDialect) Parse(text string) (*model.DocTree, error) {
	return Fallback(text), nil
}

func (plaintextDialect) Render(tree *model.DocTree) string {
	parts := make([]string, 0, len(tree.Blocks))
	for _, b := range tree.Blocks {
		switch b.Kind {
		case model.Literal:
			parts = append(parts, b.Text)
		case model.Paragraph:
			parts = append(parts, model.SpansText(b.Spans))
		case model.FieldList:
			for _, f := range b.Fields {
				parts = append(parts, strings.TrimSpace(f.Name+" "+f.Arg)+": "+f.BodyText())
			}
		}
	}
	return strings.Join(parts, "\n\n")
}
