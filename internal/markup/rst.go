package markup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

var (
	rstField = regexp.MustCompile("^:([^:\\s`]+)([^:`]*):(?:[ \\t]+(.*))?$")
	rstRole  = regexp.MustCompile("^:([A-Za-z][\\w+-]*(?::[A-Za-z][\\w+-]*)?):`")
)

// Roles whose interpreted text is a cross-reference. A domain prefix such
// as "py:" is ignored when matching.
var rstXrefRoles = map[string]bool{
	"func":  true,
	"meth":  true,
	"class": true,
	"mod":   true,
	"attr":  true,
	"obj":   true,
	"exc":   true,
	"data":  true,
	"const": true,
}

type rstDialect struct{}

func (rstDialect) Name() string { return ReStructuredText }

func (rstDialect) Parse(text string) (*model.DocTree, error) {
	s := blockSyntax{dialect: ReStructuredText, field: rstFieldHead, inline: rstInline}
	return s.scan(text)
}

func rstFieldHead(text string) (fieldHead, bool, error) {
	m := rstField.FindStringSubmatch(text)
	if m == nil {
		return fieldHead{}, false, nil
	}
	return fieldHead{name: m[1], arg: strings.TrimSpace(m[2]), rest: strings.TrimSpace(m[3])}, true, nil
}

// rstInline parses interpreted text. `target` and :role:`target` are
// cross-references; inline literals and hyperlink references (`text`_)
// stay text.
func rstInline(text string, at lineStarts) ([]model.Span, error) {
	var b spanBuilder
	errAt := func(off int, msg string) error {
		return &model.MarkupError{Dialect: ReStructuredText, Pos: posAt(text, off, at), Msg: msg}
	}

	for i := 0; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], "``"):
			end := strings.Index(text[i+2:], "``")
			if end < 0 {
				return nil, errAt(i, "unterminated inline literal")
			}
			stop := i + 2 + end + 2
			b.addText(text[i:stop])
			i = stop

		case text[i] == ':' && rstRole.MatchString(text[i:]):
			m := rstRole.FindStringSubmatch(text[i:])
			role := m[1]
			open := i + len(m[0])
			end := strings.IndexByte(text[open:], '`')
			if end < 0 {
				return nil, errAt(i, fmt.Sprintf("unterminated :%s: role", role))
			}
			content := text[open : open+end]
			name := role
			if k := strings.LastIndexByte(role, ':'); k >= 0 {
				name = role[k+1:]
			}
			if rstXrefRoles[name] && strings.TrimSpace(content) != "" {
				label, target := splitLabel(content)
				ref := newRef(target, posAt(text, i, at))
				ref.Label = label
				ref.Role = role
				b.addRef(ref)
			} else {
				b.addText(text[i : open+end+1])
			}
			i = open + end + 1

		case text[i] == '`':
			end := strings.IndexByte(text[i+1:], '`')
			if end < 0 {
				return nil, errAt(i, "unterminated interpreted text")
			}
			content := text[i+1 : i+1+end]
			stop := i + 1 + end + 1
			if stop < len(text) && text[stop] == '_' {
				for stop < len(text) && text[stop] == '_' {
					stop++
				}
				b.addText(text[i:stop])
			} else if strings.TrimSpace(content) == "" {
				b.addText(text[i:stop])
			} else {
				label, target := splitLabel(content)
				ref := newRef(target, posAt(text, i, at))
				ref.Label = label
				b.addRef(ref)
			}
			i = stop

		default:
			b.addText(text[i : i+1])
			i++
		}
	}
	return b.done(), nil
}

func (rstDialect) Render(tree *model.DocTree) string {
	return renderLines(tree, rstSpans, func(f model.Field) string {
		if f.Arg != "" {
			return ":" + f.Name + " " + f.Arg + ":"
		}
		return ":" + f.Name + ":"
	})
}

func rstSpans(spans []model.Span) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Kind != model.RefSpan {
			b.WriteString(s.Text)
			continue
		}
		r := s.Ref
		if r.Implicit {
			b.WriteString(refTarget(r))
			continue
		}
		if r.Role != "" {
			fmt.Fprintf(&b, ":%s:", r.Role)
		}
		if r.Label != "" {
			fmt.Fprintf(&b, "`%s <%s>`", r.Label, refTarget(r))
		} else {
			fmt.Fprintf(&b, "`%s`", refTarget(r))
		}
	}
	return b.String()
}
