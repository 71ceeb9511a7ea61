package markup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

// epytext fields look like "@param x: body" or "@return: body".
var (
	epytextField = regexp.MustCompile(`^@([A-Za-z_]\w*)(?:[ \t]+([^:]*?))?[ \t]*:[ \t]*(.*)$`)
	epytextTag   = regexp.MustCompile(`^@([A-Za-z_]\w*)`)
)

type epytextDialect struct{}

func (epytextDialect) Name() string { return Epytext }

func (epytextDialect) syntax() blockSyntax {
	return blockSyntax{
		dialect: Epytext,
		field:   epytextFieldHead,
		inline:  epytextInline,
	}
}

func (d epytextDialect) Parse(text string) (*model.DocTree, error) {
	return d.syntax().scan(text)
}

func epytextFieldHead(text string) (fieldHead, bool, error) {
	if !strings.HasPrefix(text, "@") {
		return fieldHead{}, false, nil
	}
	if m := epytextField.FindStringSubmatch(text); m != nil {
		return fieldHead{name: m[1], arg: strings.TrimSpace(m[2]), rest: strings.TrimSpace(m[3])}, true, nil
	}
	if m := epytextTag.FindStringSubmatch(text); m != nil {
		return fieldHead{}, false, fmt.Errorf("field @%s is missing ':'", m[1])
	}
	return fieldHead{}, false, nil
}

// epytextInline parses inline markup. L{...} is a cross-reference. Other
// X{...} markup keeps its delimiters as text and is scanned for nested
// links. Braces must balance.
func epytextInline(text string, at lineStarts) ([]model.Span, error) {
	var b spanBuilder
	if err := epytextScan(&b, text, 0, len(text), at); err != nil {
		return nil, err
	}
	return b.done(), nil
}

// epytextScan parses text[from:to] into b. Offsets stay relative to the
// whole text so positions map through at.
func epytextScan(b *spanBuilder, text string, from, to int, at lineStarts) error {
	errAt := func(off int, msg string) error {
		return &model.MarkupError{Dialect: Epytext, Pos: posAt(text, off, at), Msg: msg}
	}

	for i := from; i < to; {
		c := text[i]
		switch {
		case c >= 'A' && c <= 'Z' && i+1 < to && text[i+1] == '{':
			end := matchBrace(text[:to], i+1)
			if end < 0 {
				return errAt(i, fmt.Sprintf("unterminated %c{...}", c))
			}
			if c == 'L' {
				label, target := splitLabel(text[i+2 : end])
				if target == "" {
					return errAt(i, "empty L{} link")
				}
				ref := newRef(target, posAt(text, i, at))
				ref.Label = label
				b.addRef(ref)
			} else {
				b.addText(text[i : i+2])
				if err := epytextScan(b, text, i+2, end, at); err != nil {
					return err
				}
				b.addText("}")
			}
			i = end + 1
		case c == '{':
			end := matchBrace(text[:to], i)
			if end < 0 {
				return errAt(i, "unbalanced '{'")
			}
			b.addText(text[i : end+1])
			i = end + 1
		case c == '}':
			return errAt(i, "unbalanced '}'")
		default:
			b.addText(text[i : i+1])
			i++
		}
	}
	return nil
}

func (epytextDialect) Render(tree *model.DocTree) string {
	return renderLines(tree, epytextSpans, func(f model.Field) string {
		if f.Arg != "" {
			return "@" + f.Name + " " + f.Arg + ":"
		}
		return "@" + f.Name + ":"
	})
}

func epytextSpans(spans []model.Span) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Kind != model.RefSpan {
			b.WriteString(s.Text)
			continue
		}
		switch {
		case s.Ref.Implicit:
			b.WriteString(refTarget(s.Ref))
		case s.Ref.Label != "":
			fmt.Fprintf(&b, "L{%s <%s>}", s.Ref.Label, refTarget(s.Ref))
		default:
			fmt.Fprintf(&b, "L{%s}", refTarget(s.Ref))
		}
	}
	return b.String()
}
