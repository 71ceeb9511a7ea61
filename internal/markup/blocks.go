package markup

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

type line struct {
	text   string // without indentation
	indent int
	num    int // 1-based
}

func (l line) blank() bool { return l.text == "" }

// start is the position of the first non-blank character.
func (l line) start() model.Position {
	return model.Position{Line: l.num, Column: l.indent + 1}
}

// restStart is the position of rest, a suffix of the line's text.
func (l line) restStart(rest string) model.Position {
	pos := l.start()
	if strings.HasSuffix(l.text, rest) {
		pos.Column += utf8.RuneCountInString(l.text[:len(l.text)-len(rest)])
	}
	return pos
}

// lineStarts holds the docstring position of the first byte of each line
// of a joined paragraph or field body.
type lineStarts []model.Position

func splitLines(text string) []line {
	raw := strings.Split(text, "\n")
	lines := make([]line, len(raw))
	for i, r := range raw {
		lines[i] = line{text: strings.TrimSpace(r), indent: indentOf(r), num: i + 1}
	}
	return lines
}

type fieldHead struct {
	name, arg, rest string
}

// blockSyntax describes how a line-oriented dialect spells fields and inline
// markup. epytext and restructuredtext share the block scanner.
type blockSyntax struct {
	dialect string
	// field reports whether a line opens a field. A non-nil error means the
	// line looks like a field but is malformed.
	field  func(text string) (fieldHead, bool, error)
	inline func(text string, at lineStarts) ([]model.Span, error)
}

func (s blockSyntax) isField(l line) bool {
	_, ok, err := s.field(l.text)
	return ok && err == nil
}

func (s blockSyntax) errAt(l line, msg string) error {
	return &model.MarkupError{Dialect: s.dialect, Pos: l.start(), Msg: msg}
}

func (s blockSyntax) scan(text string) (*model.DocTree, error) {
	tree := &model.DocTree{Dialect: s.dialect}
	lines := splitLines(text)

	i := 0
	for i < len(lines) {
		l := lines[i]
		if l.blank() {
			i++
			continue
		}

		if _, ok, err := s.field(l.text); err != nil {
			return nil, s.errAt(l, err.Error())
		} else if ok {
			fields, next, err := s.scanFields(lines, i)
			if err != nil {
				return nil, err
			}
			tree.Blocks = append(tree.Blocks, model.Block{Kind: model.FieldList, Fields: fields})
			i = next
			continue
		}

		start := i
		var parts []string
		var starts lineStarts
		for i < len(lines) && !lines[i].blank() {
			if i > start {
				if _, ok, err := s.field(lines[i].text); ok || err != nil {
					break
				}
				if strings.HasSuffix(parts[len(parts)-1], "::") && lines[i].indent > l.indent {
					break
				}
			}
			parts = append(parts, lines[i].text)
			starts = append(starts, lines[i].start())
			i++
		}
		spans, err := s.inline(strings.Join(parts, "\n"), starts)
		if err != nil {
			return nil, err
		}
		tree.Blocks = append(tree.Blocks, model.Block{Kind: model.Paragraph, Spans: spans})

		if strings.HasSuffix(parts[len(parts)-1], "::") {
			if lit, next, ok := scanLiteral(text, lines, i, l.indent); ok {
				tree.Blocks = append(tree.Blocks, model.Block{Kind: model.Literal, Text: lit})
				i = next
			}
		}
	}
	return tree, nil
}

// scanLiteral collects the block indented deeper than base that follows
// line i (after optional blank lines).
func scanLiteral(text string, lines []line, i, base int) (string, int, bool) {
	j := i
	for j < len(lines) && lines[j].blank() {
		j++
	}
	if j >= len(lines) || lines[j].indent <= base {
		return "", i, false
	}
	raw := strings.Split(text, "\n")
	end := j
	for end < len(lines) && (lines[end].blank() || lines[end].indent > base) {
		end++
	}
	for end > j && lines[end-1].blank() {
		end--
	}
	margin := -1
	for k := j; k < end; k++ {
		if !lines[k].blank() && (margin < 0 || lines[k].indent < margin) {
			margin = lines[k].indent
		}
	}
	out := make([]string, 0, end-j)
	for k := j; k < end; k++ {
		if lines[k].blank() {
			out = append(out, "")
			continue
		}
		out = append(out, raw[k][margin:])
	}
	return strings.Join(out, "\n"), end, true
}

func (s blockSyntax) scanFields(lines []line, i int) ([]model.Field, int, error) {
	listIndent := lines[i].indent
	var fields []model.Field

	for i < len(lines) {
		l := lines[i]
		if l.blank() {
			j := nextNonBlank(lines, i)
			if j < len(lines) && lines[j].indent == listIndent && s.isField(lines[j]) {
				i = j
				continue
			}
			break
		}
		head, ok, err := s.field(l.text)
		if err != nil {
			return nil, i, s.errAt(l, err.Error())
		}
		if !ok {
			break
		}

		var body []string
		var starts lineStarts
		if head.rest != "" {
			body = append(body, head.rest)
			starts = append(starts, l.restStart(head.rest))
		}
		i++
		for i < len(lines) {
			nl := lines[i]
			if nl.blank() {
				j := nextNonBlank(lines, i)
				if j < len(lines) && lines[j].indent > l.indent && len(body) > 0 {
					for k := i; k < j; k++ {
						body = append(body, "")
						starts = append(starts, lines[k].start())
					}
					i = j
					continue
				}
				break
			}
			if nl.indent <= l.indent && s.isField(nl) {
				break
			}
			if _, _, err := s.field(nl.text); err != nil && nl.indent <= l.indent {
				return nil, i, s.errAt(nl, err.Error())
			}
			body = append(body, nl.text)
			starts = append(starts, nl.start())
			i++
		}

		spans, err := s.inline(strings.Join(body, "\n"), starts)
		if err != nil {
			return nil, i, err
		}
		f := model.Field{Tag: NormalizeTag(head.name), Name: head.name, Arg: head.arg, Body: spans}
		finishField(&f, l.start())
		fields = append(fields, f)
	}
	return fields, i, nil
}

func nextNonBlank(lines []line, i int) int {
	for i < len(lines) && lines[i].blank() {
		i++
	}
	return i
}

var fieldTags = map[string]model.FieldTag{
	"param":      model.ParamField,
	"parameter":  model.ParamField,
	"arg":        model.ParamField,
	"argument":   model.ParamField,
	"keyword":    model.ParamField,
	"kwarg":      model.ParamField,
	"kwparam":    model.ParamField,
	"return":     model.ReturnField,
	"returns":    model.ReturnField,
	"raise":      model.RaisesField,
	"raises":     model.RaisesField,
	"except":     model.RaisesField,
	"exception":  model.RaisesField,
	"throws":     model.RaisesField,
	"see":        model.SeeField,
	"seealso":    model.SeeField,
	"type":       model.TypeField,
	"ivar":       model.IVarField,
	"deprecated": model.DeprecatedField,
}

// NormalizeTag maps a field name as written to its normalized tag. Unknown
// names are OtherField.
func NormalizeTag(name string) model.FieldTag {
	if tag, ok := fieldTags[strings.ToLower(name)]; ok {
		return tag
	}
	return model.OtherField
}

var identExpr = regexp.MustCompile(`^[A-Za-z_]\w*(?:[.#][A-Za-z_]\w*)*(?:\(\))?$`)

// finishField turns the argument of a raises field and the bare body of a
// see field into implicit cross-references.
func finishField(f *model.Field, pos model.Position) {
	switch f.Tag {
	case model.RaisesField:
		if identExpr.MatchString(f.Arg) {
			f.ArgRef = newRef(f.Arg, pos)
			f.ArgRef.Implicit = true
		}
	case model.SeeField:
		for _, sp := range f.Body {
			if sp.Kind == model.RefSpan {
				return
			}
		}
		body := model.SpansText(f.Body)
		parts := strings.Split(body, ", ")
		for _, p := range parts {
			if !identExpr.MatchString(p) {
				return
			}
		}
		var spans []model.Span
		for i, p := range parts {
			if i > 0 {
				spans = append(spans, model.Span{Kind: model.TextSpan, Text: ", "})
			}
			ref := newRef(p, pos)
			ref.Implicit = true
			spans = append(spans, model.Span{Kind: model.RefSpan, Ref: ref})
		}
		f.Body = spans
	}
}

// newRef creates a pending cross-reference. A trailing "()" marks a
// reference that must resolve to something callable.
func newRef(target string, pos model.Position) *model.CrossRef {
	target = strings.TrimSpace(target)
	ref := &model.CrossRef{Pos: pos, Status: model.Pending}
	if strings.HasSuffix(target, "()") {
		ref.Callable = true
		target = strings.TrimSpace(strings.TrimSuffix(target, "()"))
	}
	ref.Target = target
	return ref
}

// refTarget returns the target as written, including the callable marker.
func refTarget(r *model.CrossRef) string {
	if r.Callable {
		return r.Target + "()"
	}
	return r.Target
}

// posAt maps a byte offset in text, lines joined with "\n", to a docstring
// position using the start of each line.
func posAt(text string, off int, starts lineStarts) model.Position {
	before := text[:off]
	nl := strings.Count(before, "\n")
	col := utf8.RuneCountInString(before[strings.LastIndexByte(before, '\n')+1:])
	if nl < len(starts) {
		base := starts[nl]
		return model.Position{Line: base.Line, Column: base.Column + col}
	}
	line := nl + 1
	if len(starts) > 0 {
		line = starts[len(starts)-1].Line + nl - len(starts) + 1
	}
	return model.Position{Line: line, Column: col + 1}
}

// spanBuilder accumulates spans, merging adjacent text.
type spanBuilder struct {
	spans []model.Span
	text  strings.Builder
}

func (b *spanBuilder) addText(s string) {
	b.text.WriteString(s)
}

func (b *spanBuilder) flush() {
	if b.text.Len() > 0 {
		b.spans = append(b.spans, model.Span{Kind: model.TextSpan, Text: b.text.String()})
		b.text.Reset()
	}
}

func (b *spanBuilder) addRef(r *model.CrossRef) {
	b.flush()
	b.spans = append(b.spans, model.Span{Kind: model.RefSpan, Ref: r})
}

func (b *spanBuilder) done() []model.Span {
	b.flush()
	return b.spans
}

// matchBrace returns the index of the '}' closing the '{' at open, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var labelTarget = regexp.MustCompile(`(?s)^(.*?\S)\s*<([^<>]+)>$`)

// splitLabel splits "label <target>" link bodies.
func splitLabel(body string) (label, target string) {
	body = strings.TrimSpace(body)
	if m := labelTarget.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return "", body
}

// renderLines joins the blocks of a line-oriented dialect. Literal blocks
// are indented four spaces; continuation lines of a field body likewise.
func renderLines(tree *model.DocTree, spans func([]model.Span) string, head func(model.Field) string) string {
	parts := make([]string, 0, len(tree.Blocks))
	for _, b := range tree.Blocks {
		switch b.Kind {
		case model.Paragraph:
			parts = append(parts, spans(b.Spans))
		case model.Literal:
			parts = append(parts, indentLines(b.Text, "    "))
		case model.FieldList:
			var fl []string
			for _, f := range b.Fields {
				h := head(f)
				body := spans(f.Body)
				if body == "" {
					fl = append(fl, h)
					continue
				}
				first, rest, _ := strings.Cut(body, "\n")
				s := h + " " + first
				if rest != "" {
					s += "\n" + indentLines(rest, "    ")
				}
				fl = append(fl, s)
			}
			parts = append(parts, strings.Join(fl, "\n"))
		}
	}
	return strings.Join(parts, "\n\n")
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
