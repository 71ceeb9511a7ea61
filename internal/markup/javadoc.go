package markup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

var (
	javadocTag    = regexp.MustCompile(`^@([A-Za-z]\w*)(?:\s+(.*))?$`)
	javadocInline = regexp.MustCompile(`^\{@([A-Za-z]\w*)`)
)

// Block tags whose first word is an argument rather than body text.
var javadocArgTags = map[string]bool{
	"param":     true,
	"type":      true,
	"ivar":      true,
	"throws":    true,
	"exception": true,
	"raise":     true,
	"raises":    true,
}

type javadocDialect struct{}

func (javadocDialect) Name() string { return Javadoc }

func (javadocDialect) Parse(text string) (*model.DocTree, error) {
	tree := &model.DocTree{Dialect: Javadoc}
	lines := splitLines(text)
	raw := strings.Split(text, "\n")

	i := 0
	for i < len(lines) {
		l := lines[i]
		if l.blank() {
			i++
			continue
		}
		if javadocTag.MatchString(l.text) {
			break
		}

		if strings.HasPrefix(l.text, "<pre>") {
			lit, next, err := scanPre(raw, lines, i)
			if err != nil {
				return nil, err
			}
			tree.Blocks = append(tree.Blocks, model.Block{Kind: model.Literal, Text: lit})
			i = next
			continue
		}

		var parts []string
		var starts lineStarts
		for i < len(lines) && !lines[i].blank() && !javadocTag.MatchString(lines[i].text) && !strings.HasPrefix(lines[i].text, "<pre>") {
			parts = append(parts, lines[i].text)
			starts = append(starts, lines[i].start())
			i++
		}
		spans, err := javadocSpans(strings.Join(parts, "\n"), starts)
		if err != nil {
			return nil, err
		}
		tree.Blocks = append(tree.Blocks, model.Block{Kind: model.Paragraph, Spans: spans})
	}

	var fields []model.Field
	for i < len(lines) {
		l := lines[i]
		m := javadocTag.FindStringSubmatch(l.text)
		if m == nil {
			i++
			continue
		}
		name, rest := m[1], strings.TrimSpace(m[2])
		var arg string
		if javadocArgTags[strings.ToLower(name)] {
			arg, rest, _ = strings.Cut(rest, " ")
			rest = strings.TrimSpace(rest)
		}

		body := []string{}
		var starts lineStarts
		if rest != "" {
			body = append(body, rest)
			starts = append(starts, l.restStart(rest))
		}
		i++
		for i < len(lines) && !javadocTag.MatchString(lines[i].text) {
			if len(body) > 0 || !lines[i].blank() {
				body = append(body, lines[i].text)
				starts = append(starts, lines[i].start())
			}
			i++
		}
		for len(body) > 0 && body[len(body)-1] == "" {
			body = body[:len(body)-1]
			starts = starts[:len(starts)-1]
		}

		spans, err := javadocSpans(strings.Join(body, "\n"), starts)
		if err != nil {
			return nil, err
		}
		f := model.Field{Tag: NormalizeTag(name), Name: name, Arg: arg, Body: spans}
		finishField(&f, l.start())
		fields = append(fields, f)
	}
	if len(fields) > 0 {
		tree.Blocks = append(tree.Blocks, model.Block{Kind: model.FieldList, Fields: fields})
	}
	return tree, nil
}

// scanPre collects a <pre>...</pre> block starting at line i.
func scanPre(raw []string, lines []line, i int) (string, int, error) {
	first := strings.TrimPrefix(strings.TrimSpace(raw[i]), "<pre>")
	if before, _, ok := strings.Cut(first, "</pre>"); ok {
		return before, i + 1, nil
	}
	var out []string
	if first != "" {
		out = append(out, first)
	}
	for j := i + 1; j < len(raw); j++ {
		if before, _, ok := strings.Cut(raw[j], "</pre>"); ok {
			if strings.TrimSpace(before) != "" {
				out = append(out, before)
			}
			return strings.Join(out, "\n"), j + 1, nil
		}
		out = append(out, raw[j])
	}
	return "", i, &model.MarkupError{
		Dialect: Javadoc,
		Pos:     lines[i].start(),
		Msg:     "unterminated <pre> block",
	}
}

// javadocSpans parses inline tags. {@link target label} and
// {@linkplain target label} are cross-references; other inline tags such as
// {@code ...} stay text.
func javadocSpans(text string, at lineStarts) ([]model.Span, error) {
	var b spanBuilder
	for i := 0; i < len(text); {
		m := javadocInline.FindStringSubmatch(text[i:])
		if m == nil {
			b.addText(text[i : i+1])
			i++
			continue
		}
		end := matchBrace(text, i)
		if end < 0 {
			return nil, &model.MarkupError{
				Dialect: Javadoc,
				Pos:     posAt(text, i, at),
				Msg:     fmt.Sprintf("unterminated {@%s", m[1]),
			}
		}
		tag := m[1]
		content := strings.TrimSpace(text[i+len(m[0]) : end])
		if (tag == "link" || tag == "linkplain") && content != "" {
			parts := strings.Fields(content)
			ref := newRef(parts[0], posAt(text, i, at))
			ref.Label = strings.Join(parts[1:], " ")
			if tag == "linkplain" {
				ref.Role = tag
			}
			b.addRef(ref)
		} else {
			b.addText(text[i : end+1])
		}
		i = end + 1
	}
	return b.done(), nil
}

func (javadocDialect) Render(tree *model.DocTree) string {
	var parts []string
	var tags []string
	for _, b := range tree.Blocks {
		switch b.Kind {
		case model.Paragraph:
			parts = append(parts, renderJavadocSpans(b.Spans))
		case model.Literal:
			parts = append(parts, "<pre>\n"+b.Text+"\n</pre>")
		case model.FieldList:
			for _, f := range b.Fields {
				s := "@" + f.Name
				if f.Arg != "" {
					s += " " + f.Arg
				}
				body := renderJavadocSpans(f.Body)
				if body != "" {
					first, rest, _ := strings.Cut(body, "\n")
					s += " " + first
					if rest != "" {
						s += "\n" + indentLines(rest, "    ")
					}
				}
				tags = append(tags, s)
			}
		}
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

func renderJavadocSpans(spans []model.Span) string {
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
		tag := "link"
		if r.Role != "" {
			tag = r.Role
		}
		if r.Label != "" {
			fmt.Fprintf(&b, "{@%s %s %s}", tag, refTarget(r), r.Label)
		} else {
			fmt.Fprintf(&b, "{@%s %s}", tag, refTarget(r))
		}
	}
	return b.String()
}
