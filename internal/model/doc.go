package model

import "strings"

// BlockKind identifies the kind of a documentation block.
type BlockKind string

const (
	Paragraph BlockKind = "paragraph"
	Literal   BlockKind = "literal"
	FieldList BlockKind = "fields"
)

// SpanKind identifies the kind of an inline span.
type SpanKind string

const (
	TextSpan SpanKind = "text"
	RefSpan  SpanKind = "ref"
)

// FieldTag is the dialect-independent meaning of a field.
type FieldTag string

const (
	ParamField      FieldTag = "param"
	ReturnField     FieldTag = "return"
	RaisesField     FieldTag = "raises"
	SeeField        FieldTag = "see"
	TypeField       FieldTag = "type"
	IVarField       FieldTag = "ivar"
	DeprecatedField FieldTag = "deprecated"
	OtherField      FieldTag = "other"
)

// DocTree is the structured parse of one docstring.
type DocTree struct {
	Dialect string  `json:"dialect" yaml:"dialect"`
	Blocks  []Block `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// Block is a paragraph (Spans), a literal block (Text) or a field list
// (Fields).
type Block struct {
	Kind   BlockKind `json:"kind" yaml:"kind"`
	Spans  []Span    `json:"spans,omitempty" yaml:"spans,omitempty"`
	Text   string    `json:"text,omitempty" yaml:"text,omitempty"`
	Fields []Field   `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Span is a run of inline text or a cross-reference.
type Span struct {
	Kind SpanKind  `json:"kind" yaml:"kind"`
	Text string    `json:"text,omitempty" yaml:"text,omitempty"`
	Ref  *CrossRef `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Field is one entry of a field list. Name is the tag as written in the
// source (e.g. "returns"), Tag its normalized meaning.
type Field struct {
	Tag    FieldTag  `json:"tag" yaml:"tag"`
	Name   string    `json:"name" yaml:"name"`
	Arg    string    `json:"arg,omitempty" yaml:"arg,omitempty"`
	ArgRef *CrossRef `json:"arg_ref,omitempty" yaml:"arg_ref,omitempty"`
	Body   []Span    `json:"body,omitempty" yaml:"body,omitempty"`
}

// ParamName returns the parameter a param/type/ivar field documents: the
// last word of its argument, so ":param int x:" documents "x".
func (f Field) ParamName() string {
	words := strings.Fields(f.Arg)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}

// BodyText returns the field body as plain text with references replaced
// by their targets or labels.
func (f Field) BodyText() string {
	return SpansText(f.Body)
}

// SpansText flattens spans into plain text.
func SpansText(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		switch s.Kind {
		case RefSpan:
			if s.Ref.Label != "" {
				b.WriteString(s.Ref.Label)
			} else {
				b.WriteString(s.Ref.Target)
			}
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// Position is a 1-based line/column inside a cleaned docstring.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// Status is the resolution state of a cross-reference.
type Status string

const (
	Pending    Status = "pending"
	Resolved   Status = "resolved"
	Unresolved Status = "unresolved"
	Ambiguous  Status = "ambiguous"
)

// CrossRef is a reference to another entity found in a docstring.
type CrossRef struct {
	ID       int      `json:"id" yaml:"id"`
	Target   string   `json:"target" yaml:"target"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
	Callable bool     `json:"callable,omitempty" yaml:"callable,omitempty"`
	Role     string   `json:"role,omitempty" yaml:"role,omitempty"`
	Implicit bool     `json:"implicit,omitempty" yaml:"implicit,omitempty"`
	Pos      Position `json:"pos" yaml:"pos"`
	Scope    string   `json:"scope" yaml:"scope"`

	Status     Status   `json:"status" yaml:"status"`
	Resolved   string   `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	Candidates []string `json:"candidates,omitempty" yaml:"candidates,omitempty"`
}

// Reset clears the resolution state.
func (r *CrossRef) Reset() {
	r.Status = Pending
	r.Resolved = ""
	r.Candidates = nil
}

// Refs returns every cross-reference in the tree in document order.
func (t *DocTree) Refs() []*CrossRef {
	if t == nil {
		return nil
	}
	var refs []*CrossRef
	collect := func(spans []Span) {
		for _, s := range spans {
			if s.Kind == RefSpan && s.Ref != nil {
				refs = append(refs, s.Ref)
			}
		}
	}
	for _, b := range t.Blocks {
		collect(b.Spans)
		for _, f := range b.Fields {
			if f.ArgRef != nil {
				refs = append(refs, f.ArgRef)
			}
			collect(f.Body)
		}
	}
	return refs
}

// Fields returns the fields with the given tag in document order.
func (t *DocTree) Fields(tag FieldTag) []Field {
	if t == nil {
		return nil
	}
	var out []Field
	for _, b := range t.Blocks {
		for _, f := range b.Fields {
			if f.Tag == tag {
				out = append(out, f)
			}
		}
	}
	return out
}

// Summary returns the first sentence of the first paragraph.
func (t *DocTree) Summary() string {
	if t == nil {
		return ""
	}
	for _, b := range t.Blocks {
		if b.Kind != Paragraph {
			continue
		}
		text := strings.Join(strings.Fields(SpansText(b.Spans)), " ")
		if i := strings.Index(text, ". "); i >= 0 {
			return text[:i+1]
		}
		return text
	}
	return ""
}
