package lang

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py", ".pyw"},
		lang:       python.GetLanguage(),
	}
}

// Python returns the registered Python language.
func Python() *Language {
	return Languages["python"]
}

var dottedRe = regexp.MustCompile(`^[A-Za-z_]\w*(?:\.[A-Za-z_]\w*)*$`)

// IsDotted reports whether s is a plain dotted name such as "a.b.c".
func IsDotted(s string) bool {
	return dottedRe.MatchString(s)
}

// EnclosingClass returns the class_definition whose body a definition
// belongs to, looking through decorators and control-flow blocks. It
// returns nil at module level and inside a function body.
func EnclosingClass(def *sitter.Node) *sitter.Node {
	for n := def.Parent(); n != nil; n = n.Parent() {
		switch n.Type() {
		case "class_definition":
			return n
		case "function_definition", "lambda", "module":
			return nil
		}
	}
	return nil
}

// DefName returns the name of a function or class definition.
func DefName(node *sitter.Node, source []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return NodeText(n, source)
	}
	if n := FirstChildOfType(node, "identifier"); n != nil {
		return NodeText(n, source)
	}
	return ""
}

// ClassSignature returns "Name(bases)" for a class_definition.
func ClassSignature(node *sitter.Node, source []byte) string {
	name := DefName(node, source)
	if args := node.ChildByFieldName("superclasses"); args != nil {
		return name + CollapseWhitespace(NodeText(args, source))
	}
	return name
}

// FunctionSignature returns "name(params) -> type" for a function_definition.
func FunctionSignature(node *sitter.Node, source []byte) string {
	sig := DefName(node, source)
	if params := node.ChildByFieldName("parameters"); params != nil {
		sig += CollapseWhitespace(NodeText(params, source))
	}
	if rt := node.ChildByFieldName("return_type"); rt != nil {
		sig += " -> " + CollapseWhitespace(NodeText(rt, source))
	}
	return sig
}

// Params extracts the formal parameters of a function_definition.
func Params(node *sitter.Node, source []byte) []model.Param {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var out []model.Param
	for _, c := range NamedChildren(params) {
		if p, ok := param(c, source); ok {
			out = append(out, p)
		}
	}
	return out
}

func param(node *sitter.Node, source []byte) (model.Param, bool) {
	annotation := func() string {
		if t := node.ChildByFieldName("type"); t != nil {
			return CollapseWhitespace(NodeText(t, source))
		}
		return ""
	}

	switch node.Type() {
	case "identifier":
		return model.Param{Name: NodeText(node, source)}, true
	case "list_splat_pattern", "dictionary_splat_pattern":
		p := model.Param{Variadic: "*"}
		if node.Type() == "dictionary_splat_pattern" {
			p.Variadic = "**"
		}
		if id := FirstChildOfType(node, "identifier"); id != nil {
			p.Name = NodeText(id, source)
		}
		return p, p.Name != ""
	case "typed_parameter":
		for _, c := range NamedChildren(node) {
			if c.Type() == "type" {
				continue
			}
			p, ok := param(c, source)
			if !ok {
				return model.Param{}, false
			}
			p.Annotation = annotation()
			return p, true
		}
	case "default_parameter", "typed_default_parameter":
		name := node.ChildByFieldName("name")
		if name == nil {
			return model.Param{}, false
		}
		return model.Param{Name: NodeText(name, source), HasDefault: true, Annotation: annotation()}, true
	}
	return model.Param{}, false
}

// Bases returns the declared base class expressions of a class_definition.
// Keyword arguments such as metaclass= are skipped and subscripted bases
// (Generic[T]) are reduced to the subscripted name.
func Bases(node *sitter.Node, source []byte) []string {
	args := node.ChildByFieldName("superclasses")
	if args == nil {
		return nil
	}
	var out []string
	for _, c := range NamedChildren(args) {
		switch c.Type() {
		case "keyword_argument", "list_splat", "dictionary_splat":
			continue
		case "subscript":
			if v := c.ChildByFieldName("value"); v != nil {
				out = append(out, NodeText(v, source))
				continue
			}
		}
		out = append(out, CollapseWhitespace(NodeText(c, source)))
	}
	return out
}

// Decorators returns the decorator expressions of a decorated_definition,
// without the leading '@'.
func Decorators(node *sitter.Node, source []byte) []string {
	if node == nil || node.Type() != "decorated_definition" {
		return nil
	}
	var out []string
	for _, c := range NamedChildren(node) {
		if c.Type() == "decorator" {
			out = append(out, CollapseWhitespace(strings.TrimPrefix(NodeText(c, source), "@")))
		}
	}
	return out
}

// StringStatement returns the string value of an expression statement that
// consists of a single string literal.
func StringStatement(stmt *sitter.Node, source []byte) (string, bool) {
	if stmt == nil || stmt.Type() != "expression_statement" {
		return "", false
	}
	kids := NamedChildren(stmt)
	if len(kids) != 1 {
		return "", false
	}
	return StringValue(kids[0], source)
}

// Docstring returns the docstring of a module or a definition body: the
// first statement when it is a string literal.
func Docstring(body *sitter.Node, source []byte) (string, bool) {
	if body == nil {
		return "", false
	}
	kids := NamedChildren(body)
	if len(kids) == 0 {
		return "", false
	}
	return StringStatement(kids[0], source)
}

// StringValue decodes a string or concatenated_string literal. Formatted
// strings are not constant and report false.
func StringValue(node *sitter.Node, source []byte) (string, bool) {
	switch node.Type() {
	case "string":
		return DecodeString(NodeText(node, source))
	case "concatenated_string":
		var b strings.Builder
		for _, c := range NamedChildren(node) {
			s, ok := StringValue(c, source)
			if !ok {
				return "", false
			}
			b.WriteString(s)
		}
		return b.String(), true
	}
	return "", false
}

// DecodeString decodes a Python string literal including its prefix and
// quotes, e.g. r"""...""" or 'a\tb'.
func DecodeString(lit string) (string, bool) {
	i := 0
	for i < len(lit) && lit[i] != '"' && lit[i] != '\'' {
		i++
	}
	prefix := strings.ToLower(lit[:i])
	if strings.ContainsRune(prefix, 'f') || strings.ContainsRune(prefix, 't') {
		return "", false
	}
	body := lit[i:]

	var quote string
	switch {
	case strings.HasPrefix(body, `"""`), strings.HasPrefix(body, `'''`):
		quote = body[:3]
	case len(body) >= 1:
		quote = body[:1]
	default:
		return "", false
	}
	if len(body) < 2*len(quote) || !strings.HasSuffix(body, quote) {
		return "", false
	}
	body = body[len(quote) : len(body)-len(quote)]

	if strings.ContainsRune(prefix, 'r') {
		return body, true
	}
	return unescape(body), true
}

var simpleEscapes = map[byte]string{
	'\\': `\`,
	'\'': `'`,
	'"':  `"`,
	'a':  "\a",
	'b':  "\b",
	'f':  "\f",
	'n':  "\n",
	'r':  "\r",
	't':  "\t",
	'v':  "\v",
	'\n': "",
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		c := s[i+1]
		if rep, ok := simpleEscapes[c]; ok {
			b.WriteString(rep)
			i++
			continue
		}
		switch {
		case c == 'x' || c == 'u' || c == 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[c]
			if i+2+width <= len(s) {
				if v, err := strconv.ParseUint(s[i+2:i+2+width], 16, 32); err == nil && utf8.ValidRune(rune(v)) {
					b.WriteRune(rune(v))
					i += 1 + width
					continue
				}
			}
		case c >= '0' && c <= '7':
			j := i + 1
			for j < len(s) && j < i+4 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i+1:j], 8, 32)
			b.WriteRune(rune(v))
			i = j - 1
			continue
		}
		// Unknown escapes such as \N{...} are kept verbatim.
		b.WriteByte('\\')
	}
	return b.String()
}
